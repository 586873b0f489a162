package server

import (
	"context"
	"errors"
	"html"
	stdimage "image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/imagegen/internal/acquire"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handle"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/metrics"
	"github.com/dmorgan81/imagegen/internal/page"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcquirer struct {
	mu     sync.Mutex
	calls  []image.Params
	result *acquire.Result
	err    error
}

func (f *fakeAcquirer) Acquire(_ context.Context, params image.Params) (*acquire.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	return f.result, f.err
}

func (f *fakeAcquirer) set(result *acquire.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result, f.err = result, err
}

func (f *fakeAcquirer) last() image.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type harness struct {
	server   *httptest.Server
	acquirer *fakeAcquirer
	sessions *session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	settings := &config.Settings{
		ListenAddr:      "127.0.0.1:0",
		BaseURL:         "https://provider.example.test/v1",
		ShutdownTimeout: time.Second,
		SessionTTL:      time.Hour,
	}
	acquirer := &fakeAcquirer{}
	sessions := session.NewStore()
	html := handle.NewHtmlHandlerWith(sessions, &page.Templator{}, settings.BaseURL, prompt.Examples)
	images := handle.NewImageHandlerWith(acquirer, sessions, settings.BaseURL)
	reg := prometheus.NewRegistry()
	s := New(html, images, sessions, metrics.NewRecorder(reg), reg, settings)

	server := httptest.NewServer(s.Routes())
	t.Cleanup(server.Close)
	return &harness{server: server, acquirer: acquirer, sessions: sessions}
}

func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (h *harness) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(h.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (h *harness) generate(t *testing.T, c *http.Client, form url.Values) string {
	t.Helper()
	resp, err := c.PostForm(h.server.URL+"/generate", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/", resp.Request.URL.Path, "generate should redirect back to the form")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func validForm() url.Values {
	return url.Values{
		"api_key":  {"sk-test"},
		"base_url": {""},
		"model":    {"dall-e-3"},
		"size":     {"1024x1792"},
		"quality":  {"hd"},
		"style":    {"natural"},
		"prompt":   {"A magical forest with glowing mushrooms and fairies"},
	}
}

func TestIndexRendersDefaults(t *testing.T) {
	h := newHarness(t)
	resp, body := h.get(t, h.client(t), "/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `value="https://provider.example.test/v1"`)
	assert.Contains(t, body, `<option value="flux.1-schnell" selected>`)
	assert.Contains(t, body, `<option value="1024x1024" selected>`)
	assert.Contains(t, body, prompt.Default)
	assert.Contains(t, body, "A cyberpunk street scene with neon lights")
	assert.NotContains(t, body, `src="/image.png"`)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestIndexExamplePrefillsPrompt(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	_, body := h.get(t, c, "/")
	assert.Contains(t, body, `<a href="/?example=2">`)

	_, body = h.get(t, c, "/?example=2")
	assert.Contains(t, body, `rows="4">`+html.EscapeString(prompt.Examples[2])+`</textarea>`)

	_, body = h.get(t, c, "/?example=99")
	assert.Contains(t, body, `rows="4">`+prompt.Default+`</textarea>`)
}

func TestGenerateStoresImageInSession(t *testing.T) {
	h := newHarness(t)
	h.acquirer.set(&acquire.Result{
		Image: stdimage.NewNRGBA(stdimage.Rect(0, 0, 64, 112)),
		URL:   "https://images.example.test/forest.png",
	}, nil)
	c := h.client(t)

	body := h.generate(t, c, validForm())

	assert.Contains(t, body, `src="/image.png"`)
	assert.Contains(t, body, "Size: 64 x 112")
	assert.Contains(t, body, "https://images.example.test/forest.png")
	assert.Contains(t, body, `<option value="dall-e-3" selected>`)
	assert.NotContains(t, body, "sk-test")

	params := h.acquirer.last()
	assert.Equal(t, "sk-test", params.APIKey)
	assert.Equal(t, "https://provider.example.test/v1", params.BaseURL)
	assert.Equal(t, image.ModelDallE3, params.Model)
	assert.Equal(t, "hd", params.Quality)
	assert.Equal(t, "natural", params.Style)

	resp, data := h.get(t, c, "/image.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="generated_image.png"`, resp.Header.Get("Content-Disposition"))
	img, err := png.Decode(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 112, img.Bounds().Dy())

	resp, data = h.get(t, c, "/image.jpg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="generated_image.jpg"`, resp.Header.Get("Content-Disposition"))
	_, err = jpeg.Decode(strings.NewReader(data))
	assert.NoError(t, err)
}

func TestGenerateFailureReplacesPreviousImage(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	h.acquirer.set(&acquire.Result{Image: stdimage.NewNRGBA(stdimage.Rect(0, 0, 8, 8)), URL: "https://x/1.png"}, nil)
	h.generate(t, c, validForm())

	h.acquirer.set(nil, &acquire.Error{Kind: acquire.ErrProvider, Err: errors.New("billing hard limit reached")})
	body := h.generate(t, c, validForm())

	assert.Contains(t, body, "billing hard limit reached")
	assert.NotContains(t, body, `src="/image.png"`)

	resp, _ := h.get(t, c, "/image.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadWithoutImage(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, _ := h.get(t, c, "/image.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.get(t, c, "/")
	resp, _ = h.get(t, c, "/image.jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionsDoNotShareImages(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.client(t), h.client(t)

	h.acquirer.set(&acquire.Result{Image: stdimage.NewNRGBA(stdimage.Rect(0, 0, 8, 8)), URL: "https://x/alice.png"}, nil)
	h.generate(t, alice, validForm())

	resp, _ := h.get(t, bob, "/image.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_, body := h.get(t, bob, "/")
	assert.NotContains(t, body, "alice.png")
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := h.get(t, c, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	h.get(t, c, "/")
	resp, body = h.get(t, c, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `imagegen_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
	assert.Contains(t, body, `imagegen_http_requests_total{method="GET",route="GET /{$}",status="200"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.get(t, h.client(t), "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunStopsOnCancel(t *testing.T) {
	settings := &config.Settings{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second, SessionTTL: time.Hour}
	sessions := session.NewStore()
	reg := prometheus.NewRegistry()
	s := New(http.NotFoundHandler(), handle.NewImageHandlerWith(&fakeAcquirer{}, sessions, ""), sessions,
		metrics.NewRecorder(reg), reg, settings)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
