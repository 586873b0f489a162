package acquire

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/metrics"
	"github.com/samber/do"
	"github.com/samber/lo"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type Result struct {
	Image  stdimage.Image
	URL    string
	Format string
}

type Option func(*Acquirer)

func WithHTTPClient(client *http.Client) Option {
	return func(a *Acquirer) {
		a.client = client
	}
}

func WithRecorder(recorder *metrics.Recorder) Option {
	return func(a *Acquirer) {
		a.recorder = recorder
	}
}

type Acquirer struct {
	generator image.Generator
	client    *http.Client
	recorder  *metrics.Recorder
}

func New(generator image.Generator, opts ...Option) *Acquirer {
	a := &Acquirer{generator: generator, client: http.DefaultClient}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func NewAcquirer(i *do.Injector) (*Acquirer, error) {
	return New(do.MustInvoke[image.Generator](i),
		WithHTTPClient(do.MustInvoke[*http.Client](i)),
		WithRecorder(do.MustInvoke[*metrics.Recorder](i)),
	), nil
}

// Acquire generates one image and downloads it. Every call is independent; a
// failure at any step aborts the call with an *Error.
func (a *Acquirer) Acquire(ctx context.Context, params image.Params) (*Result, error) {
	params = params.WithDefaults()
	log := log.FromContextOrDiscard(ctx).WithGroup("acquirer").With("params", params)

	start := time.Now()
	result, err := a.acquire(ctx, params)
	outcome := Outcome(err)
	a.recorder.ObserveAcquisition(modelLabel(params.Model), outcome, time.Since(start))

	if err != nil {
		log.Warn("acquisition failed", "outcome", outcome, "error", err)
		return nil, err
	}
	bounds := result.Image.Bounds()
	log.Info("acquired image", "url", result.URL, "format", result.Format,
		"width", bounds.Dx(), "height", bounds.Dy())
	return result, nil
}

// modelLabel keeps the metric label set bounded to the known models.
func modelLabel(model image.Model) string {
	return lo.Ternary(lo.Contains(image.Models, model), string(model), "invalid")
}

func (a *Acquirer) acquire(ctx context.Context, params image.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, wrap(ErrValidation, err)
	}

	url, err := a.generator.Generate(ctx, params)
	if err != nil {
		return nil, wrap(ErrProvider, err)
	}

	data, err := a.download(ctx, url)
	if err != nil {
		return nil, wrap(ErrDownload, err)
	}

	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, wrap(ErrDecode, fmt.Errorf("decoding image: %w", err))
	}

	return &Result{Image: img, URL: url, Format: format}, nil
}

func (a *Acquirer) download(ctx context.Context, url string) ([]byte, error) {
	log.FromContextOrDiscard(ctx).Info("downloading image", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
