package handle

import (
	"net/http"
	"strconv"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/page"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type HtmlHandler struct {
	sessions  *session.Store
	templator *page.Templator
	defaults  image.Params
	examples  []string
}

func NewHtmlHandler(i *do.Injector) (*HtmlHandler, error) {
	return NewHtmlHandlerWith(
		do.MustInvoke[*session.Store](i),
		do.MustInvoke[*page.Templator](i),
		do.MustInvoke[*config.Settings](i).BaseURL,
		do.MustInvoke[*prompt.Randomizer](i).Prompts(),
	), nil
}

func NewHtmlHandlerWith(sessions *session.Store, templator *page.Templator, baseURL string, examples []string) *HtmlHandler {
	return &HtmlHandler{
		sessions:  sessions,
		templator: templator,
		defaults:  image.Params{BaseURL: baseURL, Prompt: prompt.Default}.WithDefaults(),
		examples:  examples,
	}
}

func (h *HtmlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, state := ensureSession(w, r, h.sessions)
	log := log.FromContextOrDiscard(ctx).WithGroup("HtmlHandler").With("session", id)
	log.Debug("rendering form")

	form := lo.Ternary(state.Params == image.Params{}, h.defaults, state.Params)
	if example, ok := h.example(r); ok {
		form.Prompt = example
	}

	params := page.Params{
		Form:      form,
		Models:    image.Models,
		Sizes:     image.Sizes,
		Qualities: image.Qualities,
		Styles:    image.Styles,
		Examples:  h.examples,
		HasImage:  state.HasImage(),
		URL:       state.URL,
		Error:     state.Error,
	}
	if state.HasImage() {
		bounds := state.Image.Bounds()
		params.Width, params.Height = bounds.Dx(), bounds.Dy()
	}

	html, err := h.templator.Template(ctx, params)
	if err != nil {
		log.Error("rendering form", "error", err)
		http.Error(w, "rendering page failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

// example returns the example prompt picked with ?example=N, if any.
func (h *HtmlHandler) example(r *http.Request) (string, bool) {
	n, err := strconv.Atoi(r.URL.Query().Get("example"))
	if err != nil || n < 0 || n >= len(h.examples) {
		return "", false
	}
	return h.examples[n], true
}
