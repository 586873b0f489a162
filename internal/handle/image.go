package handle

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmorgan81/imagegen/internal/acquire"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Acquirer interface {
	Acquire(context.Context, image.Params) (*acquire.Result, error)
}

type ImageHandler struct {
	acquirer Acquirer
	sessions *session.Store
	baseURL  string
}

func NewImageHandler(i *do.Injector) (*ImageHandler, error) {
	return &ImageHandler{
		acquirer: do.MustInvoke[*acquire.Acquirer](i),
		sessions: do.MustInvoke[*session.Store](i),
		baseURL:  do.MustInvoke[*config.Settings](i).BaseURL,
	}, nil
}

func NewImageHandlerWith(acquirer Acquirer, sessions *session.Store, baseURL string) *ImageHandler {
	return &ImageHandler{acquirer: acquirer, sessions: sessions, baseURL: baseURL}
}

func (h *ImageHandler) formParams(r *http.Request) image.Params {
	baseURL := strings.TrimSpace(r.PostFormValue("base_url"))
	return image.Params{
		APIKey:  r.PostFormValue("api_key"),
		BaseURL: lo.Ternary(baseURL == "", h.baseURL, baseURL),
		Model:   image.Model(r.PostFormValue("model")),
		Prompt:  r.PostFormValue("prompt"),
		Size:    r.PostFormValue("size"),
		Quality: r.PostFormValue("quality"),
		Style:   r.PostFormValue("style"),
	}.WithDefaults()
}

// Generate runs one acquisition and replaces whatever the session held
// before, then sends the browser back to the form.
func (h *ImageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id, _ := ensureSession(w, r, h.sessions)
	params := h.formParams(r)
	log := log.FromContextOrDiscard(ctx).WithGroup("ImageHandler").With("session", id, "params", params)
	log.Info("handling generate request")

	state := session.State{Params: params}
	result, err := h.acquirer.Acquire(ctx, params)
	if err != nil {
		state.Error = err.Error()
	} else {
		state.Image = result.Image
		state.URL = result.URL
	}
	h.sessions.Put(id, state)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ImageHandler) Download(format render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, state, ok := lookupSession(r, h.sessions)
		if !ok || !state.HasImage() {
			http.NotFound(w, r)
			return
		}

		var data bytes.Buffer
		if err := render.Encode(&data, state.Image, format); err != nil {
			log.FromContextOrDiscard(r.Context()).Error("encoding image", "format", format, "error", err)
			http.Error(w, "encoding image failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="generated_image%s"`, format.Extension()))
		_, _ = w.Write(data.Bytes())
	}
}
