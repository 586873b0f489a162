package handler

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/dmorgan81/imagegen/internal/acquire"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/do"
)

type Acquirer interface {
	Acquire(context.Context, image.Params) (*acquire.Result, error)
}

type Destinations interface {
	Resolve(string) (store.Uploader, string, error)
}

type Input struct {
	Params image.Params `json:"params"`
	Output string       `json:"output"`
	Format string       `json:"format,omitempty"`
}

// format resolves the output format. An explicit format must agree with a
// recognised extension on the output path.
func (i Input) format() (render.Format, error) {
	if i.Format == "" {
		return render.FormatFromPath(i.Output), nil
	}
	format, err := render.ParseFormat(i.Format)
	if err != nil {
		return "", err
	}
	if ext, err := render.ParseFormat(path.Ext(i.Output)); err == nil && ext != format {
		return "", fmt.Errorf("format %s does not match output %s", format, i.Output)
	}
	return format, nil
}

type Output struct {
	Model       image.Model `json:"model"`
	Size        string      `json:"size"`
	Prompt      string      `json:"prompt"`
	URL         string      `json:"url"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Format      string      `json:"format"`
	Destination string      `json:"destination"`
}

func (o Output) toMetadata() map[string]string {
	return map[string]string{
		"model":  string(o.Model),
		"size":   o.Size,
		"prompt": o.Prompt,
		"url":    o.URL,
	}
}

type Handler struct {
	acquirer     Acquirer
	destinations Destinations
}

func New(acquirer Acquirer, destinations Destinations) *Handler {
	return &Handler{acquirer: acquirer, destinations: destinations}
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(do.MustInvoke[*acquire.Acquirer](i), do.MustInvoke[*store.Resolver](i)), nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("params", input.Params, "output", input.Output)
	log.Info("handling generate command")

	format, err := input.format()
	if err != nil {
		return Output{}, err
	}
	uploader, name, err := h.destinations.Resolve(input.Output)
	if err != nil {
		return Output{}, err
	}

	params := input.Params.WithDefaults()
	result, err := h.acquirer.Acquire(ctx, params)
	if err != nil {
		return Output{}, err
	}

	var data bytes.Buffer
	if err := render.Encode(&data, result.Image, format); err != nil {
		return Output{}, fmt.Errorf("encoding %s: %w", format, err)
	}

	bounds := result.Image.Bounds()
	output := Output{
		Model:       params.Model,
		Size:        params.Size,
		Prompt:      params.Prompt,
		URL:         result.URL,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      string(format),
		Destination: input.Output,
	}

	err = uploader.Upload(ctx, store.UploadParams{
		Name:        name,
		Data:        data.Bytes(),
		ContentType: format.ContentType(),
		Metadata:    output.toMetadata(),
	})
	if err != nil {
		return Output{}, fmt.Errorf("writing %s: %w", input.Output, err)
	}
	return output, nil
}
