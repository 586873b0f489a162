package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type Model string

const (
	ModelFluxSchnell Model = "flux.1-schnell"
	ModelDallE3      Model = "dall-e-3"
	ModelDallE2      Model = "dall-e-2"
)

const (
	DefaultBaseURL = "https://api.navy/v1"
	DefaultModel   = ModelFluxSchnell
	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	DefaultStyle   = "vivid"
)

var (
	Models    = []Model{ModelFluxSchnell, ModelDallE3, ModelDallE2}
	Sizes     = []string{"1024x1024", "1024x1792", "1792x1024", "512x512", "256x256"}
	Qualities = []string{"standard", "hd"}
	Styles    = []string{"vivid", "natural"}
)

var (
	ErrMissingAPIKey = errors.New("api key is required")
	ErrMissingPrompt = errors.New("prompt is required")
)

type Params struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
	Model   Model  `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

// WithDefaults fills every empty optional field. APIKey and Prompt are left alone.
func (p Params) WithDefaults() Params {
	p.BaseURL = lo.Ternary(strings.TrimSpace(p.BaseURL) == "", DefaultBaseURL, strings.TrimSpace(p.BaseURL))
	p.Model = lo.Ternary(p.Model == "", DefaultModel, p.Model)
	p.Size = lo.Ternary(p.Size == "", DefaultSize, p.Size)
	p.Quality = lo.Ternary(p.Quality == "", DefaultQuality, p.Quality)
	p.Style = lo.Ternary(p.Style == "", DefaultStyle, p.Style)
	return p
}

// UsesExtras reports whether quality and style are part of the provider call.
func (p Params) UsesExtras() bool {
	return p.Model == ModelDallE3
}

func (p Params) Validate() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return ErrMissingPrompt
	}
	if !lo.Contains(Models, p.Model) {
		return fmt.Errorf("unsupported model %q", p.Model)
	}
	if !lo.Contains(Sizes, p.Size) {
		return fmt.Errorf("unsupported size %q", p.Size)
	}
	if !p.UsesExtras() {
		return nil
	}
	if !lo.Contains(Qualities, p.Quality) {
		return fmt.Errorf("unsupported quality %q", p.Quality)
	}
	if !lo.Contains(Styles, p.Style) {
		return fmt.Errorf("unsupported style %q", p.Style)
	}
	return nil
}

// Dimensions parses Size as WxH.
func (p Params) Dimensions() (int, int, error) {
	w, h, ok := strings.Cut(p.Size, "x")
	if !ok {
		return 0, 0, fmt.Errorf("malformed size %q", p.Size)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", p.Size, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", p.Size, err)
	}
	return width, height, nil
}

func (p Params) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("base_url", p.BaseURL),
		slog.String("model", string(p.Model)),
		slog.String("prompt", p.Prompt),
		slog.String("size", p.Size),
	}
	if p.UsesExtras() {
		attrs = append(attrs, slog.String("quality", p.Quality), slog.String("style", p.Style))
	}
	return slog.GroupValue(attrs...)
}

type Generator interface {
	Generate(context.Context, Params) (string, error)
}
