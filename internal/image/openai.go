package image

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

var ErrNoImage = errors.New("provider returned no image url")

type OpenAIGenerator struct {
	Client *http.Client
}

func NewOpenAIGenerator(i *do.Injector) (Generator, error) {
	return &OpenAIGenerator{Client: do.MustInvoke[*http.Client](i)}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, params Params) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openai").With("params", params)
	log.Info("generating image")

	config := openai.DefaultConfig(params.APIKey)
	config.BaseURL = strings.TrimRight(params.BaseURL, "/")
	if g.Client != nil {
		config.HTTPClient = g.Client
	}

	resp, err := openai.NewClientWithConfig(config).CreateImage(ctx, params.imageRequest())
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrNoImage
	}

	log.Info("received image url", "revised_prompt", resp.Data[0].RevisedPrompt)
	return resp.Data[0].URL, nil
}

func (p Params) imageRequest() openai.ImageRequest {
	req := openai.ImageRequest{
		Model:  string(p.Model),
		Prompt: p.Prompt,
		N:      1,
		Size:   p.Size,
	}
	// other models reject or ignore these
	if p.UsesExtras() {
		req.Quality = p.Quality
		req.Style = p.Style
	}
	return req
}
