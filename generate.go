package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/param"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/samber/do"
)

type generateOptions struct {
	input       handler.Input
	apiKeyParam string
	example     bool
	json        bool
}

func parseGenerate(args []string, settings *config.Settings, output io.Writer) (generateOptions, error) {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts generateOptions
	var model string
	params := &opts.input.Params
	fs.StringVar(&params.APIKey, "api-key", "", "Bearer API key for the generation endpoint")
	fs.StringVar(&opts.apiKeyParam, "api-key-param", "", "SSM Parameter Store path holding the API key")
	fs.StringVar(&params.BaseURL, "base-url", settings.BaseURL, "OpenAI-compatible API base URL")
	fs.StringVar(&model, "model", string(image.DefaultModel), "Model: flux.1-schnell, dall-e-3 or dall-e-2")
	fs.StringVar(&params.Size, "size", image.DefaultSize, "Image size: "+strings.Join(image.Sizes, ", "))
	fs.StringVar(&params.Quality, "quality", image.DefaultQuality, "Quality, dall-e-3 only: standard or hd")
	fs.StringVar(&params.Style, "style", image.DefaultStyle, "Style, dall-e-3 only: vivid or natural")
	fs.StringVar(&params.Prompt, "prompt", "", "Text prompt describing the image")
	fs.BoolVar(&opts.example, "example", false, "Use a random example prompt when -prompt is empty")
	fs.StringVar(&opts.input.Output, "out", "generated_image.png", "Output file path or s3://bucket/key")
	fs.StringVar(&opts.input.Format, "format", "", "Output format: png or jpeg, must match a .png/.jpg -out extension (default from -out extension)")
	fs.BoolVar(&opts.json, "json", false, "Print the result as JSON")

	if err := fs.Parse(args); err != nil {
		return generateOptions{}, err
	}
	if fs.NArg() > 0 {
		return generateOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if params.APIKey != "" && opts.apiKeyParam != "" {
		return generateOptions{}, errors.New("-api-key and -api-key-param are mutually exclusive")
	}
	params.Model = image.Model(model)
	return opts, nil
}

func generate(ctx context.Context, injector *do.Injector, settings *config.Settings, args []string) error {
	opts, err := parseGenerate(args, settings, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.apiKeyParam != "" {
		key, err := do.MustInvoke[param.Fetcher](injector).Fetch(ctx, opts.apiKeyParam)
		if err != nil {
			return err
		}
		opts.input.Params.APIKey = key
	}
	if strings.TrimSpace(opts.input.Params.Prompt) == "" && opts.example {
		example, err := do.MustInvoke[*prompt.Randomizer](injector).Randomize(ctx)
		if err != nil {
			return err
		}
		opts.input.Params.Prompt = example
	}

	out, err := do.MustInvoke[*handler.Handler](injector).Handle(ctx, opts.input)
	if err != nil {
		return err
	}
	return printOutput(os.Stdout, out, opts.json)
}

func printOutput(w io.Writer, out handler.Output, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintf(w, "Image generated\nModel: %s\nSize: %dx%d\nPrompt: %s\nURL: %s\nSaved: %s (%s)\n",
		out.Model, out.Width, out.Height, out.Prompt, out.URL, out.Destination, out.Format)
	return err
}
