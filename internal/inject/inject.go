package inject

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagegen/internal/acquire"
	settings "github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handle"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/metrics"
	"github.com/dmorgan81/imagegen/internal/page"
	"github.com/dmorgan81/imagegen/internal/param"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/server"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do"
)

// Setup registers every provider lazily; AWS clients are only built when a
// command actually needs S3 or Parameter Store.
func Setup(ctx context.Context, s *settings.Settings) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*settings.Settings](injector, s)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[*prometheus.Registry](injector, func(i *do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg, nil
	})
	do.Provide[*metrics.Recorder](injector, func(i *do.Injector) (*metrics.Recorder, error) {
		return metrics.NewRecorder(do.MustInvoke[*prometheus.Registry](i)), nil
	})

	do.ProvideNamedValue[[]string](injector, "prompts", prompt.Examples)
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[image.Generator](injector, image.NewOpenAIGenerator)
	do.Provide[*acquire.Acquirer](injector, acquire.NewAcquirer)
	do.Provide[*store.Resolver](injector, store.NewResolver)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*session.Store](injector, session.NewSessionStore)

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*handle.ImageHandler](injector, handle.NewImageHandler)
	do.Provide[*handle.HtmlHandler](injector, handle.NewHtmlHandler)
	do.Provide[*server.Server](injector, server.NewServer)

	return injector
}
