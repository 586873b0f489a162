package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handle"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/metrics"
	"github.com/dmorgan81/imagegen/internal/render"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	html     http.Handler
	image    *handle.ImageHandler
	sessions *session.Store
	recorder *metrics.Recorder
	gatherer prometheus.Gatherer
	settings *config.Settings
}

func New(html http.Handler, image *handle.ImageHandler, sessions *session.Store,
	recorder *metrics.Recorder, gatherer prometheus.Gatherer, settings *config.Settings) *Server {
	return &Server{
		html:     html,
		image:    image,
		sessions: sessions,
		recorder: recorder,
		gatherer: gatherer,
		settings: settings,
	}
}

func NewServer(i *do.Injector) (*Server, error) {
	return New(
		do.MustInvoke[*handle.HtmlHandler](i),
		do.MustInvoke[*handle.ImageHandler](i),
		do.MustInvoke[*session.Store](i),
		do.MustInvoke[*metrics.Recorder](i),
		do.MustInvoke[*prometheus.Registry](i),
		do.MustInvoke[*config.Settings](i),
	), nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.html)
	mux.HandleFunc("POST /generate", s.image.Generate)
	mux.HandleFunc("GET /image.png", s.image.Download(render.PNG))
	mux.HandleFunc("GET /image.jpg", s.image.Download(render.JPEG))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return s.instrument(mux)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := lo.Ternary(r.Pattern == "", "unmatched", r.Pattern)
		s.recorder.ObserveHTTP(r.Method, route, sw.status, time.Since(start))
		log.FromContextOrDiscard(r.Context()).Debug("served request",
			"method", r.Method, "route", route, "status", sw.status, "duration", time.Since(start))
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests. Idle
// sessions are expired in the background.
func (s *Server) Run(ctx context.Context) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("server").With("addr", s.settings.ListenAddr)

	srv := &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(max(s.settings.SessionTTL/4, time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := s.sessions.Expire(s.settings.SessionTTL); n > 0 {
					log.Info("expired idle sessions", "count", n)
				}
			}
		}
	})
	return group.Wait()
}
