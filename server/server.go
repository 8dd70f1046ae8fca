// Package server assembles the HTTP surface and background workers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/tastevec/internal/profile"
	"github.com/hrygo/tastevec/plugin/ai"
	"github.com/hrygo/tastevec/plugin/ai/timeout"
	"github.com/hrygo/tastevec/server/internal/observability"
	apiv1 "github.com/hrygo/tastevec/server/router/api/v1"
	"github.com/hrygo/tastevec/server/runner/embedding"
	"github.com/hrygo/tastevec/server/service/recommend"
	"github.com/hrygo/tastevec/server/service/taste"
	"github.com/hrygo/tastevec/store"
)

const (
	shutdownTimeout       = 10 * time.Second
	rateLimitEvictionTick = time.Minute
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	dispatcher *taste.Dispatcher
	index      *recommend.StoreIndex
	apiV1      *apiv1.APIV1Service
	// runner is nil when no embedding provider is configured.
	runner *embedding.Runner
}

// NewServer wires services on top of a migrated store.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	s := &Server{
		Profile:  profile,
		Store:    store,
		registry: registry,
		metrics:  metrics,
	}

	updater := taste.NewUpdater(store, taste.Config{
		MaxAttempts: profile.FeedbackMaxAttempts,
		Backoff:     taste.FixedBackoff(profile.FeedbackBackoff),
	}, metrics)
	s.dispatcher = taste.NewDispatcher(updater, profile.FeedbackConcurrency)
	s.index = recommend.NewStoreIndex(store, recommend.DefaultBreakerConfig())
	retriever := recommend.NewRetriever(store, s.index, metrics)
	s.apiV1 = apiv1.NewAPIV1Service(profile, store, retriever, s.dispatcher)

	if profile.IsAIEnabled() {
		embeddingService, err := newEmbeddingService(ctx, profile)
		if err != nil {
			// Recommendations keep working on existing embeddings.
			slog.Warn("embedding provider unavailable, content embedding disabled", "error", err)
		} else {
			s.runner = embedding.NewRunner(store, embeddingService, metrics)
		}
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())
	s.echoServer = echoServer

	echoServer.GET("/healthz", s.healthz)
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	s.apiV1.RegisterRoutes(echoServer)

	return s, nil
}

func newEmbeddingService(ctx context.Context, profile *profile.Profile) (ai.EmbeddingService, error) {
	cfg := ai.NewConfigFromProfile(profile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()
	return ai.Initialize(ctx, &cfg.Embedding)
}

type healthResponse struct {
	Status string `json:"status"`
	Index  string `json:"index"`
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Index: s.index.State()})
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// EmbeddingRunner returns the content embedding runner, or nil when disabled.
func (s *Server) EmbeddingRunner() *embedding.Runner {
	return s.runner
}

// Run serves HTTP and runs background workers until ctx is canceled or the
// listener fails, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)

	g.Go(func() error {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start HTTP server")
		}
		return nil
	})
	g.Go(func() error {
		s.apiV1.RateLimiter().RunEviction(gctx, rateLimitEvictionTick)
		return nil
	})
	if s.runner != nil {
		g.Go(func() error {
			s.runner.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.Shutdown(context.WithoutCancel(ctx))
		return nil
	})

	slog.Info("tastevec started", "address", address, "mode", s.Profile.Mode, "driver", s.Profile.Driver)
	return g.Wait()
}

// Shutdown stops accepting requests and drains in-flight feedback.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	s.dispatcher.Close()
	slog.Info("tastevec stopped properly")
}
