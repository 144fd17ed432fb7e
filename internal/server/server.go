package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"poc-router/apiconfig"
	"poc-router/artifacts"
	"poc-router/internal/server/middleware"
	"poc-router/powrouter"
	"poc-router/resultstore"
	"poc-router/validation"
)

type Server struct {
	e             *echo.Echo
	configManager *apiconfig.ConfigManager
	router        *powrouter.Router
	artifactStore *artifacts.ManagedStore
	resultStore   resultstore.ResultStorage
	detector      *validation.Detector
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithArtifactStore enables local artifact storage for the collector surface.
func WithArtifactStore(store *artifacts.ManagedStore) ServerOption {
	return func(s *Server) {
		s.artifactStore = store
	}
}

// WithResultStore enables persistence of validated results.
func WithResultStore(store resultstore.ResultStorage) ServerOption {
	return func(s *Server) {
		s.resultStore = store
	}
}

func NewServer(
	configManager *apiconfig.ConfigManager,
	router *powrouter.Router,
	opts ...ServerOption) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.TransparentErrorHandler
	e.Use(middleware.LoggingMiddleware)

	s := &Server{
		e:             e,
		configManager: configManager,
		router:        router,
		detector:      validation.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}

	g := e.Group("/api/v1/inference/pow/")
	g.POST("init/generate", s.postInitGenerate)
	g.POST("stop", s.postStop)
	g.GET("status", s.getStatus)
	g.POST("generate", s.postGenerate)
	g.GET("generate/:request_id", s.getGenerateResult)
	e.POST("/api/v1/inference/consensus", s.postConsensus)

	// Collector callbacks from backend nodes. Ingestion is rate limited
	// per IP since generation bursts can be large.
	ingestRateLimiter := echomw.RateLimiter(echomw.NewRateLimiterMemoryStoreWithConfig(
		echomw.RateLimiterMemoryStoreConfig{
			Rate:      300.0 / 60.0,
			Burst:     30,
			ExpiresIn: 3 * time.Minute,
		},
	))
	e.POST("/v2/poc-batches/generated", s.postGeneratedArtifacts, ingestRateLimiter)
	e.POST("/v2/poc-batches/validate", s.postValidateBatch)
	e.POST("/v2/poc-batches/validated", s.postValidatedResult)
	e.GET("/v2/poc-batches/validated/:request_id", s.getValidatedResult)

	return s
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
