package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/api/handlers"
	"github.com/cristianemoyano/swarm-autoscaler/api/middleware"
	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/config"
	"github.com/gin-gonic/gin"
)

// Deps are the running components the HTTP surface reads from.
type Deps struct {
	Registry *registry.Registry
	History  events.HistoryStore
	Docker   *swarm.Client
	Version  string
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.APIConfig
	deps       Deps
}

func NewServer(cfg config.APIConfig, mode string, deps Deps) *Server {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	s := &Server{
		router: gin.New(),
		config: cfg,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.TraceID())
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Registry, s.deps.Version)
	servicesHandler := handlers.NewServicesHandler(s.deps.Registry, s.deps.History)
	eventsHandler := handlers.NewEventsHandler(s.deps.History)
	statsHandler := handlers.NewStatsHandler(s.deps.Docker)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)
	s.router.GET("/metrics", healthHandler.Metrics)

	api := s.router.Group("/api")
	{
		api.GET("/services", servicesHandler.List)
		api.GET("/services/:name/metrics", servicesHandler.GetMetrics)
		api.POST("/refresh", servicesHandler.Refresh)
		api.POST("/clear", servicesHandler.ClearMetrics)

		api.GET("/events", eventsHandler.List)
		api.POST("/events/clear", eventsHandler.Clear)

		// Peer endpoint for the docker metrics source fan-out.
		api.GET("/container/stats", statsHandler.Get)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
