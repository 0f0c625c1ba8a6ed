// Package api exposes the execution core over HTTP: submit and track
// executions, inspect venues, prices, and metrics, and stream engine events.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/internal/gateway"
	"execution-core/internal/monitor"
	"execution-core/pkg/ident"
)

const recentResultsCap = 200

// Server wires HTTP endpoints around the registry and the async executor.
type Server struct {
	Router    *gin.Engine
	Registry  *gateway.Registry
	Async     *engine.AsyncExecutor
	Bus       *events.Bus
	Metrics   *monitor.ExecutionMetrics
	Ident     *ident.Generator
	Log       *zap.Logger
	JWTSecret string
	Meta      SystemMeta

	resultsMu sync.RWMutex
	results   []engine.ExecutionResult
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	Version  string
	Language string
}

func NewServer(registry *gateway.Registry, async *engine.AsyncExecutor, bus *events.Bus, metrics *monitor.ExecutionMetrics, idGen *ident.Generator, log *zap.Logger, jwtSecret string, meta SystemMeta) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware(log))
	r.Use(TimeoutMiddleware(5 * time.Minute)) // executions may legitimately rest for a while
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Registry:  registry,
		Async:     async,
		Bus:       bus,
		Metrics:   metrics,
		Ident:     idGen,
		Log:       log,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/orders", s.executeOrder)
			protected.POST("/orders/async", s.executeOrderAsync)
			protected.GET("/results", s.getResults)
			protected.GET("/venues", s.getVenues)
			protected.GET("/prices", s.getPrices)
			protected.GET("/metrics", s.getMetrics)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CollectResults drains the async executor's result channel into the recent
// results ring. Run it as a goroutine; it exits when the channel closes.
func (s *Server) CollectResults() {
	if s.Async == nil {
		return
	}
	for res := range s.Async.Results() {
		s.resultsMu.Lock()
		s.results = append(s.results, res)
		if len(s.results) > recentResultsCap {
			s.results = s.results[len(s.results)-recentResultsCap:]
		}
		s.resultsMu.Unlock()
	}
}

func (s *Server) recentResults() []engine.ExecutionResult {
	s.resultsMu.RLock()
	defer s.resultsMu.RUnlock()
	out := make([]engine.ExecutionResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
