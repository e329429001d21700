package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// NewRouter creates the gin engine with middleware and the engine's routes
func NewRouter(cfg Config, e *engine.Engine, log *logger.CtxZapLogger) *gin.Engine {
	if log == nil {
		log = logger.GetLogger("httpx")
	}
	gin.SetMode(cfg.Mode)

	// gin.New() instead of gin.Default(): Logger and Recovery are our own
	router := gin.New()
	router.HandleMethodNotAllowed = true

	if cfg.Trace {
		router.Use(otelgin.Middleware(e.Config().Telemetry.ServiceName))
	}
	if cfg.RequestLog.Enabled {
		router.Use(RequestLog(log, cfg.RequestLog))
	}
	router.Use(ErrorLoggingMiddleware(cfg.ErrorLogging))
	router.Use(Recovery(log))

	router.NoRoute(NoRouteHandler())
	router.NoMethod(NoMethodHandler())

	NewAPI(e).Register(router)
	return router
}

// Server HTTP server for one engine
type Server struct {
	cfg    Config
	router *gin.Engine
	logger *logger.CtxZapLogger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	errCh    chan error
}

// NewServer creates a server; Start binds the address
func NewServer(cfg Config, e *engine.Engine, log *logger.CtxZapLogger) *Server {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("httpx")
	}
	return &Server{
		cfg:    cfg,
		router: NewRouter(cfg, e, log),
		logger: log,
	}
}

// Router returns the gin engine (for registering extra routes)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start binds the address and serves in the background.
// A bind error is returned immediately; serve errors inside the first 50ms too.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("地址 %s 不可用: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.errCh = make(chan error, 1)

	srv, errCh := s.srv, s.errCh
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.logger.ErrorCtx(ctx, "❌ HTTP server start failed", zap.Error(err))
		return fmt.Errorf("HTTP 服务启动失败: %w", err)
	case <-time.After(50 * time.Millisecond):
		s.logger.InfoCtx(ctx, "✅ HTTP server started",
			zap.String("addr", ln.Addr().String()),
			zap.String("mode", s.cfg.Mode))
		return nil
	}
}

// Addr is the bound address; empty before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down within ShutdownTimeout
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.ErrorCtx(ctx, "HTTP server shutdown failed", zap.Error(err))
		return err
	}
	s.logger.InfoCtx(ctx, "✅ HTTP server stopped")
	return nil
}
