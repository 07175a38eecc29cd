package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/tracker"
)

type Server struct {
	tracker   *tracker.Tracker
	port      int
	token     string
	tokenFile string
	engine    *gin.Engine
	startTime time.Time
	logger    *zap.Logger
}

func New(t *tracker.Tracker, port int, tokenFile string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		tracker:   t,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		engine:    gin.New(),
		startTime: time.Now(),
		logger:    logger,
	}

	srv.engine.Use(gin.Recovery(), srv.requestLogger())
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/fg.js", s.handleTrackingScript)

	public := s.engine.Group("/v1", cors)
	public.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	public.GET("/assign", s.handleAssign)
	public.POST("/track", s.handleTrack)
	public.POST("/events", s.handleFunnelEvent)

	// Reporting endpoints (protected)
	protected := s.engine.Group("/v1", s.authMiddleware())
	protected.GET("/report", s.handleReport)
	protected.GET("/results/:experiment", s.handleResults)
	protected.GET("/funnels", s.handleFunnels)
	protected.DELETE("/data", s.handleClear)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", zap.String("path", s.tokenFile), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.Int("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Next()
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
