// Package api exposes the claim analysis pipeline over HTTP: a trigger
// endpoint, read endpoints for stored runs and reports, and a websocket
// stream of completed records.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/medclaims-analyzer-server/internal/domain"
	"github.com/medclaims-analyzer-server/internal/extract"
	"github.com/medclaims-analyzer-server/internal/middleware"
	"github.com/medclaims-analyzer-server/internal/service"
)

// Server represents the HTTP server.
type Server struct {
	cfg      *domain.Config
	analyzer *service.Analyzer
	store    domain.ClaimStore
	hub      *Hub
	router   *gin.Engine
	server   *http.Server
	log      *logrus.Logger
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg *domain.Config, analyzer *service.Analyzer, store domain.ClaimStore, hub *Hub, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(rateLimitMiddleware(cfg.Server.RatePerSecond, cfg.Server.RateBurst))

	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		store:    store,
		hub:      hub,
		router:   router,
		log:      logger,
	}
	s.setupRoutes()
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/claims/:id/analyze", s.handleAnalyze)
		v1.GET("/claims", s.handleListRecent)
		v1.GET("/claims/:id", s.handleGetLatest)
		v1.GET("/claims/:id/runs", s.handleListRuns)
		v1.GET("/claims/:id/report", s.handleGetReport)
		v1.GET("/stream", s.handleStream)
	}
}

// analyzeRequest is the trigger payload: the claim's documents.
type analyzeRequest struct {
	Documents []analyzeDocument `json:"documents" binding:"required,min=1"`
}

type analyzeDocument struct {
	FileName string `json:"file_name"`
	Type     string `json:"type"`
	Text     string `json:"text" binding:"required"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   service.PipelineVersion,
	})
}

// handleAnalyze triggers a new analysis run for a claim.
func (s *Server) handleAnalyze(c *gin.Context) {
	claimID := c.Param("id")

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error())
		return
	}

	docs := make([]extract.RawDocument, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, extract.RawDocument{
			FileName: d.FileName,
			Type:     domain.DocumentType(d.Type),
			Payload:  []byte(d.Text),
		})
	}

	record, err := s.analyzer.Analyze(c.Request.Context(), claimID, docs)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"claim_id":   claimID,
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		}).Error("Claim analysis failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "claim analysis failed")
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleGetLatest returns the most recent run for a claim.
func (s *Server) handleGetLatest(c *gin.Context) {
	record, err := s.store.GetLatest(c.Request.Context(), c.Param("id"))
	if err == domain.ErrNotFound {
		s.writeError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "claim not found")
		return
	}
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStore, "failed to load claim")
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleListRuns returns every run for a claim, newest first.
func (s *Server) handleListRuns(c *gin.Context) {
	records, err := s.store.ListRuns(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStore, "failed to list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim_id": c.Param("id"), "runs": records, "count": len(records)})
}

// handleListRecent returns the most recent runs across all claims.
func (s *Server) handleListRecent(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	records, err := s.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStore, "failed to list claims")
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": records, "count": len(records)})
}

// handleGetReport serves the markdown report artifact for a claim's
// latest run.
func (s *Server) handleGetReport(c *gin.Context) {
	record, err := s.store.GetLatest(c.Request.Context(), c.Param("id"))
	if err == domain.ErrNotFound {
		s.writeError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "claim not found")
		return
	}
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStore, "failed to load claim")
		return
	}
	if record.ReportArtifact == "" {
		s.writeError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "no report artifact for this claim")
		return
	}

	path := filepath.Join(s.cfg.Report.OutputDir, record.ReportArtifact+".md")
	if _, err := os.Stat(path); err != nil {
		s.writeError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "report artifact missing on disk")
		return
	}
	c.FileAttachment(path, record.ReportArtifact+".md")
}

// handleStream upgrades to a websocket delivering completed records.
func (s *Server) handleStream(c *gin.Context) {
	if s.hub == nil {
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeInternalServer, "streaming disabled")
		return
	}
	s.hub.ServeWS(c.Writer, c.Request)
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	perr := domain.NewPipelineError(code, "", message)
	perr.RequestID = c.GetString("request_id")
	c.JSON(status, gin.H{"error": perr})
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// rateLimitMiddleware applies a shared token bucket across all clients.
func rateLimitMiddleware(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": domain.NewPipelineError(domain.ErrCodeRateLimit, "", "rate limit exceeded"),
			})
			return
		}
		c.Next()
	}
}
