// Package server exposes the question answering engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"commercial-rag/internal/models"
	"commercial-rag/internal/parser"
	"commercial-rag/internal/rag"
)

// Asker answers a question from the indexed documents.
type Asker interface {
	Ask(ctx context.Context, question string, history []models.Message) (*models.QueryOutcome, error)
}

// Indexer searches and rebuilds the document index.
type Indexer interface {
	Search(ctx context.Context, query string, topK int) []models.SearchResult
	ReindexAll(ctx context.Context, folder string) models.ReindexStats
}

type Server struct {
	asker        Asker
	indexer      Indexer
	documentsDir string
	version      string
	router       *gin.Engine
}

func New(asker Asker, indexer Indexer, documentsDir, version string) *Server {
	s := &Server{
		asker:        asker,
		indexer:      indexer,
		documentsDir: documentsDir,
		version:      version,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	r.POST("/query", s.query)
	r.GET("/search", s.search)

	admin := r.Group("/admin/documents")
	admin.GET("", s.listDocuments)
	admin.POST("/reindex", s.reindex)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
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

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": s.version})
}

type queryRequest struct {
	Question string           `json:"question"`
	History  []models.Message `json:"history"`
}

type queryResponse struct {
	Answer       string   `json:"answer"`
	Sources      []string `json:"sources"`
	TokensInput  int      `json:"tokens_input"`
	TokensOutput int      `json:"tokens_output"`
	CostUSD      float64  `json:"cost_usd"`
	TimeSeconds  float64  `json:"time_seconds"`
	Error        string   `json:"error,omitempty"`
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	outcome, err := s.asker.Ask(c.Request.Context(), question, req.History)
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, queryResponse{
		Answer:       outcome.Answer,
		Sources:      outcome.Sources,
		TokensInput:  outcome.TokensInput,
		TokensOutput: outcome.TokensOutput,
		CostUSD:      outcome.CostUSD,
		TimeSeconds:  outcome.ElapsedSeconds(),
		Error:        outcome.Error,
	})
}

func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "query parameter q is required"})
		return
	}
	topK := models.DefaultTopK
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "top_k must be a positive integer"})
			return
		}
		topK = n
	}
	c.JSON(http.StatusOK, s.indexer.Search(c.Request.Context(), q, topK))
}

type reindexResponse struct {
	Status             string  `json:"status"`
	ChunksIndexed      int     `json:"chunks_indexed"`
	TimeSeconds        float64 `json:"time_seconds"`
	DocumentsProcessed int     `json:"documents_processed"`
	Error              string  `json:"error,omitempty"`
}

func (s *Server) reindex(c *gin.Context) {
	// The rebuild outlives a disconnected client.
	stats := s.indexer.ReindexAll(context.WithoutCancel(c.Request.Context()), s.documentsDir)

	code := http.StatusOK
	switch {
	case errors.Is(stats.Err, rag.ErrReindexInProgress):
		code = http.StatusConflict
	case stats.Status != models.StatusSuccess:
		code = http.StatusInternalServerError
	}
	c.JSON(code, reindexResponse{
		Status:             stats.Status,
		ChunksIndexed:      stats.ChunksIndexed,
		TimeSeconds:        stats.ElapsedSeconds(),
		DocumentsProcessed: stats.DocumentsFound,
		Error:              stats.Error,
	})
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := parser.ListDocuments(s.documentsDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.documentsDir).Msg("Error listing documents")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, docs)
}
