// Package server exposes the ingestion and query HTTP API over gin.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vantage-tools/vantage/internal/models"
	"github.com/vantage-tools/vantage/internal/store"
)

// maxBodyBytes caps an ingestion payload. Oversized batches are rejected
// outright with no partial processing.
const maxBodyBytes = 10 << 20 // 10 MB

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Store *store.Store
	Port  int
	Out   io.Writer

	// Observer, when set, receives each accepted batch after it has been
	// stored. Used by the notifier; failures there never affect ingestion.
	Observer func([]models.LogRecord)
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("server: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 4613
	}

	router := NewRouter(opts.Store, opts.Observer)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Vantage listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin router with all routes registered.
func NewRouter(st *store.Store, observer func([]models.LogRecord)) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/logs", handleIngest(st, observer))
	router.GET("/logs", handleQuery(st))
	router.GET("/logs/search", handleSearch(st))
	router.DELETE("/logs", handleClear(st))
	router.GET("/health", handleHealth(st))

	return router
}
