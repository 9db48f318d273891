// Package server is the HTTP surface: request parsing, response shaping
// and the glue between storage, metadata, reconciler and scraper. Each
// request re-reads the metadata document; there is no shared in-process
// state and no locking, acceptable for a single-operator tool.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixelcrate/pixelcrate/internal/logging"
	"github.com/pixelcrate/pixelcrate/internal/metadata"
	"github.com/pixelcrate/pixelcrate/internal/scrape"
	"github.com/pixelcrate/pixelcrate/internal/storage"
)

// Server wires the HTTP routes to the application components.
type Server struct {
	store   storage.Storage
	meta    *metadata.Store
	scraper *scrape.Scraper
	logger  *logging.Logger
	engine  *gin.Engine
}

// Options tunes server construction.
type Options struct {
	Debug bool
}

// New builds the router. The storage backend may be storage.Unconfigured;
// endpoints then answer 503 instead of crashing.
func New(store storage.Storage, meta *metadata.Store, scraper *scrape.Scraper, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:   store,
		meta:    meta,
		scraper: scraper,
		logger:  logging.NewComponentLogger("server"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.Debug {
		engine.Use(gin.Logger())
	}

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	engine.Use(cors.New(corsCfg))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// JSON endpoints get response compression; raw image bytes do not.
	api := engine.Group("/", gzipMiddleware())
	{
		api.POST("/upload", s.handleUpload)
		api.POST("/extract-url", s.handleExtractURL)
		api.GET("/images", s.handleListImages)
		api.GET("/images/:filename/info", s.handleImageInfo)
		api.DELETE("/images/:filename", s.handleDeleteImage)
		api.DELETE("/images", s.handleBulkDelete)
	}
	engine.GET("/images/:filename", s.handleGetImage)

	s.engine = engine
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return srv.ListenAndServe()
}
