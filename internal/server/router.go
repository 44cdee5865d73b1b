// Package server exposes the HTTP API: quota lookups, synchronous
// generation runs and project reads, all behind bearer auth.
package server

import (
	"database/sql"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/auth"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/pipeline"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/providers"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

// Deps carries everything the router wires together. Uploader may be nil,
// in which case the upload route is not registered.
type Deps struct {
	Tokens       *auth.TokenService
	Gate         *quota.Gate
	Orchestrator *pipeline.Orchestrator
	Projects     *pipeline.ProjectStore
	Uploader     providers.BlobUploader
	DB           *sql.DB
	Logger       logger.Logger
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(deps.Logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	h := &handlers{
		gate:         deps.Gate,
		orchestrator: deps.Orchestrator,
		projects:     deps.Projects,
		uploader:     deps.Uploader,
		logger:       deps.Logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", RequireAuth(deps.Tokens))
	{
		v1.GET("/usage/:kind", h.getUsage)
		v1.POST("/generations", h.createGeneration)
		v1.GET("/projects/:id", h.getProject)
		if deps.Uploader != nil {
			v1.POST("/uploads", h.uploadAsset)
		}
	}

	return router
}
