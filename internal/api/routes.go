package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Pipeline Inferer
	Logger   *slog.Logger
	// Metrics is optional; nil disables HTTP counters.
	Metrics  HTTPObserver
	// Gatherer backs /metrics; nil omits the route.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware())
	if d.Metrics != nil {
		router.Use(MetricsMiddleware(d.Metrics))
	}
	SetupRoutes(router, d)
	return router
}

// SetupRoutes registers the API on router.
func SetupRoutes(router *gin.Engine, d Deps) {
	router.GET("/health", HealthCheck)
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/parameters", ListParameters)
		v1.POST("/validate", HandleValidate(d.Logger))
		v1.POST("/predict", HandlePredict(d.Pipeline, d.Logger))
	}
}
