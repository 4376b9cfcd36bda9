package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware())
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/info", handler.Info)
	v1.GET("/ranges", handler.Ranges)
	v1.GET("/tile/:z/:x/:y", handler.Tile)
	v1.PUT("/tile/:z/:x/:y", handler.PutTile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		if c.Request.URL.Path == "/api/v1/healthz" {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"size", c.Writer.Size(),
		)
	}
}
