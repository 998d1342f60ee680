package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bassista/tankwatch/internal/api/middleware"
	"github.com/bassista/tankwatch/internal/app"
)

// SetupRoutes registers every endpoint on the engine.
func SetupRoutes(r *gin.Engine, appCtx *app.App) {
	r.Use(middleware.HoneybadgerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	NewSnapshotRouter(appCtx.Config.Server.RequestTimeout, api, appCtx)
	NewConfigurationRouter(appCtx.Config.Server.RequestTimeout, api, appCtx)

	// Forced refreshes wait for the upstream fetch, so they get the fetch
	// timeout rather than the snapshot-read one.
	NewRefreshRouter(appCtx.Config.Telemetry.FetchTimeout, api, appCtx)
}
