package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/api/controller"
	"github.com/bassista/tankwatch/internal/api/middleware"
	"github.com/bassista/tankwatch/internal/app"
)

func NewSnapshotRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	g := group.Group("")
	g.Use(middleware.RequestTimeout(timeout))

	sc := controller.NewSnapshotController(appCtx.Cache, appCtx.Profiles, appCtx.Source, appCtx.Clock, appCtx.Config.Cache.StalenessThreshold)

	g.GET("stores", sc.ListStores)
	g.GET("stores/:storeId", sc.GetSnapshot)
	g.GET("stores/:storeId/tanks/:tankId", sc.GetTank)
	g.GET("diagnostics", sc.GetDiagnostics)
}
