package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/api/controller"
	"github.com/bassista/tankwatch/internal/api/middleware"
	"github.com/bassista/tankwatch/internal/app"
)

func NewRefreshRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	g := group.Group("")
	g.Use(middleware.RequestTimeout(timeout))

	rc := controller.NewRefreshController(appCtx.Refresher, appCtx.Profiles)

	g.POST("refresh", rc.RefreshAll)
	g.POST("stores/:storeId/refresh", rc.RefreshStore)
}
