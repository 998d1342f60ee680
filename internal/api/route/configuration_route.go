package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/api/controller"
	"github.com/bassista/tankwatch/internal/api/middleware"
	"github.com/bassista/tankwatch/internal/app"
)

func NewConfigurationRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	g := group.Group("")
	g.Use(middleware.RequestTimeout(timeout))

	cc := controller.NewConfigurationController(appCtx.Config)

	g.GET("configuration", cc.GetConfiguration)
}
