package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/scheduler"
)

// StoreRefresher triggers refreshes on demand.
type StoreRefresher interface {
	RefreshStore(ctx context.Context, storeID string, force bool) scheduler.StoreResult
	RunCycle(ctx context.Context, force bool) scheduler.CycleResult
}

// RefreshController exposes manual refresh triggers. Both endpoints force a
// fetch regardless of staleness and return once the merge has completed, so
// a subsequent snapshot read sees the fresh data.
type RefreshController struct {
	refresher StoreRefresher
	profiles  ProfileView
}

func NewRefreshController(refresher StoreRefresher, profiles ProfileView) *RefreshController {
	return &RefreshController{refresher: refresher, profiles: profiles}
}

// RefreshStore forces a refresh of one store.
func (rc *RefreshController) RefreshStore(c *gin.Context) {
	storeID := c.Param("storeId")
	if !rc.profiles.IsVisible(storeID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
		return
	}

	result := rc.refresher.RefreshStore(c.Request.Context(), storeID, true)
	if result.Outcome == scheduler.OutcomeFailed {
		logger.WithStore("refresh_controller", storeID).Errorf("forced refresh failed: %s", result.Error)
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshAll forces a refresh of every visible store.
func (rc *RefreshController) RefreshAll(c *gin.Context) {
	cycle := rc.refresher.RunCycle(c.Request.Context(), true)
	c.JSON(http.StatusOK, cycle)
}
