package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

type StatsHandler struct {
	store database.Store
}

func NewStatsHandler(store database.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// GetAdminStats returns site totals (admin)
func (h *StatsHandler) GetAdminStats(c *gin.Context) {
	ctx := c.Request.Context()
	var stats models.SiteStats
	var err error

	if stats.TotalUsers, err = h.store.CountUsers(ctx, ""); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if stats.TotalPosts, err = h.store.CountPosts(ctx, ""); err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	if stats.TotalComments, err = h.store.CountAllComments(ctx); err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetCounts returns user totals by badge and the post total
func (h *StatsHandler) GetCounts(c *gin.Context) {
	ctx := c.Request.Context()
	var counts models.MemberCounts
	var err error

	if counts.TotalUsers, err = h.store.CountUsers(ctx, ""); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if counts.BronzeUsers, err = h.store.CountUsers(ctx, models.BadgeBronze); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if counts.GoldenUsers, err = h.store.CountUsers(ctx, models.BadgeGold); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if counts.TotalPosts, err = h.store.CountPosts(ctx, ""); err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	c.JSON(http.StatusOK, counts)
}
