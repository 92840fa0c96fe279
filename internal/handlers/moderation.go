package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/models"
	"github.com/forumx/backend/internal/moderation"
)

type ModerationHandler struct {
	pipeline *moderation.Pipeline
}

func NewModerationHandler(pipeline *moderation.Pipeline) *ModerationHandler {
	return &ModerationHandler{pipeline: pipeline}
}

// GetReports returns the report queue with each comment resolved (admin)
func (h *ModerationHandler) GetReports(c *gin.Context) {
	reports, err := h.pipeline.Reports(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(reports))
}

// TakeAction resolves a report (admin)
func (h *ModerationHandler) TakeAction(c *gin.Context) {
	var input models.ReportActionRequest
	if !bindJSON(c, &input) {
		return
	}

	report, err := h.pipeline.ResolveReport(c.Request.Context(), c.Param("id"), input.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Action taken successfully", "status": report.Status})
}
