package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service/suggest"
)

type SuggestHandler struct {
	suggest *suggest.Service
	logger  *zap.Logger
}

func NewSuggestHandler(suggest *suggest.Service, logger *zap.Logger) *SuggestHandler {
	return &SuggestHandler{suggest: suggest, logger: logger}
}

// Generate handles POST /projects/:id/suggestions. The response is a
// proposal only; nothing is persisted until the client applies it.
func (h *SuggestHandler) Generate(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Description string `json:"description"`
		ProjectType string `json:"project_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	suggestions, err := h.suggest.GenerateTasks(c.Request.Context(), projectID, uid, req.Description, req.ProjectType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// Apply handles POST /projects/:id/suggestions/apply, creating the chosen
// suggestions as real tasks.
func (h *SuggestHandler) Apply(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Suggestions []suggest.Suggestion `json:"suggestions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(req.Suggestions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no suggestions to apply"})
		return
	}

	created, err := h.suggest.Apply(c.Request.Context(), projectID, uid, req.Suggestions)
	if err != nil {
		// Creates before the failing one are committed; the client sees
		// them on the next project fetch.
		h.logger.Warn("Suggestion apply aborted",
			zap.Int("project_id", projectID),
			zap.Int("created", len(created)),
			zap.Error(err),
		)
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Suggestions applied",
		zap.Int("project_id", projectID),
		zap.Int("task_count", len(created)),
	)
	c.JSON(http.StatusCreated, gin.H{"tasks": created})
}
