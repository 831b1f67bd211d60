package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service/task"
)

// MilestoneHandler rides on the task service, which owns milestones.
type MilestoneHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewMilestoneHandler(tasks *task.Service, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{tasks: tasks, logger: logger}
}

type milestoneRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// Create handles POST /projects/:id/milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.tasks.CreateMilestone(c.Request.Context(), projectID, uid, req.Title, req.Description, req.DueDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Milestone created",
		zap.Int("milestone_id", m.ID),
		zap.Int("project_id", projectID),
	)
	c.JSON(http.StatusCreated, gin.H{"milestone": m})
}

// Update handles PUT /milestones/:id
func (h *MilestoneHandler) Update(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	milestoneID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.tasks.UpdateMilestone(c.Request.Context(), milestoneID, uid, req.Title, req.Description, req.DueDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// Delete handles DELETE /milestones/:id
func (h *MilestoneHandler) Delete(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	milestoneID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.tasks.DeleteMilestone(c.Request.Context(), milestoneID, uid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
