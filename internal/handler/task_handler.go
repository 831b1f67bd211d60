package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/service/task"
)

type TaskHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// Create handles POST /projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Title       string             `json:"title"`
		Description string             `json:"description"`
		Status      model.TaskStatus   `json:"status"`
		Priority    model.TaskPriority `json:"priority"`
		AssigneeID  *int               `json:"assignee_id"`
		DueDate     *time.Time         `json:"due_date"`
		MilestoneID *int               `json:"milestone_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	t, err := h.tasks.Create(c.Request.Context(), projectID, uid, task.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		MilestoneID: req.MilestoneID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Task created",
		zap.Int("task_id", t.ID),
		zap.Int("project_id", projectID),
	)
	c.JSON(http.StatusCreated, gin.H{"task": t})
}

// Update handles PATCH /tasks/:id. The body is a partial update: absent
// fields stay untouched, the clear_* flags null a column out.
func (h *TaskHandler) Update(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var u model.TaskUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	t, err := h.tasks.Update(c.Request.Context(), taskID, uid, &u)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), taskID, uid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Move handles POST /tasks/:id/move. milestone_id picks the column the
// task lands in (null clears it); before_task_id slots the task in front
// of another one, renumbering the project's positions.
func (h *TaskHandler) Move(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		MilestoneID  *int `json:"milestone_id"`
		BeforeTaskID *int `json:"before_task_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	t, err := h.tasks.Move(c.Request.Context(), taskID, uid, req.MilestoneID, req.BeforeTaskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}
