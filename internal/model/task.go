package model

import "time"

// TaskStatus represents the current state of a task on the board.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusCompleted
}

// TaskPriority represents task priority level.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Task struct {
	ID          int          `json:"id"`
	ProjectID   int          `json:"project_id"`
	MilestoneID *int         `json:"milestone_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssigneeID  *int         `json:"assignee_id,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Position    int          `json:"position"` // dense 1..N ordering within the project
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskUpdate carries a partial update: only non-nil fields are applied.
// ClearMilestone/ClearAssignee/ClearDueDate distinguish "set to null" from
// "leave unchanged".
type TaskUpdate struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	AssigneeID  *int          `json:"assignee_id,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	MilestoneID *int          `json:"milestone_id,omitempty"`

	ClearAssignee  bool `json:"clear_assignee,omitempty"`
	ClearDueDate   bool `json:"clear_due_date,omitempty"`
	ClearMilestone bool `json:"clear_milestone,omitempty"`
}

// Empty reports whether the update would touch nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Priority == nil && u.AssigneeID == nil && u.DueDate == nil &&
		u.MilestoneID == nil && !u.ClearAssignee && !u.ClearDueDate && !u.ClearMilestone
}

type Milestone struct {
	ID          int        `json:"id"`
	ProjectID   int        `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
