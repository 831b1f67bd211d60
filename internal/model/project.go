package model

import (
	"math"
	"time"
)

type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Template    string    `json:"template"` // e.g. "software", "marketing", "design"
	Progress    int       `json:"progress"` // 0-100, derived from task completion
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectSummary is a project row joined with the caller's membership role,
// as returned by the project list endpoint.
type ProjectSummary struct {
	Project
	Role      Role `json:"role"`
	TaskCount int  `json:"task_count"`
}

// ProjectDetail is the full view of a single project: the board the client
// renders. It is what the Redis detail cache stores.
type ProjectDetail struct {
	Project
	Members    []ProjectMember `json:"members"`
	Milestones []Milestone     `json:"milestones"`
	Tasks      []Task          `json:"tasks"`
}

// ComputeProgress returns the derived completion percentage for a project:
// round(100 * completed / total), or 0 for a project with no tasks.
func ComputeProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
