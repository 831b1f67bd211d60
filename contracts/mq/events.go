package mq

import "time"

// Routing keys on the events exchange. One consumer queue per key.
const (
	RoutingKeyInvitationCreated  = "invitation.created"
	RoutingKeyInvitationAccepted = "invitation.accepted"
	RoutingKeyInvitationDeclined = "invitation.declined"
	RoutingKeyTaskAssigned       = "task.assigned"
	RoutingKeyCommentCreated     = "comment.created"
	RoutingKeyMemberRemoved      = "member.removed"
)

type InvitationCreatedPayload struct {
	EventID      string    `json:"event_id"`
	InvitationID int       `json:"invitation_id"`
	ProjectID    int       `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	InviteeID    int       `json:"invitee_id"`
	InviterID    int       `json:"inviter_id"`
	InviterName  string    `json:"inviter_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type InvitationAcceptedPayload struct {
	EventID      string    `json:"event_id"`
	InvitationID int       `json:"invitation_id"`
	ProjectID    int       `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	InviteeID    int       `json:"invitee_id"`
	InviteeName  string    `json:"invitee_name"`
	InviterID    int       `json:"inviter_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type InvitationDeclinedPayload struct {
	EventID      string    `json:"event_id"`
	InvitationID int       `json:"invitation_id"`
	ProjectID    int       `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	InviteeID    int       `json:"invitee_id"`
	InviteeName  string    `json:"invitee_name"`
	InviterID    int       `json:"inviter_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type TaskAssignedPayload struct {
	EventID     string    `json:"event_id"`
	TaskID      int       `json:"task_id"`
	ProjectID   int       `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Title       string    `json:"title"`
	AssigneeID  int       `json:"assignee_id"`
	AssignerID  int       `json:"assigner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type CommentCreatedPayload struct {
	EventID    string    `json:"event_id"`
	CommentID  int       `json:"comment_id"`
	TaskID     int       `json:"task_id"`
	TaskTitle  string    `json:"task_title"`
	ProjectID  int       `json:"project_id"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AssigneeID int       `json:"assignee_id"` // 0 when the task is unassigned
	CreatedAt  time.Time `json:"created_at"`
}

type MemberRemovedPayload struct {
	EventID     string    `json:"event_id"`
	ProjectID   int       `json:"project_id"`
	ProjectName string    `json:"project_name"`
	UserID      int       `json:"user_id"`
	RemovedBy   int       `json:"removed_by"`
	CreatedAt   time.Time `json:"created_at"`
}
