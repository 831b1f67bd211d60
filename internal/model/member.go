package model

import "time"

// Role is a project-scoped role controlling what a member may do.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember || r == RoleViewer
}

type ProjectMember struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"project_id"`
	UserID    int       `json:"user_id"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`

	// Joined user fields for display
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	JobTitle    string `json:"job_title"`
}

// InvitationStatus tracks the lifecycle of an invitation:
// pending -> accepted | declined. A pending invitation may also be
// cancelled (deleted) by the inviter; resolved ones never change again.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type Invitation struct {
	ID         int              `json:"id"`
	ProjectID  int              `json:"project_id"`
	InviteeID  int              `json:"invitee_id"`
	InviterID  int              `json:"inviter_id"`
	Role       Role             `json:"role"` // member or viewer, never owner
	Status     InvitationStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`

	// Joined fields for display
	ProjectName  string `json:"project_name,omitempty"`
	InviterName  string `json:"inviter_name,omitempty"`
	InviteeName  string `json:"invitee_name,omitempty"`
	InviteeEmail string `json:"invitee_email,omitempty"`
}
