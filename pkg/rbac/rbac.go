package rbac

import "teamboard/internal/model"

// Permission constants, grouped by the entity they guard.
const (
	PermissionProjectRead   = "project:read"
	PermissionProjectUpdate = "project:update"
	PermissionProjectDelete = "project:delete"

	PermissionInviteCreate = "invite:create"
	PermissionInviteCancel = "invite:cancel"
	PermissionMemberRemove = "member:remove"

	PermissionTaskCreate = "task:create"
	PermissionTaskUpdate = "task:update"
	PermissionTaskDelete = "task:delete"
	PermissionTaskMove   = "task:move"

	PermissionMilestoneCreate = "milestone:create"
	PermissionMilestoneUpdate = "milestone:update"
	PermissionMilestoneDelete = "milestone:delete"

	PermissionCommentCreate   = "comment:create"
	PermissionCommentModerate = "comment:moderate"

	PermissionSuggestRun = "suggest:run"
)

// Role-permission matrix. Roles are per-project: the same user can be
// owner of one project and viewer of another.
var rolePermissions = map[model.Role][]string{
	model.RoleOwner: {
		PermissionProjectRead,
		PermissionProjectUpdate,
		PermissionProjectDelete,
		PermissionInviteCreate,
		PermissionInviteCancel,
		PermissionMemberRemove,
		PermissionTaskCreate,
		PermissionTaskUpdate,
		PermissionTaskDelete,
		PermissionTaskMove,
		PermissionMilestoneCreate,
		PermissionMilestoneUpdate,
		PermissionMilestoneDelete,
		PermissionCommentCreate,
		PermissionCommentModerate,
		PermissionSuggestRun,
	},
	model.RoleMember: {
		PermissionProjectRead,
		PermissionProjectUpdate,
		PermissionTaskCreate,
		PermissionTaskUpdate,
		PermissionTaskDelete,
		PermissionTaskMove,
		PermissionMilestoneCreate,
		PermissionMilestoneUpdate,
		PermissionMilestoneDelete,
		PermissionCommentCreate,
		PermissionSuggestRun,
	},
	model.RoleViewer: {
		PermissionProjectRead,
		PermissionCommentCreate,
	},
}

// HasPermission checks whether a project role grants the given permission.
func HasPermission(role model.Role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission returns a typed error when the role lacks the permission.
func CheckPermission(userID int, role model.Role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError reports a failed permission check.
type PermissionDeniedError struct {
	UserID     int
	Role       model.Role
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
