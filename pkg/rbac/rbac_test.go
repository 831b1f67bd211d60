package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teamboard/internal/model"
)

func TestOwnerHasEveryPermission(t *testing.T) {
	for _, p := range []string{
		PermissionProjectRead,
		PermissionProjectUpdate,
		PermissionProjectDelete,
		PermissionInviteCreate,
		PermissionInviteCancel,
		PermissionMemberRemove,
		PermissionTaskCreate,
		PermissionTaskDelete,
		PermissionMilestoneCreate,
		PermissionCommentCreate,
		PermissionCommentModerate,
		PermissionSuggestRun,
	} {
		assert.True(t, HasPermission(model.RoleOwner, p), p)
	}
}

func TestMemberPermissions(t *testing.T) {
	assert.True(t, HasPermission(model.RoleMember, PermissionProjectUpdate))
	assert.True(t, HasPermission(model.RoleMember, PermissionTaskCreate))
	assert.True(t, HasPermission(model.RoleMember, PermissionTaskMove))
	assert.True(t, HasPermission(model.RoleMember, PermissionMilestoneDelete))
	assert.True(t, HasPermission(model.RoleMember, PermissionCommentCreate))
	assert.True(t, HasPermission(model.RoleMember, PermissionSuggestRun))

	assert.False(t, HasPermission(model.RoleMember, PermissionProjectDelete))
	assert.False(t, HasPermission(model.RoleMember, PermissionInviteCreate))
	assert.False(t, HasPermission(model.RoleMember, PermissionMemberRemove))
	assert.False(t, HasPermission(model.RoleMember, PermissionCommentModerate))
}

func TestViewerIsReadOnlyExceptComments(t *testing.T) {
	assert.True(t, HasPermission(model.RoleViewer, PermissionProjectRead))
	assert.True(t, HasPermission(model.RoleViewer, PermissionCommentCreate))

	assert.False(t, HasPermission(model.RoleViewer, PermissionTaskCreate))
	assert.False(t, HasPermission(model.RoleViewer, PermissionTaskUpdate))
	assert.False(t, HasPermission(model.RoleViewer, PermissionTaskDelete))
	assert.False(t, HasPermission(model.RoleViewer, PermissionMilestoneCreate))
	assert.False(t, HasPermission(model.RoleViewer, PermissionProjectUpdate))
	assert.False(t, HasPermission(model.RoleViewer, PermissionSuggestRun))
}

func TestUnknownRoleHasNothing(t *testing.T) {
	assert.False(t, HasPermission(model.Role("admin"), PermissionProjectRead))
}

func TestCheckPermissionError(t *testing.T) {
	err := CheckPermission(42, model.RoleViewer, PermissionTaskCreate)
	assert.Error(t, err)

	var denied *PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, 42, denied.UserID)
	assert.Equal(t, model.RoleViewer, denied.Role)
	assert.Equal(t, PermissionTaskCreate, denied.Permission)

	assert.NoError(t, CheckPermission(42, model.RoleOwner, PermissionTaskCreate))
}
