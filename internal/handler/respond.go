package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service/auth"
	"teamboard/internal/service/member"
	"teamboard/internal/service/project"
	"teamboard/internal/service/suggest"
	"teamboard/internal/service/task"
	"teamboard/pkg/rbac"
)

// currentUserID reads the user id stored by AuthMiddleware. A missing id
// means the route was mounted outside the auth group; answer 401 rather
// than panicking on the type assertion.
func currentUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	uid, ok := v.(int)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return uid, true
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// Sentinels grouped by the HTTP status they map to. Several services
// declare their own not-found for the same entity; all land on 404 here.
var (
	validationErrors = []error{
		project.ErrNameRequired,
		task.ErrTitleRequired,
		task.ErrContentRequired,
		task.ErrInvalidStatus,
		task.ErrInvalidPriority,
		task.ErrAssigneeNotMember,
		task.ErrMoveTargetInvalid,
		member.ErrInvalidRole,
	}

	notFoundErrors = []error{
		project.ErrProjectNotFound,
		member.ErrProjectNotFound,
		task.ErrProjectNotFound,
		suggest.ErrProjectNotFound,
		task.ErrTaskNotFound,
		task.ErrMilestoneNotFound,
		task.ErrCommentNotFound,
		auth.ErrUserNotFound,
		member.ErrInviteeNotFound,
		member.ErrInvitationNotFound,
		member.ErrMemberNotFound,
	}

	conflictErrors = []error{
		auth.ErrEmailTaken,
		member.ErrAlreadyMember,
		member.ErrInvitePending,
		member.ErrNotPending,
		member.ErrCannotRemoveOwner,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError converts a service error into the JSON error response.
// Domain sentinels keep their message; anything unrecognized is an
// internal failure and must not leak its cause to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var denied *rbac.PermissionDeniedError
	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	case errors.Is(err, member.ErrNotInvitee):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case matchesAny(err, validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case matchesAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case matchesAny(err, conflictErrors):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
