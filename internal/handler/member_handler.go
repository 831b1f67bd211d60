package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/service/member"
)

// MemberHandler covers project membership and the invitation workflow.
type MemberHandler struct {
	members *member.Service
	logger  *zap.Logger
}

func NewMemberHandler(members *member.Service, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{members: members, logger: logger}
}

// ListMembers handles GET /projects/:id/members
func (h *MemberHandler) ListMembers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.members.ListMembers(c.Request.Context(), projectID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RemoveMember handles DELETE /projects/:id/members/:userID
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.members.RemoveMember(c.Request.Context(), projectID, uid, targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Member removed",
		zap.Int("project_id", projectID),
		zap.Int("user_id", targetID),
		zap.Int("removed_by", uid),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Invite handles POST /projects/:id/invitations
func (h *MemberHandler) Invite(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	inv, err := h.members.Invite(c.Request.Context(), projectID, uid, req.Email, model.Role(req.Role))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Invitation created",
		zap.Int("invitation_id", inv.ID),
		zap.Int("project_id", projectID),
		zap.Int("invitee_id", inv.InviteeID),
	)
	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

// ListProjectInvitations handles GET /projects/:id/invitations
func (h *MemberHandler) ListProjectInvitations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invitations, err := h.members.ListForProject(c.Request.Context(), projectID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

// ListMyInvitations handles GET /invitations
func (h *MemberHandler) ListMyInvitations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	invitations, err := h.members.ListForUser(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

// Accept handles POST /invitations/:id/accept
func (h *MemberHandler) Accept(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	membership, err := h.members.Accept(c.Request.Context(), invitationID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Invitation accepted",
		zap.Int("invitation_id", invitationID),
		zap.Int("project_id", membership.ProjectID),
		zap.Int("user_id", uid),
	)
	c.JSON(http.StatusOK, gin.H{"membership": membership})
}

// Decline handles POST /invitations/:id/decline
func (h *MemberHandler) Decline(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.members.Decline(c.Request.Context(), invitationID, uid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

// Cancel handles DELETE /invitations/:id
func (h *MemberHandler) Cancel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := h.members.Cancel(c.Request.Context(), invitationID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !deleted {
		// Already accepted or declined; nothing was removed.
		c.JSON(http.StatusOK, gin.H{"status": "already_resolved"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
