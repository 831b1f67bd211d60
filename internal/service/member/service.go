package member

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
	"teamboard/pkg/rbac"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidRole        = errors.New("invitation role must be member or viewer")
	ErrInviteeNotFound    = errors.New("no user with that email")
	ErrAlreadyMember      = errors.New("user is already a project member")
	ErrInvitePending      = errors.New("an invitation for this user is already pending")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrNotInvitee         = errors.New("only the invitee may respond to an invitation")
	ErrNotPending         = errors.New("invitation is no longer pending")
	ErrMemberNotFound     = errors.New("user is not a member of this project")
	ErrCannotRemoveOwner  = errors.New("the project owner cannot be removed")
)

type InvitationStore interface {
	Insert(ctx context.Context, inv *model.Invitation) error
	FindByID(ctx context.Context, id int) (*model.Invitation, error)
	FindPending(ctx context.Context, projectID, inviteeID int) (*model.Invitation, error)
	ListPendingForUser(ctx context.Context, userID int) ([]model.Invitation, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Invitation, error)
	AcceptTx(ctx context.Context, invitationID int) (*model.ProjectMember, error)
	MarkDeclined(ctx context.Context, invitationID int) error
	DeletePending(ctx context.Context, invitationID int) (bool, error)
}

type MembershipStore interface {
	Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error)
	ListByProject(ctx context.Context, projectID int) ([]model.ProjectMember, error)
	Delete(ctx context.Context, projectID, userID int) error
}

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type ProjectStore interface {
	FindByID(ctx context.Context, id int) (*model.Project, error)
}

type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type DetailCache interface {
	Invalidate(ctx context.Context, projectID int)
}

type Service struct {
	invitations InvitationStore
	memberships MembershipStore
	users       UserStore
	projects    ProjectStore
	publisher   EventPublisher
	cache       DetailCache
	logger      *zap.Logger
}

func NewService(
	invitations InvitationStore,
	memberships MembershipStore,
	users UserStore,
	projects ProjectStore,
	publisher EventPublisher,
	cache DetailCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		invitations: invitations,
		memberships: memberships,
		users:       users,
		projects:    projects,
		publisher:   publisher,
		cache:       cache,
		logger:      logger,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Invite creates a pending invitation for the user behind inviteeEmail.
// Only a role below owner can be offered, and only once per (project, user)
// while the previous offer is unresolved.
func (s *Service) Invite(ctx context.Context, projectID, inviterID int, inviteeEmail string, role model.Role) (*model.Invitation, error) {
	if role != model.RoleMember && role != model.RoleViewer {
		return nil, ErrInvalidRole
	}

	membership, err := s.memberships.Find(ctx, projectID, inviterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := rbac.CheckPermission(inviterID, membership.Role, rbac.PermissionInviteCreate); err != nil {
		return nil, err
	}

	invitee, err := s.users.FindByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteeNotFound
		}
		return nil, err
	}

	if _, err := s.memberships.Find(ctx, projectID, invitee.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := s.invitations.FindPending(ctx, projectID, invitee.ID); err == nil {
		return nil, ErrInvitePending
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	inv := &model.Invitation{
		ProjectID: projectID,
		InviteeID: invitee.ID,
		InviterID: inviterID,
		Role:      role,
	}
	if err := s.invitations.Insert(ctx, inv); err != nil {
		// The partial unique index catches the race two concurrent
		// invites would otherwise win together.
		if isUniqueViolation(err) {
			return nil, ErrInvitePending
		}
		return nil, err
	}

	s.publishInvitationEvent(ctx, mq.RoutingKeyInvitationCreated, inv.ID)
	return inv, nil
}

// Accept turns a pending invitation into a membership. The status flip and
// the membership insert commit together or not at all.
func (s *Service) Accept(ctx context.Context, invitationID, callerID int) (*model.ProjectMember, error) {
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	if inv.InviteeID != callerID {
		return nil, ErrNotInvitee
	}

	membership, err := s.invitations.AcceptTx(ctx, invitationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		// Already joined through some other path while the invitation
		// sat unresolved.
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, inv.ProjectID)
	s.publishInvitationEvent(ctx, mq.RoutingKeyInvitationAccepted, invitationID)
	return membership, nil
}

// Decline resolves a pending invitation without creating any membership.
func (s *Service) Decline(ctx context.Context, invitationID, callerID int) error {
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvitationNotFound
		}
		return err
	}
	if inv.InviteeID != callerID {
		return ErrNotInvitee
	}

	if err := s.invitations.MarkDeclined(ctx, invitationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotPending
		}
		return err
	}

	s.publishInvitationEvent(ctx, mq.RoutingKeyInvitationDeclined, invitationID)
	return nil
}

// Cancel deletes a still-pending invitation. A resolved invitation stays
// untouched; the returned bool tells the caller which case they hit.
func (s *Service) Cancel(ctx context.Context, invitationID, callerID int) (bool, error) {
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrInvitationNotFound
		}
		return false, err
	}

	membership, err := s.memberships.Find(ctx, inv.ProjectID, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrInvitationNotFound
		}
		return false, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionInviteCancel); err != nil {
		return false, err
	}

	return s.invitations.DeletePending(ctx, invitationID)
}

// ListForUser returns the caller's own pending invitations.
func (s *Service) ListForUser(ctx context.Context, userID int) ([]model.Invitation, error) {
	return s.invitations.ListPendingForUser(ctx, userID)
}

// ListForProject returns every invitation of the project, resolved ones
// included. Listing is part of managing invitations, so it shares the
// create permission.
func (s *Service) ListForProject(ctx context.Context, projectID, callerID int) ([]model.Invitation, error) {
	membership, err := s.memberships.Find(ctx, projectID, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionInviteCreate); err != nil {
		return nil, err
	}
	return s.invitations.ListByProject(ctx, projectID)
}

// ListMembers returns the project's member list with user display fields.
func (s *Service) ListMembers(ctx context.Context, projectID, callerID int) ([]model.ProjectMember, error) {
	if _, err := s.memberships.Find(ctx, projectID, callerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.memberships.ListByProject(ctx, projectID)
}

// RemoveMember drops a member or viewer from the project. The owner row
// is not removable.
func (s *Service) RemoveMember(ctx context.Context, projectID, callerID, userID int) error {
	membership, err := s.memberships.Find(ctx, projectID, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProjectNotFound
		}
		return err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionMemberRemove); err != nil {
		return err
	}

	target, err := s.memberships.Find(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMemberNotFound
		}
		return err
	}
	if target.Role == model.RoleOwner {
		return ErrCannotRemoveOwner
	}

	if err := s.memberships.Delete(ctx, projectID, userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, projectID)

	s.publishMemberRemoved(ctx, projectID, userID, callerID)
	return nil
}

// publishInvitationEvent re-reads the invitation for its joined display
// fields and publishes the event. Publish failures are logged, never
// surfaced: the mutation already committed.
func (s *Service) publishInvitationEvent(ctx context.Context, routingKey string, invitationID int) {
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		s.logger.Error("Failed to load invitation for event",
			zap.String("routing_key", routingKey),
			zap.Int("invitation_id", invitationID),
			zap.Error(err),
		)
		return
	}

	var payload any
	switch routingKey {
	case mq.RoutingKeyInvitationCreated:
		payload = mq.InvitationCreatedPayload{
			EventID:      uuid.NewString(),
			InvitationID: inv.ID,
			ProjectID:    inv.ProjectID,
			ProjectName:  inv.ProjectName,
			InviteeID:    inv.InviteeID,
			InviterID:    inv.InviterID,
			InviterName:  inv.InviterName,
			Role:         string(inv.Role),
			CreatedAt:    time.Now(),
		}
	case mq.RoutingKeyInvitationAccepted:
		payload = mq.InvitationAcceptedPayload{
			EventID:      uuid.NewString(),
			InvitationID: inv.ID,
			ProjectID:    inv.ProjectID,
			ProjectName:  inv.ProjectName,
			InviteeID:    inv.InviteeID,
			InviteeName:  inv.InviteeName,
			InviterID:    inv.InviterID,
			CreatedAt:    time.Now(),
		}
	case mq.RoutingKeyInvitationDeclined:
		payload = mq.InvitationDeclinedPayload{
			EventID:      uuid.NewString(),
			InvitationID: inv.ID,
			ProjectID:    inv.ProjectID,
			ProjectName:  inv.ProjectName,
			InviteeID:    inv.InviteeID,
			InviteeName:  inv.InviteeName,
			InviterID:    inv.InviterID,
			CreatedAt:    time.Now(),
		}
	default:
		return
	}

	if err := s.publisher.Publish(routingKey, payload); err != nil {
		s.logger.Error("Failed to publish invitation event",
			zap.String("routing_key", routingKey),
			zap.Int("invitation_id", invitationID),
			zap.Error(err),
		)
	}
}

func (s *Service) publishMemberRemoved(ctx context.Context, projectID, userID, removedBy int) {
	projectName := ""
	if p, err := s.projects.FindByID(ctx, projectID); err == nil {
		projectName = p.Name
	}

	payload := mq.MemberRemovedPayload{
		EventID:     uuid.NewString(),
		ProjectID:   projectID,
		ProjectName: projectName,
		UserID:      userID,
		RemovedBy:   removedBy,
		CreatedAt:   time.Now(),
	}
	if err := s.publisher.Publish(mq.RoutingKeyMemberRemoved, payload); err != nil {
		s.logger.Error("Failed to publish member removed event",
			zap.Int("project_id", projectID),
			zap.Int("user_id", userID),
			zap.Error(err),
		)
	}
}
