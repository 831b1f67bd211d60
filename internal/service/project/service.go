package project

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/pkg/rbac"
)

var (
	// ErrProjectNotFound is also what non-members get: a private project
	// they cannot read looks exactly like one that does not exist.
	ErrProjectNotFound = errors.New("project not found")
	ErrNameRequired    = errors.New("project name is required")
)

type ProjectStore interface {
	InsertWithOwner(ctx context.Context, p *model.Project) error
	ListForUser(ctx context.Context, userID int) ([]model.ProjectSummary, error)
	FindByID(ctx context.Context, id int) (*model.Project, error)
	Update(ctx context.Context, id int, name, description string) error
	Delete(ctx context.Context, id int) error
}

type MemberStore interface {
	Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error)
	ListByProject(ctx context.Context, projectID int) ([]model.ProjectMember, error)
}

type MilestoneStore interface {
	ListByProject(ctx context.Context, projectID int) ([]model.Milestone, error)
}

type TaskStore interface {
	ListByProject(ctx context.Context, projectID int) ([]model.Task, error)
}

type DetailCache interface {
	Get(ctx context.Context, projectID int) (*model.ProjectDetail, bool)
	Set(ctx context.Context, detail *model.ProjectDetail)
	Invalidate(ctx context.Context, projectID int)
}

type Service struct {
	projects   ProjectStore
	members    MemberStore
	milestones MilestoneStore
	tasks      TaskStore
	cache      DetailCache
	logger     *zap.Logger
}

func NewService(
	projects ProjectStore,
	members MemberStore,
	milestones MilestoneStore,
	tasks TaskStore,
	cache DetailCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		projects:   projects,
		members:    members,
		milestones: milestones,
		tasks:      tasks,
		cache:      cache,
		logger:     logger,
	}
}

// requireMember resolves the caller's membership row for the project.
func (s *Service) requireMember(ctx context.Context, projectID, userID int) (*model.ProjectMember, error) {
	m, err := s.members.Find(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return m, nil
}

// Create inserts the project together with the creator's owner membership.
func (s *Service) Create(ctx context.Context, ownerID int, name, description, template string) (*model.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	p := &model.Project{
		Name:        name,
		Description: description,
		Template:    template,
		CreatedBy:   ownerID,
	}
	if err := s.projects.InsertWithOwner(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForUser returns the caller's projects, newest first, with the caller's
// role and the task count on each.
func (s *Service) ListForUser(ctx context.Context, userID int) ([]model.ProjectSummary, error) {
	return s.projects.ListForUser(ctx, userID)
}

// Get returns the full board view of one project, cache-first.
func (s *Service) Get(ctx context.Context, projectID, callerID int) (*model.ProjectDetail, error) {
	if _, err := s.requireMember(ctx, projectID, callerID); err != nil {
		return nil, err
	}

	if detail, ok := s.cache.Get(ctx, projectID); ok {
		return detail, nil
	}

	detail, err := s.assemble(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, detail)
	return detail, nil
}

func (s *Service) assemble(ctx context.Context, projectID int) (*model.ProjectDetail, error) {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	members, err := s.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.milestones.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &model.ProjectDetail{
		Project:    *p,
		Members:    members,
		Milestones: milestones,
		Tasks:      tasks,
	}, nil
}

// Update changes name and description. Template is fixed at creation.
func (s *Service) Update(ctx context.Context, projectID, callerID int, name, description string) (*model.Project, error) {
	m, err := s.requireMember(ctx, projectID, callerID)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, m.Role, rbac.PermissionProjectUpdate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	if err := s.projects.Update(ctx, projectID, name, description); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, projectID)

	return s.projects.FindByID(ctx, projectID)
}

// Delete removes the project; the FKs cascade to tasks, milestones, members,
// invitations, comments and attachments.
func (s *Service) Delete(ctx context.Context, projectID, callerID int) error {
	m, err := s.requireMember(ctx, projectID, callerID)
	if err != nil {
		return err
	}
	if err := rbac.CheckPermission(callerID, m.Role, rbac.PermissionProjectDelete); err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, projectID)

	s.logger.Info("Project deleted",
		zap.Int("project_id", projectID),
		zap.Int("user_id", callerID),
	)
	return nil
}
