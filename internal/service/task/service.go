package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
	"teamboard/pkg/rbac"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrTitleRequired     = errors.New("title is required")
	ErrContentRequired   = errors.New("comment content is required")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrAssigneeNotMember = errors.New("assignee must be a project member")
	ErrMoveTargetInvalid = errors.New("move target belongs to another project")
)

type TaskStore interface {
	Insert(ctx context.Context, t *model.Task) error
	FindByID(ctx context.Context, id int) (*model.Task, error)
	UpdateFields(ctx context.Context, id int, u *model.TaskUpdate) error
	Delete(ctx context.Context, id int) error
	MoveTx(ctx context.Context, taskID int, milestoneID *int, beforeTaskID *int) error
	CountByProject(ctx context.Context, projectID int) (total, completed int, err error)
}

type MilestoneStore interface {
	Insert(ctx context.Context, m *model.Milestone) error
	FindByID(ctx context.Context, id int) (*model.Milestone, error)
	Update(ctx context.Context, m *model.Milestone) error
	Delete(ctx context.Context, id int) error
}

type CommentStore interface {
	Insert(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id int) (*model.Comment, error)
	ListByTask(ctx context.Context, taskID int) ([]model.Comment, error)
	Delete(ctx context.Context, id int) error
}

type MembershipStore interface {
	Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error)
}

type ProjectStore interface {
	FindByID(ctx context.Context, id int) (*model.Project, error)
	SetProgress(ctx context.Context, id, progress int) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
}

type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type DetailCache interface {
	Invalidate(ctx context.Context, projectID int)
}

type Service struct {
	tasks       TaskStore
	milestones  MilestoneStore
	comments    CommentStore
	memberships MembershipStore
	projects    ProjectStore
	users       UserStore
	publisher   EventPublisher
	cache       DetailCache
	logger      *zap.Logger
}

func NewService(
	tasks TaskStore,
	milestones MilestoneStore,
	comments CommentStore,
	memberships MembershipStore,
	projects ProjectStore,
	users UserStore,
	publisher EventPublisher,
	cache DetailCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		tasks:       tasks,
		milestones:  milestones,
		comments:    comments,
		memberships: memberships,
		projects:    projects,
		users:       users,
		publisher:   publisher,
		cache:       cache,
		logger:      logger,
	}
}

// TaskInput carries the caller-settable fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	AssigneeID  *int
	DueDate     *time.Time
	MilestoneID *int
}

func (s *Service) requireMember(ctx context.Context, projectID, userID int, notFound error) (*model.ProjectMember, error) {
	m, err := s.memberships.Find(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) checkAssignee(ctx context.Context, projectID, assigneeID int) error {
	if _, err := s.memberships.Find(ctx, projectID, assigneeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAssigneeNotMember
		}
		return err
	}
	return nil
}

func (s *Service) checkMilestone(ctx context.Context, projectID, milestoneID int) error {
	ms, err := s.milestones.FindByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMilestoneNotFound
		}
		return err
	}
	if ms.ProjectID != projectID {
		return ErrMilestoneNotFound
	}
	return nil
}

// Create appends a task at the end of the project's ordering.
func (s *Service) Create(ctx context.Context, projectID, callerID int, in TaskInput) (*model.Task, error) {
	membership, err := s.requireMember(ctx, projectID, callerID, ErrProjectNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionTaskCreate); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, projectID, *in.AssigneeID); err != nil {
			return nil, err
		}
	}
	if in.MilestoneID != nil {
		if err := s.checkMilestone(ctx, projectID, *in.MilestoneID); err != nil {
			return nil, err
		}
	}

	t := &model.Task{
		ProjectID:   projectID,
		MilestoneID: in.MilestoneID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, err
	}

	s.recomputeProgress(ctx, projectID)
	s.cache.Invalidate(ctx, projectID)

	if t.AssigneeID != nil {
		s.publishTaskAssigned(ctx, t, callerID)
	}
	return t, nil
}

// Update applies the supplied fields only. Clear* flags turn the matching
// reference into NULL; absent fields stay untouched.
func (s *Service) Update(ctx context.Context, taskID, callerID int, u *model.TaskUpdate) (*model.Task, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	membership, err := s.requireMember(ctx, t.ProjectID, callerID, ErrTaskNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionTaskUpdate); err != nil {
		return nil, err
	}

	if u.Empty() {
		return t, nil
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, ErrTitleRequired
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if u.AssigneeID != nil {
		if err := s.checkAssignee(ctx, t.ProjectID, *u.AssigneeID); err != nil {
			return nil, err
		}
	}
	if u.MilestoneID != nil {
		if err := s.checkMilestone(ctx, t.ProjectID, *u.MilestoneID); err != nil {
			return nil, err
		}
	}

	oldAssignee := t.AssigneeID
	if err := s.tasks.UpdateFields(ctx, taskID, u); err != nil {
		return nil, err
	}

	if u.Status != nil {
		s.recomputeProgress(ctx, t.ProjectID)
	}
	s.cache.Invalidate(ctx, t.ProjectID)

	updated, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if u.AssigneeID != nil && (oldAssignee == nil || *oldAssignee != *u.AssigneeID) {
		s.publishTaskAssigned(ctx, updated, callerID)
	}
	return updated, nil
}

// Delete removes the task; its comments and attachments go with it.
func (s *Service) Delete(ctx context.Context, taskID, callerID int) error {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	membership, err := s.requireMember(ctx, t.ProjectID, callerID, ErrTaskNotFound)
	if err != nil {
		return err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionTaskDelete); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}

	s.recomputeProgress(ctx, t.ProjectID)
	s.cache.Invalidate(ctx, t.ProjectID)
	return nil
}

// Move reassigns the task's milestone (nil clears it) and, when
// beforeTaskID is given, renumbers the project so the task sits directly
// before the target.
func (s *Service) Move(ctx context.Context, taskID, callerID int, milestoneID *int, beforeTaskID *int) (*model.Task, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	membership, err := s.requireMember(ctx, t.ProjectID, callerID, ErrTaskNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionTaskMove); err != nil {
		return nil, err
	}

	if milestoneID != nil {
		if err := s.checkMilestone(ctx, t.ProjectID, *milestoneID); err != nil {
			return nil, err
		}
	}
	if beforeTaskID != nil {
		target, err := s.findTask(ctx, *beforeTaskID)
		if err != nil {
			return nil, err
		}
		if target.ProjectID != t.ProjectID {
			return nil, ErrMoveTargetInvalid
		}
	}

	if err := s.tasks.MoveTx(ctx, taskID, milestoneID, beforeTaskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, t.ProjectID)
	return s.tasks.FindByID(ctx, taskID)
}

func (s *Service) findTask(ctx context.Context, taskID int) (*model.Task, error) {
	t, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

// CreateMilestone appends a milestone to the project.
func (s *Service) CreateMilestone(ctx context.Context, projectID, callerID int, title, description string, dueDate *time.Time) (*model.Milestone, error) {
	membership, err := s.requireMember(ctx, projectID, callerID, ErrProjectNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionMilestoneCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrTitleRequired
	}

	m := &model.Milestone{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
	}
	if err := s.milestones.Insert(ctx, m); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, projectID)
	return m, nil
}

// UpdateMilestone overwrites title, description and due date.
func (s *Service) UpdateMilestone(ctx context.Context, milestoneID, callerID int, title, description string, dueDate *time.Time) (*model.Milestone, error) {
	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	membership, err := s.requireMember(ctx, m.ProjectID, callerID, ErrMilestoneNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionMilestoneUpdate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrTitleRequired
	}

	m.Title = title
	m.Description = description
	m.DueDate = dueDate
	if err := s.milestones.Update(ctx, m); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, m.ProjectID)
	return m, nil
}

// DeleteMilestone removes the grouping; its tasks stay, unassigned.
func (s *Service) DeleteMilestone(ctx context.Context, milestoneID, callerID int) error {
	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return err
	}
	membership, err := s.requireMember(ctx, m.ProjectID, callerID, ErrMilestoneNotFound)
	if err != nil {
		return err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionMilestoneDelete); err != nil {
		return err
	}

	if err := s.milestones.Delete(ctx, milestoneID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, m.ProjectID)
	return nil
}

func (s *Service) findMilestone(ctx context.Context, milestoneID int) (*model.Milestone, error) {
	m, err := s.milestones.FindByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return m, nil
}

// AddComment attaches a comment (plus attachment metadata) to a task.
// Viewers may comment too.
func (s *Service) AddComment(ctx context.Context, taskID, authorID int, content string, attachments []model.Attachment) (*model.Comment, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	membership, err := s.requireMember(ctx, t.ProjectID, authorID, ErrTaskNotFound)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(authorID, membership.Role, rbac.PermissionCommentCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}

	c := &model.Comment{
		TaskID:      taskID,
		AuthorID:    authorID,
		Content:     content,
		Attachments: attachments,
	}
	if err := s.comments.Insert(ctx, c); err != nil {
		return nil, err
	}

	s.publishCommentCreated(ctx, c, t)
	return c, nil
}

// ListComments returns the task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, taskID, callerID int) ([]model.Comment, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, t.ProjectID, callerID, ErrTaskNotFound); err != nil {
		return nil, err
	}
	return s.comments.ListByTask(ctx, taskID)
}

// DeleteComment removes a comment. The author may always delete their own;
// anyone else needs the moderate permission.
func (s *Service) DeleteComment(ctx context.Context, commentID, callerID int) error {
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommentNotFound
		}
		return err
	}
	t, err := s.tasks.FindByID(ctx, c.TaskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommentNotFound
		}
		return err
	}
	membership, err := s.requireMember(ctx, t.ProjectID, callerID, ErrCommentNotFound)
	if err != nil {
		return err
	}
	if c.AuthorID != callerID {
		if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionCommentModerate); err != nil {
			return err
		}
	}

	return s.comments.Delete(ctx, commentID)
}

// recomputeProgress refreshes the project's derived completion percentage.
// It reads live counts, so whichever recompute runs last converges on the
// table's current state. Failures are logged, not surfaced: the mutation
// that triggered the recompute already committed.
func (s *Service) recomputeProgress(ctx context.Context, projectID int) {
	total, completed, err := s.tasks.CountByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("Failed to count tasks for progress",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return
	}
	progress := model.ComputeProgress(completed, total)
	if err := s.projects.SetProgress(ctx, projectID, progress); err != nil {
		s.logger.Error("Failed to persist project progress",
			zap.Int("project_id", projectID),
			zap.Int("progress", progress),
			zap.Error(err),
		)
	}
}

func (s *Service) publishTaskAssigned(ctx context.Context, t *model.Task, assignerID int) {
	if t.AssigneeID == nil {
		return
	}

	projectName := ""
	if p, err := s.projects.FindByID(ctx, t.ProjectID); err == nil {
		projectName = p.Name
	}

	payload := mq.TaskAssignedPayload{
		EventID:     uuid.NewString(),
		TaskID:      t.ID,
		ProjectID:   t.ProjectID,
		ProjectName: projectName,
		Title:       t.Title,
		AssigneeID:  *t.AssigneeID,
		AssignerID:  assignerID,
		CreatedAt:   time.Now(),
	}
	if err := s.publisher.Publish(mq.RoutingKeyTaskAssigned, payload); err != nil {
		s.logger.Error("Failed to publish task assigned event",
			zap.Int("task_id", t.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) publishCommentCreated(ctx context.Context, c *model.Comment, t *model.Task) {
	authorName := ""
	if u, err := s.users.FindByID(ctx, c.AuthorID); err == nil {
		authorName = u.DisplayName
	}
	assigneeID := 0
	if t.AssigneeID != nil {
		assigneeID = *t.AssigneeID
	}

	payload := mq.CommentCreatedPayload{
		EventID:    uuid.NewString(),
		CommentID:  c.ID,
		TaskID:     t.ID,
		TaskTitle:  t.Title,
		ProjectID:  t.ProjectID,
		AuthorID:   c.AuthorID,
		AuthorName: authorName,
		AssigneeID: assigneeID,
		CreatedAt:  time.Now(),
	}
	if err := s.publisher.Publish(mq.RoutingKeyCommentCreated, payload); err != nil {
		s.logger.Error("Failed to publish comment created event",
			zap.Int("comment_id", c.ID),
			zap.Error(err),
		)
	}
}
