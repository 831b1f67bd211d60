package task

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamboard/contracts/mq"
	"teamboard/internal/model"
	"teamboard/pkg/rbac"
)

type fakeTaskStore struct {
	tasks  map[int]*model.Task
	nextID int
}

func (f *fakeTaskStore) Insert(ctx context.Context, t *model.Task) error {
	t.ID = f.nextID
	f.nextID++
	max := 0
	for _, other := range f.tasks {
		if other.ProjectID == t.ProjectID && other.Position > max {
			max = other.Position
		}
	}
	t.Position = max + 1
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) FindByID(ctx context.Context, id int) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) UpdateFields(ctx context.Context, id int, u *model.TaskUpdate) error {
	t, ok := f.tasks[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssigneeID != nil {
		t.AssigneeID = u.AssigneeID
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	if u.MilestoneID != nil {
		t.MilestoneID = u.MilestoneID
	}
	if u.ClearAssignee {
		t.AssigneeID = nil
	}
	if u.ClearDueDate {
		t.DueDate = nil
	}
	if u.ClearMilestone {
		t.MilestoneID = nil
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, id int) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) MoveTx(ctx context.Context, taskID int, milestoneID *int, beforeTaskID *int) error {
	moved, ok := f.tasks[taskID]
	if !ok {
		return pgx.ErrNoRows
	}
	moved.MilestoneID = milestoneID
	if beforeTaskID == nil {
		return nil
	}
	target, ok := f.tasks[*beforeTaskID]
	if !ok {
		return pgx.ErrNoRows
	}

	rest := []*model.Task{}
	for _, t := range f.tasks {
		if t.ProjectID == moved.ProjectID && t.ID != moved.ID {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Position < rest[j].Position })

	ordered := []*model.Task{}
	for _, t := range rest {
		if t.ID == target.ID {
			ordered = append(ordered, moved)
		}
		ordered = append(ordered, t)
	}
	for i, t := range ordered {
		t.Position = i + 1
	}
	return nil
}

func (f *fakeTaskStore) CountByProject(ctx context.Context, projectID int) (int, int, error) {
	total, completed := 0, 0
	for _, t := range f.tasks {
		if t.ProjectID != projectID {
			continue
		}
		total++
		if t.Status == model.StatusCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (f *fakeTaskStore) positions(projectID int) map[string]int {
	out := map[string]int{}
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out[t.Title] = t.Position
		}
	}
	return out
}

type fakeMilestoneStore struct {
	milestones map[int]*model.Milestone
	nextID     int
}

func (f *fakeMilestoneStore) Insert(ctx context.Context, m *model.Milestone) error {
	m.ID = f.nextID
	f.nextID++
	m.CreatedAt = time.Now()
	cp := *m
	f.milestones[m.ID] = &cp
	return nil
}

func (f *fakeMilestoneStore) FindByID(ctx context.Context, id int) (*model.Milestone, error) {
	m, ok := f.milestones[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMilestoneStore) Update(ctx context.Context, m *model.Milestone) error {
	if _, ok := f.milestones[m.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *m
	f.milestones[m.ID] = &cp
	return nil
}

func (f *fakeMilestoneStore) Delete(ctx context.Context, id int) error {
	delete(f.milestones, id)
	return nil
}

type fakeCommentStore struct {
	comments map[int]*model.Comment
	nextID   int
}

func (f *fakeCommentStore) Insert(ctx context.Context, c *model.Comment) error {
	c.ID = f.nextID
	f.nextID++
	c.CreatedAt = time.Now()
	cp := *c
	f.comments[c.ID] = &cp
	return nil
}

func (f *fakeCommentStore) FindByID(ctx context.Context, id int) (*model.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommentStore) ListByTask(ctx context.Context, taskID int) ([]model.Comment, error) {
	out := []model.Comment{}
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) Delete(ctx context.Context, id int) error {
	delete(f.comments, id)
	return nil
}

type fakeMembershipStore struct {
	roles map[[2]int]model.Role
}

func (f *fakeMembershipStore) Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error) {
	role, ok := f.roles[[2]int{projectID, userID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}, nil
}

type fakeProjectStore struct {
	byID map[int]*model.Project
}

func (f *fakeProjectStore) FindByID(ctx context.Context, id int) (*model.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeProjectStore) SetProgress(ctx context.Context, id, progress int) error {
	p, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Progress = progress
	return nil
}

type fakeUserStore struct {
	byID map[int]*model.User
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type publishedEvent struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(routingKey string, payload any) error {
	f.events = append(f.events, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

type fakeCache struct {
	invalidated []int
}

func (f *fakeCache) Invalidate(ctx context.Context, projectID int) {
	f.invalidated = append(f.invalidated, projectID)
}

const (
	projectID = 1
	ownerID   = 10
	memberID  = 20
	viewerID  = 30
)

type fixture struct {
	svc        *Service
	tasks      *fakeTaskStore
	milestones *fakeMilestoneStore
	comments   *fakeCommentStore
	members    *fakeMembershipStore
	projects   *fakeProjectStore
	publisher  *fakePublisher
	cache      *fakeCache
}

func newFixture() *fixture {
	f := &fixture{
		tasks:      &fakeTaskStore{tasks: map[int]*model.Task{}, nextID: 1},
		milestones: &fakeMilestoneStore{milestones: map[int]*model.Milestone{}, nextID: 1},
		comments:   &fakeCommentStore{comments: map[int]*model.Comment{}, nextID: 1},
		members: &fakeMembershipStore{roles: map[[2]int]model.Role{
			{projectID, ownerID}:  model.RoleOwner,
			{projectID, memberID}: model.RoleMember,
			{projectID, viewerID}: model.RoleViewer,
		}},
		projects: &fakeProjectStore{byID: map[int]*model.Project{
			projectID: {ID: projectID, Name: "Website relaunch"},
		}},
		publisher: &fakePublisher{},
		cache:     &fakeCache{},
	}
	f.svc = NewService(f.tasks, f.milestones, f.comments, f.members, f.projects,
		&fakeUserStore{byID: map[int]*model.User{
			ownerID:  {ID: ownerID, DisplayName: "Owner"},
			memberID: {ID: memberID, DisplayName: "Member"},
			viewerID: {ID: viewerID, DisplayName: "Viewer"},
		}},
		f.publisher, f.cache, zap.NewNop())
	return f
}

func (f *fixture) mustCreate(t *testing.T, in TaskInput) *model.Task {
	t.Helper()
	created, err := f.svc.Create(context.Background(), projectID, memberID, in)
	require.NoError(t, err)
	return created
}

func (f *fixture) eventKeys() []string {
	out := []string{}
	for _, e := range f.publisher.events {
		out = append(out, e.routingKey)
	}
	return out
}

func TestCreateTaskAppendsPositions(t *testing.T) {
	f := newFixture()

	first := f.mustCreate(t, TaskInput{Title: "Design mockups"})
	second := f.mustCreate(t, TaskInput{Title: "Write copy"})

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, model.StatusTodo, first.Status)
	assert.Equal(t, model.PriorityMedium, first.Priority)
	assert.Contains(t, f.cache.invalidated, projectID)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, projectID, memberID, TaskInput{Title: "  "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = f.svc.Create(ctx, projectID, memberID, TaskInput{Title: "X", Priority: "urgent"})
	assert.ErrorIs(t, err, ErrInvalidPriority)

	nobody := 99
	_, err = f.svc.Create(ctx, projectID, memberID, TaskInput{Title: "X", AssigneeID: &nobody})
	assert.ErrorIs(t, err, ErrAssigneeNotMember)

	ghost := 77
	_, err = f.svc.Create(ctx, projectID, memberID, TaskInput{Title: "X", MilestoneID: &ghost})
	assert.ErrorIs(t, err, ErrMilestoneNotFound)
}

func TestCreateTaskByViewerDenied(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), projectID, viewerID, TaskInput{Title: "Sneaky"})
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestCreateTaskByNonMemberHidesProject(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), projectID, 99, TaskInput{Title: "Sneaky"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProgressTracksStatusChanges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tasks := make([]*model.Task, 4)
	for i, title := range []string{"a", "b", "c", "d"} {
		tasks[i] = f.mustCreate(t, TaskInput{Title: title})
	}
	assert.Equal(t, 0, f.projects.byID[projectID].Progress)

	completed := model.StatusCompleted
	_, err := f.svc.Update(ctx, tasks[0].ID, memberID, &model.TaskUpdate{Status: &completed})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, tasks[1].ID, memberID, &model.TaskUpdate{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 50, f.projects.byID[projectID].Progress)

	// Deleting one of the two completed tasks drops progress to 1/3.
	require.NoError(t, f.svc.Delete(ctx, tasks[0].ID, memberID))
	assert.Equal(t, 33, f.projects.byID[projectID].Progress)

	require.NoError(t, f.svc.Delete(ctx, tasks[1].ID, memberID))
	require.NoError(t, f.svc.Delete(ctx, tasks[2].ID, memberID))
	require.NoError(t, f.svc.Delete(ctx, tasks[3].ID, memberID))
	assert.Equal(t, 0, f.projects.byID[projectID].Progress, "empty project has zero progress")
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	f := newFixture()
	created := f.mustCreate(t, TaskInput{Title: "Design mockups", Description: "homepage"})

	title := "Design mockups v2"
	updated, err := f.svc.Update(context.Background(), created.ID, memberID, &model.TaskUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Design mockups v2", updated.Title)
	assert.Equal(t, "homepage", updated.Description)
	assert.Equal(t, model.StatusTodo, updated.Status)
}

func TestUpdateEmptyIsNoOp(t *testing.T) {
	f := newFixture()
	created := f.mustCreate(t, TaskInput{Title: "Design mockups"})

	updated, err := f.svc.Update(context.Background(), created.ID, memberID, &model.TaskUpdate{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Len(t, f.cache.invalidated, 1, "no invalidation beyond the create")
}

func TestUpdateClearsAssignee(t *testing.T) {
	f := newFixture()
	assignee := ownerID
	created := f.mustCreate(t, TaskInput{Title: "Design mockups", AssigneeID: &assignee})

	updated, err := f.svc.Update(context.Background(), created.ID, memberID, &model.TaskUpdate{ClearAssignee: true})
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
}

func TestAssignmentPublishesEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assignee := ownerID
	created := f.mustCreate(t, TaskInput{Title: "Design mockups", AssigneeID: &assignee})
	require.Equal(t, []string{mq.RoutingKeyTaskAssigned}, f.eventKeys())

	payload, ok := f.publisher.events[0].payload.(mq.TaskAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, ownerID, payload.AssigneeID)
	assert.Equal(t, memberID, payload.AssignerID)
	assert.Equal(t, "Website relaunch", payload.ProjectName)
	assert.NotEmpty(t, payload.EventID)

	// Re-assigning to the same user publishes nothing new.
	_, err := f.svc.Update(ctx, created.ID, memberID, &model.TaskUpdate{AssigneeID: &assignee})
	require.NoError(t, err)
	assert.Len(t, f.publisher.events, 1)

	other := viewerID
	_, err = f.svc.Update(ctx, created.ID, memberID, &model.TaskUpdate{AssigneeID: &other})
	require.NoError(t, err)
	assert.Len(t, f.publisher.events, 2)
}

func TestMoveBeforeTargetRenumbersDensely(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := f.mustCreate(t, TaskInput{Title: "a"})
	b := f.mustCreate(t, TaskInput{Title: "b"})
	c := f.mustCreate(t, TaskInput{Title: "c"})
	d := f.mustCreate(t, TaskInput{Title: "d"})
	_ = a
	_ = c

	moved, err := f.svc.Move(ctx, d.ID, memberID, nil, &b.ID)
	require.NoError(t, err)
	assert.Nil(t, moved.MilestoneID)

	assert.Equal(t, map[string]int{"a": 1, "d": 2, "b": 3, "c": 4}, f.tasks.positions(projectID))
	assert.Contains(t, f.cache.invalidated, projectID)
}

func TestMoveAssignsMilestone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ms, err := f.svc.CreateMilestone(ctx, projectID, memberID, "Launch", "", nil)
	require.NoError(t, err)
	created := f.mustCreate(t, TaskInput{Title: "Design mockups"})

	moved, err := f.svc.Move(ctx, created.ID, memberID, &ms.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, moved.MilestoneID)
	assert.Equal(t, ms.ID, *moved.MilestoneID)
	assert.Equal(t, created.Position, moved.Position, "no target keeps the position")

	// nil milestone moves it back out.
	moved, err = f.svc.Move(ctx, created.ID, memberID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, moved.MilestoneID)
}

func TestMoveRejectsForeignTarget(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.mustCreate(t, TaskInput{Title: "Design mockups"})

	// A task in another project the caller also belongs to.
	otherProject := 2
	f.members.roles[[2]int{otherProject, memberID}] = model.RoleMember
	f.projects.byID[otherProject] = &model.Project{ID: otherProject, Name: "Other"}
	foreign, err := f.svc.Create(ctx, otherProject, memberID, TaskInput{Title: "elsewhere"})
	require.NoError(t, err)

	_, err = f.svc.Move(ctx, created.ID, memberID, nil, &foreign.ID)
	assert.ErrorIs(t, err, ErrMoveTargetInvalid)
}

func TestMilestoneLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	due := time.Now().Add(14 * 24 * time.Hour)
	ms, err := f.svc.CreateMilestone(ctx, projectID, memberID, "Launch", "public beta", &due)
	require.NoError(t, err)

	updated, err := f.svc.UpdateMilestone(ctx, ms.ID, memberID, "Launch v2", "GA", nil)
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Title)
	assert.Nil(t, updated.DueDate)

	require.NoError(t, f.svc.DeleteMilestone(ctx, ms.ID, ownerID))
	_, err = f.svc.UpdateMilestone(ctx, ms.ID, memberID, "gone", "", nil)
	assert.ErrorIs(t, err, ErrMilestoneNotFound)
}

func TestMilestoneMutationDeniedForViewer(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateMilestone(context.Background(), projectID, viewerID, "Launch", "", nil)
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestViewerMayComment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assignee := ownerID
	created := f.mustCreate(t, TaskInput{Title: "Design mockups", AssigneeID: &assignee})

	c, err := f.svc.AddComment(ctx, created.ID, viewerID, "Looks good", []model.Attachment{
		{Name: "spec.pdf", URL: "https://cdn.example.com/spec.pdf", MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, viewerID, c.AuthorID)

	var payload mq.CommentCreatedPayload
	found := false
	for _, e := range f.publisher.events {
		if e.routingKey == mq.RoutingKeyCommentCreated {
			payload = e.payload.(mq.CommentCreatedPayload)
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, ownerID, payload.AssigneeID)
	assert.Equal(t, "Viewer", payload.AuthorName)
}

func TestAddCommentRequiresContent(t *testing.T) {
	f := newFixture()
	created := f.mustCreate(t, TaskInput{Title: "Design mockups"})

	_, err := f.svc.AddComment(context.Background(), created.ID, memberID, "   ", nil)
	assert.ErrorIs(t, err, ErrContentRequired)
}

func TestDeleteCommentAuthorOrModerator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.mustCreate(t, TaskInput{Title: "Design mockups"})
	c, err := f.svc.AddComment(ctx, created.ID, viewerID, "First!", nil)
	require.NoError(t, err)

	// Another member may not delete someone else's comment.
	err = f.svc.DeleteComment(ctx, c.ID, memberID)
	var denied *rbac.PermissionDeniedError
	require.ErrorAs(t, err, &denied)

	// The author may.
	require.NoError(t, f.svc.DeleteComment(ctx, c.ID, viewerID))

	// The owner may moderate anything.
	c2, err := f.svc.AddComment(ctx, created.ID, viewerID, "Second!", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteComment(ctx, c2.ID, ownerID))
}
