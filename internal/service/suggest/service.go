package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/service/task"
	"teamboard/pkg/metrics"
	"teamboard/pkg/rbac"
)

var ErrProjectNotFound = errors.New("project not found")

const (
	maxAttempts    = 3
	maxSuggestions = 8
)

// Suggestion is a proposed task the user can review before applying.
type Suggestion struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Priority model.TaskPriority `json:"priority"`
	Status   model.TaskStatus   `json:"status"`
	DueDate  time.Time          `json:"due_date"`
}

type rawSuggestion struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type TaskCreator interface {
	Create(ctx context.Context, projectID, callerID int, in task.TaskInput) (*model.Task, error)
}

type MembershipStore interface {
	Find(ctx context.Context, projectID, userID int) (*model.ProjectMember, error)
}

type Service struct {
	generator   Generator // nil without a configured credential
	tasks       TaskCreator
	memberships MembershipStore
	retryDelay  time.Duration
	logger      *zap.Logger
}

func NewService(generator Generator, tasks TaskCreator, memberships MembershipStore, logger *zap.Logger) *Service {
	return &Service{
		generator:   generator,
		tasks:       tasks,
		memberships: memberships,
		retryDelay:  time.Second,
		logger:      logger,
	}
}

// GenerateTasks proposes starter tasks for a project. The generator gets
// three attempts with 1s/2s backoff between them; anything that is not a
// parseable, non-empty JSON array counts as a failure. Exhausted attempts
// (or no generator at all) yield the fixed template list, so the call
// never fails outright.
func (s *Service) GenerateTasks(ctx context.Context, projectID, callerID int, description, projectType string) ([]Suggestion, error) {
	membership, err := s.memberships.Find(ctx, projectID, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := rbac.CheckPermission(callerID, membership.Role, rbac.PermissionSuggestRun); err != nil {
		return nil, err
	}

	return s.generate(ctx, description, projectType), nil
}

func (s *Service) generate(ctx context.Context, description, projectType string) []Suggestion {
	start := time.Now()

	if s.generator == nil {
		metrics.IncrementSuggestion("fallback")
		metrics.RecordSuggestionLatency("fallback", time.Since(start))
		return fallbackSuggestions()
	}

	prompt := buildPrompt(description, projectType)
	backoff := s.retryDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.generator.Generate(ctx, prompt)
		if err == nil {
			items, perr := parseSuggestions(raw)
			if perr == nil {
				metrics.IncrementSuggestion("ai")
				metrics.RecordSuggestionLatency("ai", time.Since(start))
				return stampSuggestions(items)
			}
			err = perr
		}

		s.logger.Warn("Suggestion attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				// Caller gave up waiting; hand back the template
				// list instead of burning more attempts.
				metrics.IncrementSuggestion("fallback")
				metrics.RecordSuggestionLatency("fallback", time.Since(start))
				return fallbackSuggestions()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	metrics.IncrementSuggestion("fallback")
	metrics.RecordSuggestionLatency("fallback", time.Since(start))
	return fallbackSuggestions()
}

// Apply creates the chosen suggestions as real tasks, in order. Position
// assignment and progress recomputation follow the normal task-create path.
func (s *Service) Apply(ctx context.Context, projectID, callerID int, chosen []Suggestion) ([]model.Task, error) {
	created := []model.Task{}
	for _, sg := range chosen {
		due := sg.DueDate
		in := task.TaskInput{
			Title:    sg.Title,
			Priority: sg.Priority,
		}
		if !due.IsZero() {
			in.DueDate = &due
		}
		t, err := s.tasks.Create(ctx, projectID, callerID, in)
		if err != nil {
			return created, err
		}
		created = append(created, *t)
	}
	return created, nil
}

func buildPrompt(description, projectType string) string {
	if projectType == "" {
		projectType = "general"
	}
	return fmt.Sprintf(
		"You are a project planning assistant. A team is starting a %s project described as: %q. "+
			"Respond with only a JSON array of 5 to 8 objects of the form "+
			`{"title": string, "priority": "low"|"medium"|"high"}. No prose, no markdown.`,
		projectType, description,
	)
}

// parseSuggestions accepts the model output: a JSON array of title/priority
// objects, possibly wrapped in a markdown code fence. An empty array, or one
// with only blank titles, is a failure.
func parseSuggestions(raw string) ([]rawSuggestion, error) {
	var items []rawSuggestion
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &items); err != nil {
		return nil, fmt.Errorf("suggestion response is not a JSON array: %w", err)
	}

	valid := make([]rawSuggestion, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) != "" {
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		return nil, errors.New("suggestion response contained no usable tasks")
	}
	return valid, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the ```json line
	} else {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// stampSuggestions turns parsed items into full suggestions: generated id,
// status todo, due date day N after generation for the Nth item, unknown
// priorities coerced to medium, at most eight kept.
func stampSuggestions(items []rawSuggestion) []Suggestion {
	if len(items) > maxSuggestions {
		items = items[:maxSuggestions]
	}

	now := time.Now()
	out := make([]Suggestion, 0, len(items))
	for i, item := range items {
		priority := model.TaskPriority(strings.ToLower(strings.TrimSpace(item.Priority)))
		if !priority.Valid() {
			priority = model.PriorityMedium
		}
		out = append(out, Suggestion{
			ID:       uuid.NewString(),
			Title:    strings.TrimSpace(item.Title),
			Priority: priority,
			Status:   model.StatusTodo,
			DueDate:  now.AddDate(0, 0, i+1),
		})
	}
	return out
}

func fallbackSuggestions() []Suggestion {
	titles := []struct {
		title    string
		priority model.TaskPriority
	}{
		{"Define project scope and goals", model.PriorityHigh},
		{"Set up the project workspace", model.PriorityHigh},
		{"Draft an initial timeline with milestones", model.PriorityMedium},
		{"Assign responsibilities across the team", model.PriorityMedium},
		{"Schedule a kickoff meeting", model.PriorityLow},
	}

	now := time.Now()
	out := make([]Suggestion, 0, len(titles))
	for i, item := range titles {
		out = append(out, Suggestion{
			ID:       uuid.NewString(),
			Title:    item.title,
			Priority: item.priority,
			Status:   model.StatusTodo,
			DueDate:  now.AddDate(0, 0, i+1),
		})
	}
	return out
}
