package auth

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/internal/model"
	"teamboard/pkg/util"
)

type fakeUserStore struct {
	byEmail map[string]*model.User
	byID    map[int]*model.User
	nextID  int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]*model.User),
		byID:    make(map[int]*model.User),
		nextID:  1,
	}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, u *model.User) error {
	u.ID = f.nextID
	f.nextID++
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id int, displayName, avatarURL, jobTitle string) error {
	u, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.DisplayName = displayName
	u.AvatarURL = avatarURL
	u.JobTitle = jobTitle
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "test-secret")
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice@example.com", "hunter22", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	token, logged, err := svc.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, logged.ID)

	parsedID, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, parsedID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "hunter22", "Alice")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice@example.com", "other-pass", "Imposter")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "test-secret")

	u, err := svc.Register(context.Background(), "bob@example.com", "pw123456", "")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.DisplayName)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "hunter22", "Alice")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "test-secret")
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice@example.com", "hunter22", "Alice")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, u.ID, "Alice Liddell", "https://cdn.example.com/a.png", "Engineer")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.DisplayName)
	assert.Equal(t, "https://cdn.example.com/a.png", updated.AvatarURL)
	assert.Equal(t, "Engineer", updated.JobTitle)
}

func TestGetProfileNotFound(t *testing.T) {
	svc := NewService(newFakeUserStore(), "test-secret")

	_, err := svc.GetProfile(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
