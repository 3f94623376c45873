package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, s *Storage, username, email string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: email, PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func newTodo(t *testing.T, s *Storage, userID, text string, at time.Time) *models.Todo {
	t.Helper()
	todo := &models.Todo{UserID: userID, Text: text, Priority: models.PriorityMedium, Tags: []string{}, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, s.CreateTodo(context.Background(), todo))
	return todo
}

func TestStorageCreateUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		want     struct {
			err error
		}
	}{
		{name: "new user", username: "bob", email: "bob@example.com", want: struct{ err error }{err: nil}},
		{name: "duplicate username", username: "alice", email: "other@example.com", want: struct{ err error }{err: errors.ErrUserAlreadyExists}},
		{name: "duplicate email", username: "carol", email: "alice@example.com", want: struct{ err error }{err: errors.ErrUserAlreadyExists}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStorage()
			newUser(t, s, "alice", "alice@example.com")

			user := &models.User{Username: tt.username, Email: tt.email}
			err := s.CreateUser(context.Background(), user)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				users, _ := s.ListUsers(context.Background())
				assert.Len(t, users, 1)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
		})
	}
}

func TestStorageGetUser(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")

	byID, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestStorageUpdateLastLogin(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpdateLastLogin(ctx, alice.ID, at))
	user, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.True(t, at.Equal(*user.LastLogin))

	assert.ErrorIs(t, s.UpdateLastLogin(ctx, "missing", at), errors.ErrUserNotFound)
}

func TestStorageCreateTodoUnknownUser(t *testing.T) {
	s := NewStorage()
	err := s.CreateTodo(context.Background(), &models.Todo{UserID: "ghost", Text: "x"})
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestStorageListTodosOrder(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	newTodo(t, s, alice.ID, "older", at.Add(-time.Minute))
	newTodo(t, s, alice.ID, "tie-1", at)
	newTodo(t, s, alice.ID, "tie-2", at)

	todos, err := s.ListTodos(ctx, alice.ID, models.TodoFilter{})
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, "tie-2", todos[0].Text)
	assert.Equal(t, "tie-1", todos[1].Text)
	assert.Equal(t, "older", todos[2].Text)
}

func TestStorageUpdateTodo(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	bob := newUser(t, s, "bob", "bob@example.com")
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	todo := newTodo(t, s, alice.ID, "draft", created)
	later := created.Add(time.Hour)

	done := true
	updated, err := s.UpdateTodo(ctx, alice.ID, todo.ID, models.TodoUpdate{Completed: &done}, later)
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "draft", updated.Text)
	assert.Equal(t, later, updated.UpdatedAt)

	unchanged, err := s.UpdateTodo(ctx, alice.ID, todo.ID, models.TodoUpdate{}, later.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, later, unchanged.UpdatedAt)

	_, err = s.UpdateTodo(ctx, bob.ID, todo.ID, models.TodoUpdate{Completed: &done}, later)
	assert.ErrorIs(t, err, errors.ErrTodoNotFound)

	_, err = s.UpdateTodo(ctx, alice.ID, "missing", models.TodoUpdate{Completed: &done}, later)
	assert.ErrorIs(t, err, errors.ErrTodoNotFound)
}

func TestStorageUpdateTodoDueDate(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	todo := newTodo(t, s, alice.ID, "draft", created)
	due := created.Add(48 * time.Hour)

	withDue, err := s.UpdateTodo(ctx, alice.ID, todo.ID, models.TodoUpdate{DueDate: &due}, created.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, withDue.DueDate)
	assert.Equal(t, due, *withDue.DueDate)

	cleared, err := s.UpdateTodo(ctx, alice.ID, todo.ID, models.TodoUpdate{ClearDueDate: true, DueDate: &due}, created.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
	assert.Equal(t, created.Add(2*time.Hour), cleared.UpdatedAt)
}

func TestStorageReturnedTodosAreCopies(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	todo := &models.Todo{UserID: alice.ID, Text: "tagged", Tags: []string{"a"}, CreatedAt: time.Now()}
	require.NoError(t, s.CreateTodo(ctx, todo))

	todos, err := s.ListTodos(ctx, alice.ID, models.TodoFilter{})
	require.NoError(t, err)
	todos[0].Tags[0] = "mutated"

	again, err := s.ListTodos(ctx, alice.ID, models.TodoFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again[0].Tags)
}

func TestStorageDeleteTodo(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	bob := newUser(t, s, "bob", "bob@example.com")
	todo := newTodo(t, s, alice.ID, "gone soon", time.Now())

	_, err := s.DeleteTodo(ctx, bob.ID, todo.ID)
	assert.ErrorIs(t, err, errors.ErrTodoNotFound)

	deleted, err := s.DeleteTodo(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.ID, deleted.ID)

	_, err = s.DeleteTodo(ctx, alice.ID, todo.ID)
	assert.ErrorIs(t, err, errors.ErrTodoNotFound)
}

func TestStorageDeleteCompletedTodos(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	bob := newUser(t, s, "bob", "bob@example.com")
	now := time.Now()
	done := true

	a := newTodo(t, s, alice.ID, "a", now)
	newTodo(t, s, alice.ID, "b", now)
	bobs := newTodo(t, s, bob.ID, "bob's", now)
	_, err := s.UpdateTodo(ctx, alice.ID, a.ID, models.TodoUpdate{Completed: &done}, now)
	require.NoError(t, err)
	_, err = s.UpdateTodo(ctx, bob.ID, bobs.ID, models.TodoUpdate{Completed: &done}, now)
	require.NoError(t, err)

	deleted, err := s.DeleteCompletedTodos(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, a.ID, deleted[0].ID)

	stats, err := s.TodoStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TodoStats{Total: 2, Completed: 1, Pending: 1}, stats)
}

func TestStorageConcurrency(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			todo := &models.Todo{UserID: alice.ID, Text: "task", CreatedAt: time.Now()}
			assert.NoError(t, s.CreateTodo(ctx, todo))
			_, _ = s.ListTodos(ctx, alice.ID, models.TodoFilter{})
		}()
	}
	wg.Wait()

	todos, err := s.ListTodos(ctx, alice.ID, models.TodoFilter{})
	require.NoError(t, err)
	assert.Len(t, todos, 50)
}

func TestStorageReset(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	alice := newUser(t, s, "alice", "alice@example.com")
	todo := newTodo(t, s, alice.ID, "draft", time.Now())

	require.NoError(t, s.Reset(ctx))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	_, err = s.GetUserByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
	_, err = s.DeleteTodo(ctx, alice.ID, todo.ID)
	assert.ErrorIs(t, err, errors.ErrTodoNotFound)

	again := newUser(t, s, "alice", "alice@example.com")
	assert.NotEqual(t, alice.ID, again.ID)
}
