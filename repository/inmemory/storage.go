package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/google/uuid"
)

type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	todos map[string]todoRecord
	seq   uint64
}

// todoRecord keeps the insertion order to break createdAt ties.
type todoRecord struct {
	todo models.Todo
	seq  uint64
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		todos: make(map[string]todoRecord),
	}
}

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]models.User)
	s.todos = make(map[string]todoRecord)
	return nil
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return errors.ErrUserAlreadyExists
		}
	}
	user.ID = uuid.New().String()
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return errors.ErrUserNotFound
	}
	user.LastLogin = &at
	s.users[id] = user
	return nil
}

func (s *Storage) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) CreateTodo(_ context.Context, todo *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[todo.UserID]; !exists {
		return errors.ErrUserNotFound
	}
	todo.ID = uuid.New().String()
	s.seq++
	s.todos[todo.ID] = todoRecord{todo: cloneTodo(*todo), seq: s.seq}
	return nil
}

func (s *Storage) ListTodos(_ context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []todoRecord{}
	for _, r := range s.todos {
		if r.todo.UserID != userID {
			continue
		}
		if filter.Completed != nil && r.todo.Completed != *filter.Completed {
			continue
		}
		records = append(records, r)
	}
	return newestFirst(records), nil
}

func (s *Storage) UpdateTodo(_ context.Context, userID, id string, upd models.TodoUpdate, at time.Time) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.todos[id]
	if !exists || r.todo.UserID != userID {
		return nil, errors.ErrTodoNotFound
	}
	t := r.todo
	if upd.Text != nil {
		t.Text = *upd.Text
	}
	if upd.Completed != nil {
		t.Completed = *upd.Completed
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.ClearDueDate {
		t.DueDate = nil
	} else if upd.DueDate != nil {
		due := *upd.DueDate
		t.DueDate = &due
	}
	if upd.Tags != nil {
		t.Tags = append([]string{}, (*upd.Tags)...)
	}
	if !upd.Empty() {
		t.UpdatedAt = at
	}
	r.todo = t
	s.todos[id] = r

	out := cloneTodo(t)
	return &out, nil
}

func (s *Storage) DeleteTodo(_ context.Context, userID, id string) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.todos[id]
	if !exists || r.todo.UserID != userID {
		return nil, errors.ErrTodoNotFound
	}
	delete(s.todos, id)
	return &r.todo, nil
}

func (s *Storage) DeleteCompletedTodos(_ context.Context, userID string) ([]models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := []todoRecord{}
	for id, r := range s.todos {
		if r.todo.UserID == userID && r.todo.Completed {
			deleted = append(deleted, r)
			delete(s.todos, id)
		}
	}
	return newestFirst(deleted), nil
}

func (s *Storage) TodoStats(_ context.Context) (models.TodoStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.TodoStats
	for _, r := range s.todos {
		stats.Total++
		if r.todo.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

func (s *Storage) Close() error {
	return nil
}

// cloneTodo detaches the tag slice so callers cannot mutate stored state.
func cloneTodo(t models.Todo) models.Todo {
	if t.Tags != nil {
		t.Tags = append([]string{}, t.Tags...)
	}
	return t
}

func newestFirst(records []todoRecord) []models.Todo {
	sort.Slice(records, func(i, j int) bool {
		if records[i].todo.CreatedAt.Equal(records[j].todo.CreatedAt) {
			return records[i].seq > records[j].seq
		}
		return records[i].todo.CreatedAt.After(records[j].todo.CreatedAt)
	})
	todos := make([]models.Todo, 0, len(records))
	for _, r := range records {
		todos = append(todos, cloneTodo(r.todo))
	}
	return todos
}
