package todo

import (
	"context"
	"strings"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/go-playground/validator"
)

// Store holds todo records. Every call is scoped by the owner id and
// ownership is part of the lookup, so another user's id yields ErrTodoNotFound.
type Store interface {
	ListTodos(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error)
	CreateTodo(ctx context.Context, todo *models.Todo) error
	UpdateTodo(ctx context.Context, userID, id string, upd models.TodoUpdate, at time.Time) (*models.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) (*models.Todo, error)
	DeleteCompletedTodos(ctx context.Context, userID string) ([]models.Todo, error)
}

const (
	textRules = "required,max=200"
	tagsRules = "max=10,dive,required,max=20"
)

type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error) {
	todos, err := s.store.ListTodos(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	s.decorate(todos)
	return todos, nil
}

func (s *Service) Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.Todo, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.Tags = normalizeTags(req.Tags)
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now().UTC()
	todo := &models.Todo{
		UserID:    userID,
		Text:      req.Text,
		Priority:  req.Priority,
		DueDate:   utcPtr(req.DueDate),
		Tags:      req.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTodo(ctx, todo); err != nil {
		return nil, err
	}
	s.decorateOne(todo)
	return todo, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req models.UpdateTodoRequest) (*models.Todo, error) {
	upd := models.TodoUpdate{
		Completed: req.Completed,
	}
	if req.DueDate.Set {
		upd.DueDate = utcPtr(req.DueDate.Value)
		upd.ClearDueDate = req.DueDate.Value == nil
	}

	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if err := s.validate.Var(text, textRules); err != nil {
			return nil, errors.ErrInvalidText
		}
		upd.Text = &text
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, errors.ErrInvalidPriority
		}
		upd.Priority = req.Priority
	}
	if req.Tags != nil {
		tags := normalizeTags(*req.Tags)
		if err := s.validate.Var(tags, tagsRules); err != nil {
			return nil, errors.ErrInvalidTags
		}
		upd.Tags = &tags
	}

	todo, err := s.store.UpdateTodo(ctx, userID, id, upd, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.decorateOne(todo)
	return todo, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) (*models.Todo, error) {
	todo, err := s.store.DeleteTodo(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.decorateOne(todo)
	return todo, nil
}

// ClearCompleted removes every completed todo of the user and reports them.
func (s *Service) ClearCompleted(ctx context.Context, userID string) (*models.ClearCompletedResult, error) {
	deleted, err := s.store.DeleteCompletedTodos(ctx, userID)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		deleted = []models.Todo{}
	}
	s.decorate(deleted)
	return &models.ClearCompletedResult{DeletedCount: len(deleted), Deleted: deleted}, nil
}

func (s *Service) decorate(todos []models.Todo) {
	for i := range todos {
		s.decorateOne(&todos[i])
	}
}

func (s *Service) decorateOne(t *models.Todo) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Overdue = t.IsOverdue(s.now())
}

// normalizeTags trims tags and drops repeats, keeping the first occurrence.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if _, dup := seen[tag]; dup && tag != "" {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch field := verr.Field(); {
			case field == "Text":
				return errors.ErrInvalidText
			case field == "Priority":
				return errors.ErrInvalidPriority
			case strings.HasPrefix(field, "Tags"):
				return errors.ErrInvalidTags
			}
		}
	}
	return errors.ErrValidationFailed
}
