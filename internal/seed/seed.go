package seed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"
)

const (
	DemoUsername = "demo"
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
)

type Auth interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResult, error)
}

type Todos interface {
	Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.Todo, error)
	Update(ctx context.Context, userID, id string, req models.UpdateTodoRequest) (*models.Todo, error)
}

type sample struct {
	text      string
	priority  models.Priority
	tags      []string
	completed bool
}

var samples = []sample{
	{text: "Learn Express.js", priority: models.PriorityHigh, tags: []string{"learning", "backend"}},
	{text: "Build a todo app", priority: models.PriorityMedium, tags: []string{"project", "frontend"}, completed: true},
	{text: "Deploy to production", priority: models.PriorityHigh, tags: []string{"deployment"}},
	{text: "Add database integration", priority: models.PriorityMedium, tags: []string{"database", "backend"}},
	{text: "Write documentation", priority: models.PriorityLow, tags: []string{"documentation"}},
}

// Demo creates the demo account with its sample todos. It returns false
// without touching anything when the account already exists.
func Demo(ctx context.Context, auth Auth, todos Todos) (bool, error) {
	res, err := auth.Signup(ctx, models.SignupRequest{
		Username: DemoUsername,
		Email:    DemoEmail,
		Password: DemoPassword,
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrUserAlreadyExists) {
			log.Println("[INFO] Демо-пользователь уже существует")
			return false, nil
		}
		return false, fmt.Errorf("создание демо-пользователя: %w", err)
	}

	for _, s := range samples {
		todo, err := todos.Create(ctx, res.User.ID, models.CreateTodoRequest{
			Text:     s.text,
			Priority: s.priority,
			Tags:     s.tags,
		})
		if err != nil {
			return true, fmt.Errorf("создание задачи %q: %w", s.text, err)
		}
		if s.completed {
			done := true
			if _, err := todos.Update(ctx, res.User.ID, todo.ID, models.UpdateTodoRequest{Completed: &done}); err != nil {
				return true, fmt.Errorf("обновление задачи %q: %w", s.text, err)
			}
		}
	}
	log.Printf("[SUCCESS] Создан демо-пользователь %s и %d задач", DemoEmail, len(samples))
	return true, nil
}
