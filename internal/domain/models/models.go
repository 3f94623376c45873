package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Todo struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Text      string     `json:"text"`
	Completed bool       `json:"completed"`
	Priority  Priority   `json:"priority"`
	DueDate   *time.Time `json:"dueDate"`
	Tags      []string   `json:"tags"`
	Overdue   bool       `json:"isOverdue"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsOverdue reports whether an open todo has passed its due date.
func (t *Todo) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed {
		return false
	}
	return now.After(*t.DueDate)
}

type CreateTodoRequest struct {
	Text     string     `json:"text" validate:"required,max=200"`
	Priority Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate  *time.Time `json:"dueDate"`
	Tags     []string   `json:"tags" validate:"max=10,dive,required,max=20"`
}

// UpdateTodoRequest carries only the fields the client sent.
type UpdateTodoRequest struct {
	Text      *string      `json:"text"`
	Completed *bool        `json:"completed"`
	Priority  *Priority    `json:"priority"`
	DueDate   OptionalTime `json:"dueDate"`
	Tags      *[]string    `json:"tags"`
}

// OptionalTime tells an absent JSON field apart from an explicit null:
// Set is true whenever the key was present, Value is nil for null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// TodoUpdate is the normalized patch handed to a store.
// ClearDueDate wins over DueDate.
type TodoUpdate struct {
	Text         *string
	Completed    *bool
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
}

func (u TodoUpdate) Empty() bool {
	return u.Text == nil && u.Completed == nil && u.Priority == nil && u.DueDate == nil && !u.ClearDueDate && u.Tags == nil
}

type TodoFilter struct {
	Completed *bool
}

type TodoStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

type ClearCompletedResult struct {
	DeletedCount int    `json:"deletedCount"`
	Deleted      []Todo `json:"deleted"`
}
