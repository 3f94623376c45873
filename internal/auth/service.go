package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/go-playground/validator"
)

// UserStore is the credential store the service depends on.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// bcrypt rejects longer inputs
const maxPasswordBytes = 72

type Service struct {
	users     UserStore
	tokens    *TokenManager
	hasher    PasswordHasher
	validate  *validator.Validate
	dummyHash string
	now       func() time.Time
}

func NewService(users UserStore, tokens *TokenManager, hasher PasswordHasher) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		validate: validator.New(),
		now:      time.Now,
	}
	// compared against when the email is unknown so both login failures cost the same
	if h, err := hasher.Hash("not-a-real-password"); err == nil {
		s.dummyHash = h
	}
	return s
}

func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.ErrMissingFields
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, errors.ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("хеширование пароля: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	log.Println("[INFO] Зарегистрирован пользователь:", user.ID)

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, errors.ErrMissingCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, err
		}
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, errors.ErrInvalidCredentials
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return s.issue(user)
}

// Verify resolves a bearer token to the stored user it was issued for.
func (s *Service) Verify(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{Token: token, User: user.Public()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			}
		}
	}
	return errors.ErrValidationFailed
}
