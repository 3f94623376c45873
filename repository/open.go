package repository

import (
	"context"
	"fmt"
	"log"
	"strings"

	"todolist/internal/auth"
	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"
	"todolist/internal/todo"
	"todolist/repository/db"
	storage "todolist/repository/inmemory"
	"todolist/repository/mongodb"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Store is everything a backend offers: the credential and todo stores plus
// the diagnostics used by cmd/dbcheck.
type Store interface {
	auth.UserStore
	todo.Store
	ListUsers(ctx context.Context) ([]models.User, error)
	TodoStats(ctx context.Context) (models.TodoStats, error)
	// Reset wipes all users and todos.
	Reset(ctx context.Context) error
	Close() error
}

type Options struct {
	Backend     string
	DBStr       string
	MigratePath string
	MongoURI    string
	MongoDB     string
	// Fallback switches to the in-memory store when the configured backend is unreachable.
	Fallback bool
}

var (
	_ Store = (*storage.Storage)(nil)
	_ Store = (*db.Storage)(nil)
	_ Store = (*mongodb.Storage)(nil)
)

func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		log.Println("[INFO] Используется хранилище в памяти")
		return storage.NewStorage(), nil
	case BackendPostgres, "postgresql":
		return openPostgres(opts)
	case BackendMongo, "mongodb":
		s, err := mongodb.NewStorage(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return fallback(opts, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownStorage, opts.Backend)
	}
}

func openPostgres(opts Options) (Store, error) {
	if err := db.Migration(opts.DBStr, opts.MigratePath); err != nil {
		log.Println("[ERROR] Ошибка применения миграций:", err)
		return fallback(opts, err)
	}
	log.Println("[SUCCESS] Миграции применены успешно")

	s, err := db.NewStorage(opts.DBStr)
	if err != nil {
		return fallback(opts, err)
	}
	return s, nil
}

func fallback(opts Options, cause error) (Store, error) {
	if !opts.Fallback {
		return nil, fmt.Errorf("%w: %w", errors.ErrDatabaseConnection, cause)
	}
	log.Println("[WARN] Не удалось подключиться к БД, используем память:", cause)
	return storage.NewStorage(), nil
}
