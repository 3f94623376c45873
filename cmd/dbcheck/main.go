package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"todolist/internal/domain/models"
	"todolist/internal/server"
	"todolist/repository"
)

type inspector interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	TodoStats(ctx context.Context) (models.TodoStats, error)
}

func main() {
	cfg, err := server.LoadConfig(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] Ошибка конфигурации: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := repository.Open(ctx, repository.Options{
		Backend:     cfg.Storage,
		DBStr:       cfg.DBStr,
		MigratePath: cfg.MigratePath,
		MongoURI:    cfg.MongoURI,
		MongoDB:     cfg.MongoDB,
	})
	if err != nil {
		log.Fatalf("[ERROR] Не удалось открыть хранилище: %v", err)
	}
	defer store.Close()

	if err := report(ctx, os.Stdout, store); err != nil {
		log.Printf("[ERROR] %v", err)
	}
}

// report prints every user in its public form followed by todo counts.
func report(ctx context.Context, w io.Writer, db inspector) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("получение пользователей: %w", err)
	}
	fmt.Fprintf(w, "Пользователей: %d\n", len(users))
	for _, u := range users {
		pub := u.Public()
		lastLogin := "никогда"
		if pub.LastLogin != nil {
			lastLogin = pub.LastLogin.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %s  %s <%s>  создан %s  вход %s\n",
			pub.ID, pub.Username, pub.Email, pub.CreatedAt.Format(time.RFC3339), lastLogin)
	}

	stats, err := db.TodoStats(ctx)
	if err != nil {
		return fmt.Errorf("получение статистики: %w", err)
	}
	fmt.Fprintf(w, "Задач: %d (выполнено %d, в работе %d)\n", stats.Total, stats.Completed, stats.Pending)
	return nil
}
