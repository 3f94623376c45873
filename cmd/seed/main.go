package main

import (
	"context"
	"log"
	"os"

	"todolist/internal/auth"
	"todolist/internal/seed"
	"todolist/internal/server"
	"todolist/internal/todo"
	"todolist/repository"
)

func main() {
	log.Println("Создание демо-данных...")

	cfg, err := server.LoadConfig(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] Ошибка конфигурации: %v", err)
	}

	ctx := context.Background()
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

	created, err := run(ctx, store, cfg)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return
	}
	if created {
		log.Printf("Вход: %s / %s", seed.DemoEmail, seed.DemoPassword)
	}
}

// run wipes the store first when cfg.SeedReset is set, then seeds the demo account.
func run(ctx context.Context, store repository.Store, cfg *server.Config) (bool, error) {
	if cfg.SeedReset {
		log.Println("[WARN] Удаление всех пользователей и задач")
		if err := store.Reset(ctx); err != nil {
			return false, err
		}
	}
	authService := auth.NewService(
		store,
		auth.NewTokenManager(cfg.JWTSecret, cfg.TTL()),
		auth.NewBcryptHasher(cfg.BcryptCost),
	)
	return seed.Demo(ctx, authService, todo.NewService(store))
}
