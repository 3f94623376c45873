package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todolist/internal/auth"
	"todolist/internal/seed"
	"todolist/internal/server"
	"todolist/internal/todo"
	"todolist/repository"
)

const shutdownTimeout = 30 * time.Second

type apiServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	log.Println("Запуск сервиса задач...")

	cfg, err := server.LoadConfig(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] Ошибка конфигурации: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repository.Open(ctx, repository.Options{
		Backend:     cfg.Storage,
		DBStr:       cfg.DBStr,
		MigratePath: cfg.MigratePath,
		MongoURI:    cfg.MongoURI,
		MongoDB:     cfg.MongoDB,
		Fallback:    true,
	})
	if err != nil {
		log.Fatalf("[ERROR] Не удалось открыть хранилище: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Println("[WARN] Ошибка при закрытии хранилища:", err)
		}
	}()

	api, err := buildAPI(ctx, store, cfg)
	if err != nil {
		log.Printf("[ERROR] Не удалось инициализировать API: %v", err)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Сервис запущен на %s", cfg.ListenAddr())
	if err := serve(api, sigChan, shutdownTimeout); err != nil {
		log.Printf("[ERROR] Ошибка сервера: %v", err)
	}
	log.Println("Сервис завершен")
}

func buildAPI(ctx context.Context, store repository.Store, cfg *server.Config) (*server.TodoAPI, error) {
	authService := auth.NewService(
		store,
		auth.NewTokenManager(cfg.JWTSecret, cfg.TTL()),
		auth.NewBcryptHasher(cfg.BcryptCost),
	)
	todoService := todo.NewService(store)

	if cfg.SeedDemo {
		if _, err := seed.Demo(ctx, authService, todoService); err != nil {
			log.Println("[WARN] Не удалось создать демо-данные:", err)
		}
	}

	api := server.NewTodoAPI(authService, todoService, cfg)
	if api == nil {
		return nil, stderrors.New("пустой сервис")
	}
	return api, nil
}

// serve runs the API until it fails or a signal arrives, then shuts it down
// within the given timeout.
func serve(api apiServer, sigChan <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := api.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Получен сигнал %v, начинаем graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Ошибка при graceful shutdown: %v", err)
			return err
		}
		log.Println("[SUCCESS] Graceful shutdown выполнен успешно")
		return nil

	case err := <-serverErr:
		return err
	}
}
