package db

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryTimeout      = 15 * time.Second
	uniqueViolation   = "23505"
	foreignKeyMissing = "23503"
	todoColumns       = `id, user_id, text, completed, priority, due_date, tags, created_at, updated_at`
)

type Storage struct {
	pool             *pgxpool.Pool
	qCreateUser      string
	qGetUserByID     string
	qGetUserByEmail  string
	qUpdateLastLogin string
	qListUsers       string
	qCreateTodo      string
	qListTodos       string
	qUpdateTodo      string
	qDeleteTodo      string
	qDeleteCompleted string
	qTodoStats       string
	deleteQueue      chan struct{}
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Не удалось подключиться к базе данных:", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] База данных недоступна:", err)
		return nil, err
	}

	s := &Storage{
		pool:             pool,
		qCreateUser:      `INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		qGetUserByID:     `SELECT id, username, email, password_hash, created_at, last_login FROM users WHERE id = $1`,
		qGetUserByEmail:  `SELECT id, username, email, password_hash, created_at, last_login FROM users WHERE email = $1`,
		qUpdateLastLogin: `UPDATE users SET last_login = $1 WHERE id = $2`,
		qListUsers:       `SELECT id, username, email, password_hash, created_at, last_login FROM users ORDER BY created_at`,
		qCreateTodo: `INSERT INTO todos (id, user_id, text, completed, priority, due_date, tags, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		qListTodos: `SELECT ` + todoColumns + ` FROM todos
			WHERE user_id = $1 AND deleted = false AND ($2::boolean IS NULL OR completed = $2)
			ORDER BY created_at DESC, seq DESC`,
		qUpdateTodo: `UPDATE todos SET
				text = COALESCE($3::text, text),
				completed = COALESCE($4::boolean, completed),
				priority = COALESCE($5::text, priority),
				due_date = CASE WHEN $10::boolean THEN NULL ELSE COALESCE($6::timestamptz, due_date) END,
				tags = COALESCE($7::text[], tags),
				updated_at = CASE WHEN $8::boolean THEN $9::timestamptz ELSE updated_at END
			WHERE id = $1 AND user_id = $2 AND deleted = false
			RETURNING ` + todoColumns,
		qDeleteTodo: `UPDATE todos SET deleted = true
			WHERE id = $1 AND user_id = $2 AND deleted = false
			RETURNING ` + todoColumns,
		qDeleteCompleted: `UPDATE todos SET deleted = true
			WHERE user_id = $1 AND completed = true AND deleted = false
			RETURNING ` + todoColumns,
		qTodoStats: `SELECT count(*), count(*) FILTER (WHERE completed), count(*) FILTER (WHERE NOT completed)
			FROM todos WHERE deleted = false`,
		deleteQueue: make(chan struct{}, 10),
	}
	log.Println("[SUCCESS] Соединение с базой данных установлено успешно")
	return s, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Reset removes every user and todo, flagged rows included.
func (s *Storage) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `TRUNCATE todos, users`); err != nil {
		log.Println("[ERROR] Не удалось очистить таблицы:", err)
		return err
	}
	log.Println("[SUCCESS] Таблицы users и todos очищены")
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, s.qCreateUser, id, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			log.Println("[ERROR] Пользователь уже существует:", user.Username)
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Не удалось создать пользователя:", err)
		return err
	}
	user.ID = id
	log.Println("[SUCCESS] Пользователь успешно создан:", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, s.qGetUserByID, id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, s.qGetUserByEmail, email)
}

func (s *Storage) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	user, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Ошибка при получении пользователя:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := s.pool.Exec(ctx, s.qUpdateLastLogin, at, id)
	if err != nil {
		log.Println("[ERROR] Не удалось обновить время входа:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, s.qListUsers)
	if err != nil {
		log.Println("[ERROR] Не удалось получить пользователей:", err)
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *Storage) CreateTodo(ctx context.Context, todo *models.Todo) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := uuid.Parse(todo.UserID); err != nil {
		return errors.ErrUserNotFound
	}
	id := uuid.New().String()
	tags := todo.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx, s.qCreateTodo,
		id, todo.UserID, todo.Text, todo.Completed, string(todo.Priority), todo.DueDate, tags, todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		if pgCode(err) == foreignKeyMissing {
			return errors.ErrUserNotFound
		}
		log.Println("[ERROR] Не удалось создать задачу:", err)
		return err
	}
	todo.ID = id
	log.Println("[SUCCESS] Задача успешно создана:", todo.ID)
	return nil
}

func (s *Storage) ListTodos(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []models.Todo{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, s.qListTodos, userID, filter.Completed)
	if err != nil {
		log.Println("[ERROR] Не удалось получить задачи:", err)
		return nil, err
	}
	todos, err := collectTodos(rows)
	if err != nil {
		log.Println("[ERROR] Ошибка при чтении задач:", err)
		return nil, err
	}
	return todos, nil
}

func (s *Storage) UpdateTodo(ctx context.Context, userID, id string, upd models.TodoUpdate, at time.Time) (*models.Todo, error) {
	if !validIDs(userID, id) {
		return nil, errors.ErrTodoNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var priority, tags interface{}
	if upd.Priority != nil {
		priority = string(*upd.Priority)
	}
	if upd.Tags != nil {
		tags = *upd.Tags
	}
	row := s.pool.QueryRow(ctx, s.qUpdateTodo,
		id, userID, upd.Text, upd.Completed, priority, upd.DueDate, tags, !upd.Empty(), at, upd.ClearDueDate)
	todo, err := scanTodo(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			log.Println("[ERROR] Задача для обновления не найдена:", id)
			return nil, errors.ErrTodoNotFound
		}
		log.Println("[ERROR] Не удалось обновить задачу:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Задача успешно обновлена:", id)
	return todo, nil
}

func (s *Storage) DeleteTodo(ctx context.Context, userID, id string) (*models.Todo, error) {
	if !validIDs(userID, id) {
		return nil, errors.ErrTodoNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	todo, err := scanTodo(s.pool.QueryRow(ctx, s.qDeleteTodo, id, userID))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			log.Println("[ERROR] Задача для удаления не найдена:", id)
			return nil, errors.ErrTodoNotFound
		}
		log.Println("[ERROR] Не удалось пометить задачу как удалённую:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Задача помечена как удалённая:", id)
	s.tryEnqueueOrFlush()
	return todo, nil
}

// DeleteCompletedTodos flags the completed set in one statement, so a todo
// toggled concurrently is either fully in the result or untouched.
func (s *Storage) DeleteCompletedTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []models.Todo{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, s.qDeleteCompleted, userID)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить выполненные задачи:", err)
		return nil, err
	}
	todos, err := collectTodos(rows)
	if err != nil {
		return nil, err
	}
	log.Println("[SUCCESS] Помечено удалёнными выполненных задач:", len(todos))
	if len(todos) > 0 {
		s.tryEnqueueOrFlush()
	}
	return todos, nil
}

func (s *Storage) TodoStats(ctx context.Context) (models.TodoStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var stats models.TodoStats
	err := s.pool.QueryRow(ctx, s.qTodoStats).Scan(&stats.Total, &stats.Completed, &stats.Pending)
	return stats, err
}

// tryEnqueueOrFlush counts soft deletes; every time the queue fills up the
// flagged rows are removed for good.
func (s *Storage) tryEnqueueOrFlush() {
	if s.deleteQueue == nil {
		return
	}
	select {
	case s.deleteQueue <- struct{}{}:
	default:
		s.drainDeleteQueue()
		if affected, err := s.hardDeleteAllFlagged(context.Background()); err != nil {
			log.Println("[ERROR] Ошибка при удалении задач с признаком deleted:", err)
		} else if affected > 0 {
			log.Println("[SUCCESS] Жёстко удалено задач:", affected)
		}
	}
}

func (s *Storage) drainDeleteQueue() {
	for {
		select {
		case <-s.deleteQueue:
		default:
			return
		}
	}
}

func (s *Storage) hardDeleteAllFlagged(ctx context.Context) (int64, error) {
	c, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tx, err := s.pool.Begin(c)
	if err != nil {
		return 0, err
	}
	ct, err := tx.Exec(c, `DELETE FROM todos WHERE deleted = true`)
	if err != nil {
		_ = tx.Rollback(c)
		return 0, err
	}
	if err := tx.Commit(c); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.LastLogin); err != nil {
		return nil, err
	}
	return user, nil
}

func scanTodo(row pgx.Row) (*models.Todo, error) {
	todo := &models.Todo{}
	var priority string
	if err := row.Scan(&todo.ID, &todo.UserID, &todo.Text, &todo.Completed, &priority,
		&todo.DueDate, &todo.Tags, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	todo.Priority = models.Priority(priority)
	return todo, nil
}

func collectTodos(rows pgx.Rows) ([]models.Todo, error) {
	defer rows.Close()
	todos := []models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
