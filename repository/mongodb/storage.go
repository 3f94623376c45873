package mongodb

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	queryTimeout    = 15 * time.Second
	usersCollection = "users"
	todosCollection = "todos"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	CreatedAt    time.Time          `bson:"createdAt"`
	LastLogin    *time.Time         `bson:"lastLogin,omitempty"`
}

type todoDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      primitive.ObjectID `bson:"user"`
	Text      string             `bson:"text"`
	Completed bool               `bson:"completed"`
	Priority  string             `bson:"priority"`
	DueDate   *time.Time         `bson:"dueDate"`
	Tags      []string           `bson:"tags"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
	todos  *mongo.Collection
}

// NewStorage connects, pings and makes sure the unique and access-pattern
// indexes exist before the store is handed out.
func NewStorage(ctx context.Context, uri, database string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Println("[ERROR] Не удалось подключиться к MongoDB:", err)
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		log.Println("[ERROR] MongoDB недоступна:", err)
		return nil, err
	}

	db := client.Database(database)
	s := &Storage{
		client: client,
		users:  db.Collection(usersCollection),
		todos:  db.Collection(todosCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		log.Println("[ERROR] Не удалось создать индексы:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Соединение с MongoDB установлено успешно:", database)
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}
	_, err = s.todos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "completed", Value: 1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Reset drops both collections and recreates their indexes.
func (s *Storage) Reset(ctx context.Context) error {
	if err := s.todos.Drop(ctx); err != nil {
		return err
	}
	if err := s.users.Drop(ctx); err != nil {
		return err
	}
	return s.ensureIndexes(ctx)
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	doc := userDoc{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		LastLogin:    user.LastLogin,
	}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Println("[ERROR] Пользователь уже существует:", user.Username)
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Не удалось создать пользователя:", err)
		return err
	}
	user.ID = res.InsertedID.(primitive.ObjectID).Hex()
	log.Println("[SUCCESS] Пользователь успешно создан:", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Storage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Ошибка при получении пользователя:", err)
		return nil, err
	}
	return doc.model(), nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		log.Println("[ERROR] Не удалось обновить время входа:", err)
		return err
	}
	if res.MatchedCount == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.model())
	}
	return users, nil
}

func (s *Storage) CreateTodo(ctx context.Context, todo *models.Todo) error {
	owner, err := primitive.ObjectIDFromHex(todo.UserID)
	if err != nil {
		return errors.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tags := todo.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := todoDoc{
		User:      owner,
		Text:      todo.Text,
		Completed: todo.Completed,
		Priority:  string(todo.Priority),
		DueDate:   todo.DueDate,
		Tags:      tags,
		CreatedAt: todo.CreatedAt,
		UpdatedAt: todo.UpdatedAt,
	}
	res, err := s.todos.InsertOne(ctx, doc)
	if err != nil {
		log.Println("[ERROR] Не удалось создать задачу:", err)
		return err
	}
	todo.ID = res.InsertedID.(primitive.ObjectID).Hex()
	log.Println("[SUCCESS] Задача успешно создана:", todo.ID)
	return nil
}

func (s *Storage) ListTodos(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []models.Todo{}, nil
	}
	query := bson.M{"user": owner}
	if filter.Completed != nil {
		query["completed"] = *filter.Completed
	}
	return s.findTodos(ctx, query)
}

func (s *Storage) findTodos(ctx context.Context, query bson.M) ([]models.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.todos.Find(ctx, query, opts)
	if err != nil {
		log.Println("[ERROR] Не удалось получить задачи:", err)
		return nil, err
	}
	var docs []todoDoc
	if err := cur.All(ctx, &docs); err != nil {
		log.Println("[ERROR] Ошибка при чтении задач:", err)
		return nil, err
	}
	todos := make([]models.Todo, 0, len(docs))
	for _, d := range docs {
		todos = append(todos, *d.model())
	}
	return todos, nil
}

// UpdateTodo applies the patch with a single FindOneAndUpdate, so concurrent
// updates of the same todo are serialized by the server.
func (s *Storage) UpdateTodo(ctx context.Context, userID, id string, upd models.TodoUpdate, at time.Time) (*models.Todo, error) {
	filter, ok := ownedTodo(userID, id)
	if !ok {
		return nil, errors.ErrTodoNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{}
	if upd.Text != nil {
		set["text"] = *upd.Text
	}
	if upd.Completed != nil {
		set["completed"] = *upd.Completed
	}
	if upd.Priority != nil {
		set["priority"] = string(*upd.Priority)
	}
	if upd.ClearDueDate {
		set["dueDate"] = nil
	} else if upd.DueDate != nil {
		set["dueDate"] = *upd.DueDate
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}

	var doc todoDoc
	if len(set) == 0 {
		err := s.todos.FindOne(ctx, filter).Decode(&doc)
		if err != nil {
			return nil, todoError(err)
		}
		return doc.model(), nil
	}
	set["updatedAt"] = at

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.todos.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, todoError(err)
	}
	log.Println("[SUCCESS] Задача успешно обновлена:", id)
	return doc.model(), nil
}

func (s *Storage) DeleteTodo(ctx context.Context, userID, id string) (*models.Todo, error) {
	filter, ok := ownedTodo(userID, id)
	if !ok {
		return nil, errors.ErrTodoNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var doc todoDoc
	if err := s.todos.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return nil, todoError(err)
	}
	log.Println("[SUCCESS] Задача удалена:", id)
	return doc.model(), nil
}

// DeleteCompletedTodos reads the completed set and deletes exactly those ids,
// still requiring completed=true so a todo reopened in between survives.
func (s *Storage) DeleteCompletedTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []models.Todo{}, nil
	}
	completed, err := s.findTodos(ctx, bson.M{"user": owner, "completed": true})
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return completed, nil
	}

	ids := make([]primitive.ObjectID, 0, len(completed))
	for _, t := range completed {
		oid, _ := primitive.ObjectIDFromHex(t.ID)
		ids = append(ids, oid)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	filter := bson.M{"_id": bson.M{"$in": ids}, "user": owner, "completed": true}
	res, err := s.todos.DeleteMany(ctx, filter)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить выполненные задачи:", err)
		return nil, err
	}
	if res.DeletedCount != int64(len(completed)) {
		// some were reopened or removed meanwhile; report only what is really gone
		return s.stillAbsent(ctx, completed)
	}
	log.Println("[SUCCESS] Удалено выполненных задач:", res.DeletedCount)
	return completed, nil
}

func (s *Storage) stillAbsent(ctx context.Context, candidates []models.Todo) ([]models.Todo, error) {
	gone := make([]models.Todo, 0, len(candidates))
	for _, t := range candidates {
		oid, _ := primitive.ObjectIDFromHex(t.ID)
		n, err := s.todos.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			gone = append(gone, t)
		}
	}
	return gone, nil
}

func (s *Storage) TodoStats(ctx context.Context) (models.TodoStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var stats models.TodoStats
	var err error
	if stats.Total, err = s.todos.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, err
	}
	if stats.Completed, err = s.todos.CountDocuments(ctx, bson.M{"completed": true}); err != nil {
		return stats, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func ownedTodo(userID, id string) (bson.M, bool) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, false
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "user": owner}, true
}

func todoError(err error) error {
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return errors.ErrTodoNotFound
	}
	log.Println("[ERROR] Ошибка при работе с задачей:", err)
	return err
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		LastLogin:    d.LastLogin,
	}
}

func (d *todoDoc) model() *models.Todo {
	return &models.Todo{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Text:      d.Text,
		Completed: d.Completed,
		Priority:  models.Priority(d.Priority),
		DueDate:   d.DueDate,
		Tags:      d.Tags,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
