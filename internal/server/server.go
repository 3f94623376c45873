package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Verify(ctx context.Context, token string) (*models.User, error)
}

type TodoService interface {
	List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, error)
	Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.Todo, error)
	Update(ctx context.Context, userID, id string, req models.UpdateTodoRequest) (*models.Todo, error)
	Delete(ctx context.Context, userID, id string) (*models.Todo, error)
	ClearCompleted(ctx context.Context, userID string) (*models.ClearCompletedResult, error)
}

type TodoAPI struct {
	httpSrv     *http.Server
	auth        AuthService
	todos       TodoService
	authLimiter    *RateLimiter
	corsOrigins    []string
	trustedProxies []string
	maxBodyBytes   int64
}

func NewTodoAPI(auth AuthService, todos TodoService, cfg *Config) *TodoAPI {
	if auth == nil || todos == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	api := &TodoAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:        auth,
		todos:       todos,
		authLimiter:    NewRateLimiter(rate.Limit(cfg.AuthRPS), cfg.AuthBurst),
		corsOrigins:    cfg.CORSOrigins,
		trustedProxies: cfg.TrustedProxies,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}
	if api.maxBodyBytes <= 0 {
		api.maxBodyBytes = defaultMaxBody
	}
	api.configRoutes()
	return api
}

func (api *TodoAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TodoAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	if api.httpSrv.Addr == "" {
		api.httpSrv.Addr = ":8080"
	}
	return api.httpSrv.ListenAndServe()
}

func (api *TodoAPI) Shutdown(ctx context.Context) error {
	api.authLimiter.Stop()
	return api.httpSrv.Shutdown(ctx)
}

func (api *TodoAPI) configRoutes() {
	router := gin.Default()
	router.HandleMethodNotAllowed = true
	// ClientIP keys the rate limiter, so forwarded headers count only from known proxies.
	if err := router.SetTrustedProxies(api.trustedProxies); err != nil {
		log.Println("[WARN] Некорректный список доверенных прокси, заголовки X-Forwarded-For игнорируются:", err)
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(api.corsMiddleware())
	router.Use(LimitRequestBody(api.maxBodyBytes))
	router.Use(DecompressRequest(api.maxBodyBytes))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": errors.ErrNotFound.Error()})
	})
	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": errors.ErrMethodNotAllowed.Error()})
	})

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.Use(api.authLimiter.LimitMiddleware())
	{
		authGroup.POST("/signup", api.signup)
		authGroup.POST("/login", api.login)
	}

	todos := apiGroup.Group("/todos")
	todos.Use(AuthRequired(api.auth))
	{
		todos.GET("", api.listTodos)
		todos.POST("", api.createTodo)
		todos.DELETE("", api.clearCompleted)
		todos.PUT("/:id", api.updateTodo)
		todos.DELETE("/:id", api.deleteTodo)
	}

	api.httpSrv.Handler = router
}

func (api *TodoAPI) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Encoding", "Accept-Encoding", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Encoding"},
		MaxAge:        12 * time.Hour,
	}
	origins := api.corsOrigins
	if len(origins) == 0 || contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func (api *TodoAPI) signup(ctx *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := api.auth.Signup(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message": "пользователь успешно создан",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (api *TodoAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := api.auth.Login(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "вход выполнен успешно",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (api *TodoAPI) listTodos(ctx *gin.Context) {
	var filter models.TodoFilter
	if raw, ok := ctx.GetQuery("completed"); ok {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(ctx, errors.ErrInvalidFilter)
			return
		}
		filter.Completed = &completed
	}

	todos, err := api.todos.List(ctx.Request.Context(), currentUser(ctx).ID, filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, todos)
}

func (api *TodoAPI) createTodo(ctx *gin.Context) {
	var req models.CreateTodoRequest
	if !bindJSON(ctx, &req) {
		return
	}
	todo, err := api.todos.Create(ctx.Request.Context(), currentUser(ctx).ID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, todo)
}

func (api *TodoAPI) updateTodo(ctx *gin.Context) {
	var req models.UpdateTodoRequest
	if !bindJSON(ctx, &req) {
		return
	}
	todo, err := api.todos.Update(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, todo)
}

func (api *TodoAPI) deleteTodo(ctx *gin.Context) {
	todo, err := api.todos.Delete(ctx.Request.Context(), currentUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, todo)
}

func (api *TodoAPI) clearCompleted(ctx *gin.Context) {
	res, err := api.todos.ClearCompleted(ctx.Request.Context(), currentUser(ctx).ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
