package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/llm"
	"medicare-backend/internal/llm/gemini"
	"medicare-backend/internal/llm/openai"
	"medicare-backend/internal/notify"
	"medicare-backend/internal/ratelimit"
	"medicare-backend/internal/shared/config"
	"medicare-backend/internal/shared/redis"
	"medicare-backend/internal/shared/server"
	"medicare-backend/internal/shared/server/middleware"
	"medicare-backend/internal/shared/storage/db"
	"medicare-backend/internal/symptoms"
	"medicare-backend/internal/voice"
)

const rateLimitPrefix = "ratelimit:"

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Redis    *redis.Client
	LLM      llm.Client
	Repo     symptoms.Repo
	Limiter  ratelimit.Limiter
	Hub      *notify.Hub
	Broker   *notify.RedisBroker
	Service  *symptoms.Service
	Handler  *symptoms.Handler
	closers  []func() error
}

// Build prepares dependencies and the router. Call Run to start background
// workers and Close on shutdown.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
		app.Repo = &symptoms.PGRepo{DB: sqlDB}
	} else {
		app.Repo = symptoms.NewMemoryRepo()
	}

	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = redisClient
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	llmClient, err := buildLLM(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.LLM = llmClient

	rule := ratelimit.Rule{Limit: cfg.AnalysisRateLimit, Window: cfg.AnalysisRateWindow}
	app.Hub = notify.NewHub()
	var publisher notify.Publisher = app.Hub
	if redisClient != nil {
		app.Limiter = ratelimit.NewRedisWindow(redisClient.Raw(), rule, rateLimitPrefix)
		app.Broker = notify.NewRedisBroker(redisClient.Raw(), app.Hub, notify.DefaultChannel)
		publisher = app.Broker
	} else {
		app.Limiter = ratelimit.NewMemoryWindow(rule, nil)
	}

	retry := symptoms.DefaultRetryPolicy()
	if cfg.LLMRetryBase > 0 {
		retry.BaseDelay = cfg.LLMRetryBase
	}
	app.Service = &symptoms.Service{
		Repo:     app.Repo,
		Analyzer: symptoms.NewAdvisor(llmClient),
		Voice:    voice.New(),
		Notifier: publisher,
		Retry:    retry,
		Timeout:  cfg.AnalysisTimeout,
	}
	if _, err := app.Service.ReapStale(ctx); err != nil {
		log.Printf("bootstrap: reap stale sessions: %v", err)
	}
	app.Handler = symptoms.NewHandler(app.Service, middleware.SlidingWindow(middleware.SlidingWindowConfig{
		Name:    "symptoms",
		Limiter: app.Limiter,
		Message: "Too many symptom analysis requests. Please try again later.",
	}))

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		SymptomsHandler: app.Handler,
		Hub:             app.Hub,
		Health:          app.health,
	})
	return app, nil
}

// Run starts background workers and blocks until ctx ends.
func (a *App) Run(ctx context.Context) {
	if a.Broker != nil {
		go func() {
			if err := a.Broker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("bootstrap: event broker stopped: %v", err)
			}
		}()
	}
	if mem, ok := a.Limiter.(*ratelimit.MemoryWindow); ok {
		go sweep(ctx, mem, a.Config.AnalysisRateWindow)
	}
	<-ctx.Done()
}

// Drain waits for running analyses; see symptoms.Service.Drain.
func (a *App) Drain(ctx context.Context) error {
	if a.Service == nil {
		return nil
	}
	return a.Service.Drain(ctx)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("bootstrap: close: %v", err)
		}
	}
	a.closers = nil
}

func (a *App) health() error {
	if a.DB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return db.Ping(ctx, a.DB, 2*time.Second)
}

func sweep(ctx context.Context, w *ratelimit.MemoryWindow, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Sweep()
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database unavailable; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Printf("bootstrap: REDIS_URL empty; using in-process rate limiting and event delivery")
		return nil, nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: redis unavailable; using in-process fallbacks: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" && config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: OPENAI_API_KEY empty; analyses will fail until a provider is configured")
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "gemini":
		if cfg.GeminiAPIKey == "" && config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: GEMINI_API_KEY empty; analyses will fail until a provider is configured")
			return llm.PlaceholderClient{}, nil
		}
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, gemini.Options{})
	default:
		return llm.PlaceholderClient{}, nil
	}
}
