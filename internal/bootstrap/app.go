package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"rice-quality-analyzer/internal/ai"
	appsvc "rice-quality-analyzer/internal/app"
	"rice-quality-analyzer/internal/config"
	rabbitmqClient "rice-quality-analyzer/internal/platform/rabbitmq"
	redisClient "rice-quality-analyzer/internal/platform/redis"
	"rice-quality-analyzer/internal/report"
	"rice-quality-analyzer/internal/session"
	"rice-quality-analyzer/internal/worker"
)

type App struct {
	Config *config.Config
	Redis  *redis.Client
	MQConn *amqp.Connection
	// StatsWorker is nil when analysis events are disabled.
	StatsWorker *worker.AnalysisStatsWorker
	Analysis    *appsvc.AnalysisService
	Reports     *report.Generator
	Sessions    *session.Manager

	StartedAt time.Time

	closeVision func() error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds the application from an already validated config.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, StartedAt: time.Now()}

	vision, closeVision, err := ai.NewVisionClient(ctx, ai.ProviderConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.Endpoint(),
		APIKey:   cfg.LLM.APIKey,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create vision client failed: %w", err)
	}
	app.closeVision = closeVision
	log.Printf("vision provider=%s model=%s key=%s", cfg.LLM.Provider, cfg.LLM.Model, ai.MaskSecret(cfg.LLM.APIKey))

	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Redis = redisCli
		store = session.NewRedisStore(redisCli, ttl)
	default:
		store = session.NewMemoryStore(ttl)
	}
	app.Sessions = session.NewManager(store, cfg.Session.Secret, cfg.Session.CookieName, ttl)

	var publisher appsvc.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.EventQueue)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.MQConn = mqConn
		publisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.EventQueue)

		statsWorker := worker.NewAnalysisStatsWorker(mqConn, cfg.RabbitMQ.EventQueue)
		if err := statsWorker.Start(ctx); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("start analysis stats worker failed: %w", err)
		}
		app.StatsWorker = statsWorker
	}

	app.Analysis = appsvc.NewAnalysisService(vision, publisher, appsvc.AnalysisOptions{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		Prompt:         cfg.Analysis.Prompt,
		Temperature:    cfg.Analysis.Temperature,
		TopP:           cfg.Analysis.TopP,
		MaxTokens:      cfg.Analysis.MaxTokens,
		MaxUploadBytes: cfg.Image.MaxUploadBytes,
		MaxDimension:   cfg.Image.MaxDimension,
	})
	app.Reports = report.NewGenerator()

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.StatsWorker != nil {
		a.StatsWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.closeVision != nil {
		if err := a.closeVision(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
