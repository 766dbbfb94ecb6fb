package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey = errors.New("api key not found")
	ErrInvalidConfig = errors.New("invalid config")
)

const DefaultPrompt = "Analyze the rice grain image and provide a detailed report including:\n" +
	"1. Rice type classification\n2. Quality assessment (broken grains %, discoloration %, impurities %)\n" +
	"3. Foreign object detection\n4. Size and shape consistency\n5. Recommendations for processing or improvement"

type Config struct {
	App      AppConfig      `toml:"app"`
	LLM      LLMConfig      `toml:"llm"`
	Analysis AnalysisConfig `toml:"analysis"`
	Image    ImageConfig    `toml:"image"`
	Session  SessionConfig  `toml:"session"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LLMConfig struct {
	// Provider is one of groq, compatible, openai, gemini.
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AnalysisConfig struct {
	Prompt      string  `toml:"prompt"`
	Temperature float64 `toml:"temperature"`
	TopP        float64 `toml:"top_p"`
	MaxTokens   int     `toml:"max_tokens"`
}

type ImageConfig struct {
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
	MaxDimension   int   `toml:"max_dimension"`
}

type SessionConfig struct {
	Secret     string `toml:"secret"`
	CookieName string `toml:"cookie_name"`
	TTLMinutes int    `toml:"ttl_minutes"`
	// Store is "memory" or "redis".
	Store string `toml:"store"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type RabbitMQConfig struct {
	// URL empty disables analysis events.
	URL        string `toml:"url"`
	EventQueue string `toml:"event_queue"`
}

// Load reads .env, the toml file named by CONFIG_FILE and the environment, in that
// order of increasing precedence, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// defaultSessionSecret is only accepted outside prod.
const defaultSessionSecret = "change-me-in-production"

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.LLM.Provider {
	case "groq", "compatible", "openai", "gemini":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Provider == "compatible" && c.LLM.BaseURL == "" {
		return fmt.Errorf("%w: compatible provider needs llm.base_url", ErrInvalidConfig)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm model is empty", ErrInvalidConfig)
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidConfig)
	}
	if c.Analysis.TopP <= 0 || c.Analysis.TopP > 1 {
		return fmt.Errorf("%w: top_p must be within (0, 1]", ErrInvalidConfig)
	}
	if c.Analysis.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidConfig)
	}
	if c.Image.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown session store %q", ErrInvalidConfig, c.Session.Store)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("%w: session secret is empty", ErrInvalidConfig)
	}
	if c.App.Env == "prod" && c.Session.Secret == defaultSessionSecret {
		return fmt.Errorf("%w: set SESSION_SECRET before running with env=prod", ErrInvalidConfig)
	}
	return nil
}

// Endpoint returns the configured base URL or the provider's public endpoint.
func (c LLMConfig) Endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	switch c.Provider {
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "openai":
		return "https://api.openai.com/v1"
	}
	return ""
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "rice-quality-analyzer",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		LLM: LLMConfig{
			Provider:       "groq",
			BaseURL:        "",
			Model:          "llama-3.2-11b-vision-preview",
			TimeoutSeconds: 90,
		},
		Analysis: AnalysisConfig{
			Prompt:      DefaultPrompt,
			Temperature: 0.2,
			TopP:        0.5,
			MaxTokens:   400,
		},
		Image: ImageConfig{
			MaxUploadBytes: 5 << 20,
			MaxDimension:   2048,
		},
		Session: SessionConfig{
			Secret:     defaultSessionSecret,
			CookieName: "rqa_session",
			TTLMinutes: 120,
			Store:      "memory",
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Password: "",
			DB:       0,
		},
		RabbitMQ: RabbitMQConfig{
			URL:        "",
			EventQueue: "rice.analysis.events",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv(providerKeyEnv(cfg.LLM.Provider), cfg.LLM.APIKey)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Analysis.Prompt = getEnv("ANALYSIS_PROMPT", cfg.Analysis.Prompt)
	cfg.Analysis.Temperature = getEnvAsFloat("ANALYSIS_TEMPERATURE", cfg.Analysis.Temperature)
	cfg.Analysis.TopP = getEnvAsFloat("ANALYSIS_TOP_P", cfg.Analysis.TopP)
	cfg.Analysis.MaxTokens = getEnvAsInt("ANALYSIS_MAX_TOKENS", cfg.Analysis.MaxTokens)

	cfg.Image.MaxUploadBytes = int64(getEnvAsInt("IMAGE_MAX_UPLOAD_BYTES", int(cfg.Image.MaxUploadBytes)))
	cfg.Image.MaxDimension = getEnvAsInt("IMAGE_MAX_DIMENSION", cfg.Image.MaxDimension)

	cfg.Session.Secret = getEnv("SESSION_SECRET", cfg.Session.Secret)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Session.TTLMinutes = getEnvAsInt("SESSION_TTL_MINUTES", cfg.Session.TTLMinutes)
	cfg.Session.Store = strings.ToLower(getEnv("SESSION_STORE", cfg.Session.Store))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.EventQueue = getEnv("RABBITMQ_EVENT_QUEUE", cfg.RabbitMQ.EventQueue)
}

// providerKeyEnv names the provider-specific credential variable.
func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
