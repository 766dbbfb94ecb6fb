package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// isolateEnv points Load at files that do not exist and blanks every credential
// variable so the host environment cannot leak into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.toml"))
	for _, key := range []string{
		"LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "SESSION_STORE",
		"ANALYSIS_TEMPERATURE", "ANALYSIS_TOP_P", "ANALYSIS_MAX_TOKENS",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadMissingAPIKey(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Load() error = %v, want ErrMissingAPIKey", err)
	}
	if cfg != nil {
		t.Fatalf("Load() returned config %+v alongside error", cfg)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "gsk-test" {
		t.Errorf("APIKey = %q, want gsk-test", cfg.LLM.APIKey)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("Provider = %q, want groq", cfg.LLM.Provider)
	}
	if cfg.Analysis.Temperature != 0.2 || cfg.Analysis.TopP != 0.5 || cfg.Analysis.MaxTokens != 400 {
		t.Errorf("analysis = %+v, want temperature 0.2 top_p 0.5 max_tokens 400", cfg.Analysis)
	}
	if cfg.Analysis.Prompt != DefaultPrompt {
		t.Errorf("Prompt = %q, want default prompt", cfg.Analysis.Prompt)
	}
	if got := cfg.LLM.Endpoint(); got != "https://api.groq.com/openai/v1" {
		t.Errorf("Endpoint() = %q", got)
	}
	if got := cfg.HTTPAddr(); got != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr() = %q", got)
	}
}

func TestLoadProviderSpecificKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GROQ_API_KEY", "gsk-ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "sk-openai" {
		t.Fatalf("llm = %+v, want openai provider with sk-openai", cfg.LLM)
	}
	if got := cfg.LLM.Endpoint(); got != "https://api.openai.com/v1" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestLoadGenericKeyWins(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-provider")
	t.Setenv("LLM_API_KEY", "gsk-generic")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "gsk-generic" {
		t.Fatalf("APIKey = %q, want gsk-generic", cfg.LLM.APIKey)
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := isolateEnv(t)

	tomlPath := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9090

[analysis]
temperature = 0.7
max_tokens = 800

[session]
store = "redis"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GROQ_API_KEY=gsk-from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", tomlPath)
	t.Setenv("ENV_FILE", envPath)
	// godotenv never overrides a variable that is already present, even when empty.
	os.Unsetenv("GROQ_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GROQ_API_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.App.Port)
	}
	if cfg.Analysis.Temperature != 0.7 || cfg.Analysis.MaxTokens != 800 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.TopP != 0.5 {
		t.Errorf("TopP = %v, want untouched default 0.5", cfg.Analysis.TopP)
	}
	if cfg.Session.Store != "redis" {
		t.Errorf("Store = %q, want redis", cfg.Session.Store)
	}
	if cfg.LLM.APIKey != "gsk-from-dotenv" {
		t.Errorf("APIKey = %q, want gsk-from-dotenv", cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bard" }},
		{name: "compatible without base url", mutate: func(c *Config) { c.LLM.Provider = "compatible" }},
		{name: "empty model", mutate: func(c *Config) { c.LLM.Model = "" }},
		{name: "negative temperature", mutate: func(c *Config) { c.Analysis.Temperature = -0.1 }},
		{name: "zero top_p", mutate: func(c *Config) { c.Analysis.TopP = 0 }},
		{name: "zero max tokens", mutate: func(c *Config) { c.Analysis.MaxTokens = 0 }},
		{name: "zero upload limit", mutate: func(c *Config) { c.Image.MaxUploadBytes = 0 }},
		{name: "unknown session store", mutate: func(c *Config) { c.Session.Store = "disk" }},
		{name: "empty session secret", mutate: func(c *Config) { c.Session.Secret = "" }},
		{name: "default secret in prod", mutate: func(c *Config) { c.App.Env = "prod" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.LLM.APIKey = "key"
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := defaultConfig()
	cfg.LLM.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults = %v", err)
	}

	cfg.App.Env = "prod"
	cfg.Session.Secret = "a-real-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() in prod with own secret = %v", err)
	}
}
