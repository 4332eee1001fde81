package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr        string
	DatabaseURL       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterReferer string
	OpenRouterTitle   string
	DefaultModel      string
	AdminPassword     string
	KBDir             string
	SystemPromptPath  string
	Logging           LoggingConfig
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

func Load() (*Config, error) {
	once.Do(func() {
		if err := loadEnvFiles(); err != nil {
			loadErr = fmt.Errorf("load env files: %w", err)
			return
		}

		apiBase := strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL"))
		if apiBase == "" {
			apiBase = "https://openrouter.ai/api/v1"
		}

		cfg = &Config{
			ServerAddr:        getEnv("SERVER_ADDR", ":8080"),
			DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
			OpenRouterBaseURL: strings.TrimRight(apiBase, "/"),
			OpenRouterAPIKey:  strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
			OpenRouterReferer: getEnv("OPENROUTER_REFERER", "http://localhost:3000"),
			OpenRouterTitle:   getEnv("OPENROUTER_TITLE", "Support KB"),
			DefaultModel:      getEnv("DEFAULT_MODEL", "mistralai/devstral-2512:free"),
			AdminPassword:     strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
			KBDir:             getEnv("KB_DIR", "kb/data"),
			SystemPromptPath:  getEnv("SYSTEM_PROMPT_PATH", "kb/data/system-prompt.md"),
			Logging: LoggingConfig{
				Level:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
				Encoding:     strings.ToLower(getEnv("LOG_ENCODING", "console")),
				Development:  parseBool(getEnv("LOG_DEVELOPMENT", "false"), false),
				EnableCaller: parseBool(getEnv("LOG_CALLER", "false"), false),
				ServiceName:  getEnv("SERVICE_NAME", "supportkb-server"),
			},
		}

		loadErr = cfg.validate()
	})

	return cfg, loadErr
}

func loadEnvFiles() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			// ignore missing .env so that environment variables can be supplied externally
			return nil
		}

		return err
	}

	return nil
}

func (c *Config) validate() error {
	missing := make([]string, 0, 3)

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if c.OpenRouterAPIKey == "" {
		missing = append(missing, "OPENROUTER_API_KEY")
	}

	if c.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return strings.TrimSpace(fallback)
}

func parseBool(raw string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return value
}
