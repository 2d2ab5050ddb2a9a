package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBURL      string

	SessionSecret string
	CORSOrigins   []string

	LLMProvider      string
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicModel   string
	LLMTimeout       time.Duration
	LLMMaxAttempts   int
	HuggingFaceKey   string
	HuggingFaceURL   string
	InferenceURL     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	QuizWorkers      int
	QuizQueueSize    int
	QuizJobTimeout   time.Duration
	UserCacheTTL     time.Duration
	SessionTTL       time.Duration
	SessionSweep     time.Duration
	UserCacheSweep   time.Duration
	StaticDir        string
	MockServerPort   string
	TokenLifetime    time.Duration
	SessionCookieTTL time.Duration
}

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/models/facebook/mms-tts-eng"

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	cfg := &Config{
		Env:        getEnv("ENV", "development"),
		ServerPort: getEnv("SERVER_PORT", getEnv("PORT", "5000")),

		DBDriver:   getEnv("DATABASE_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "finscholars"),
		DBURL:      getEnv("DATABASE_URL", ""),

		SessionSecret: getEnv("SESSION_SECRET", getEnv("SECRET_KEY", "")),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		LLMProvider:     getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-haiku"),
		LLMTimeout:      getDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxAttempts:  getInt("LLM_MAX_ATTEMPTS", 3),

		HuggingFaceKey: getEnv("HUGGINGFACE_API_KEY", ""),
		HuggingFaceURL: getEnv("HUGGINGFACE_API_URL", defaultHuggingFaceURL),
		InferenceURL:   getEnv("HUGGINGFACE_INFERENCE_URL", "https://api-inference.huggingface.co/models"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		QuizWorkers:    getInt("QUIZ_WORKERS", 4),
		QuizQueueSize:  getInt("QUIZ_QUEUE_SIZE", 64),
		QuizJobTimeout: getDuration("QUIZ_JOB_TIMEOUT", 2*time.Minute),

		UserCacheTTL:   getDuration("USER_CACHE_TTL", 30*time.Minute),
		SessionTTL:     getDuration("SESSION_TTL", 2*time.Hour),
		SessionSweep:   getDuration("SESSION_SWEEP_INTERVAL", time.Hour),
		UserCacheSweep: getDuration("USER_CACHE_SWEEP_INTERVAL", 15*time.Minute),

		StaticDir:        getEnv("STATIC_DIR", ""),
		MockServerPort:   getEnv("MOCK_SERVER_PORT", "8000"),
		TokenLifetime:    getDuration("TOKEN_LIFETIME", 72*time.Hour),
		SessionCookieTTL: getDuration("SESSION_COOKIE_TTL", 7*24*time.Hour),
	}

	return cfg, nil
}

// Validate reports configuration that must be present before the API server starts.
func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("SESSION_SECRET is required"))
		} else {
			c.SessionSecret = "dev-secret-key"
		}
	}
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.QuizWorkers < 1 {
		errs = append(errs, errors.New("QUIZ_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL assembled from the DB_* parts.
func (c *Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
