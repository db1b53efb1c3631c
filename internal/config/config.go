package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ErrConfiguration marks missing or malformed settings. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string
	LogFilePath        string `validate:"required"`
	CorsAllowedOrigins string
	JwtSecret          string
	NatsURL            string // empty disables audit events
	RedisURL           string
	SessionStore       string `validate:"oneof=memory redis"`
	SessionTTL         time.Duration
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	LogLevel string `validate:"oneof=silent error warn info"`
}

type AIConfig struct {
	EmbeddingProvider   string `validate:"oneof=ollama gemini jina"`
	OllamaBaseURL       string `validate:"required,url"`
	OllamaModel         string `validate:"required"`
	GeminiAPIKey        string
	JinaAPIKey          string
	EmbeddingMaxChars   int `validate:"gte=0"`
	NormalizeEmbeddings bool
	LLMProvider         string `validate:"oneof=ollama huggingface"`
	LLMModel            string `validate:"required"`
	LLMBaseURL          string // empty uses the provider default
	HuggingFaceAPIKey   string
}

type RetrievalConfig struct {
	Strategies      []string `validate:"min=1,dive,oneof=entries events vector"`
	EntryLimit      int      `validate:"gte=1"`
	EventLimit      int      `validate:"gte=1"`
	VectorLimit     int      `validate:"gte=1"`
	Deduplicate     bool
	Metric          string        `validate:"oneof=l2 cosine inner_product"`
	DBTimeout       time.Duration `validate:"gt=0"`
	EmbedTimeout    time.Duration `validate:"gt=0"`
	EmbedRetries    int           `validate:"gte=0,lte=10"`
	CacheTTL        time.Duration `validate:"gte=0"`
	ConcurrentEmbed bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	env := &envParser{}
	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/second-brain.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			SessionStore:       getEnv("SESSION_STORE", "memory"),
			SessionTTL:         env.getEnvAsDuration("SESSION_TTL", time.Hour),
			OtelEnabled:        env.getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", ""),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GeminiAPIKey:        getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JinaAPIKey:          getEnv("JINA_API_KEY", ""),
			EmbeddingMaxChars:   env.getEnvAsInt("EMBEDDING_MAX_INPUT_CHARS", 8000),
			NormalizeEmbeddings: env.getEnvAsBool("EMBEDDING_NORMALIZE", false),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:            getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
			HuggingFaceAPIKey:   getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Retrieval: RetrievalConfig{
			Strategies:      getEnvAsList("RETRIEVAL_STRATEGIES", []string{"entries", "events", "vector"}),
			EntryLimit:      env.getEnvAsInt("RETRIEVAL_ENTRY_LIMIT", 20),
			EventLimit:      env.getEnvAsInt("RETRIEVAL_EVENT_LIMIT", 20),
			VectorLimit:     env.getEnvAsInt("RETRIEVAL_VECTOR_LIMIT", 20),
			Deduplicate:     env.getEnvAsBool("RETRIEVAL_DEDUPLICATE", false),
			Metric:          getEnv("RETRIEVAL_VECTOR_METRIC", "l2"),
			DBTimeout:       env.getEnvAsDuration("RETRIEVAL_DB_TIMEOUT", 5*time.Second),
			EmbedTimeout:    env.getEnvAsDuration("RETRIEVAL_EMBED_TIMEOUT", 10*time.Second),
			EmbedRetries:    env.getEnvAsInt("RETRIEVAL_EMBED_RETRIES", 0),
			CacheTTL:        env.getEnvAsDuration("RETRIEVAL_CACHE_TTL", 10*time.Minute),
			ConcurrentEmbed: env.getEnvAsBool("RETRIEVAL_CONCURRENT_EMBED", true),
		},
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", ErrConfiguration, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	switch c.Ai.EmbeddingProvider {
	case "gemini":
		if c.Ai.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GOOGLE_GEMINI_API_KEY is required for the gemini embedding provider", ErrConfiguration)
		}
	case "jina":
		if c.Ai.JinaAPIKey == "" {
			return fmt.Errorf("%w: JINA_API_KEY is required for the jina embedding provider", ErrConfiguration)
		}
	}

	if c.Ai.LLMProvider == "huggingface" && c.Ai.HuggingFaceAPIKey == "" {
		return fmt.Errorf("%w: HUGGINGFACE_API_KEY is required for the huggingface llm provider", ErrConfiguration)
	}

	if c.App.SessionStore == "redis" && c.App.RedisURL == "" {
		return fmt.Errorf("%w: REDIS_URL is required when SESSION_STORE=redis", ErrConfiguration)
	}

	seen := make(map[string]bool)
	for _, s := range c.Retrieval.Strategies {
		if seen[s] {
			return fmt.Errorf("%w: strategy %q listed twice", ErrConfiguration, s)
		}
		seen[s] = true
	}
	return nil
}

// DSN builds the libpq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, quoteDSNValue(d.Password), d.Name, d.Port, d.SSLMode)
}

var dsnUnsafe = regexp.MustCompile(`[\s'\\]`)

func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	if !dsnUnsafe.MatchString(v) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// envParser records every set variable that fails to parse, so Load can
// reject malformed settings instead of quietly using the default.
type envParser struct {
	invalid []string
}

func (p *envParser) lookup(key string) (string, bool) {
	value := strings.TrimSpace(getEnv(key, ""))
	return value, value != ""
}

func (p *envParser) reject(key, value, want string) {
	p.invalid = append(p.invalid, fmt.Sprintf("%s=%q (want %s)", key, value, want))
}

func (p *envParser) err() error {
	if len(p.invalid) == 0 {
		return nil
	}
	return fmt.Errorf("%w: malformed settings: %s", ErrConfiguration, strings.Join(p.invalid, ", "))
}

func (p *envParser) getEnvAsInt(key string, fallback int) int {
	strValue, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		p.reject(key, strValue, "integer")
		return fallback
	}
	return value
}

func (p *envParser) getEnvAsBool(key string, fallback bool) bool {
	strValue, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		p.reject(key, strValue, "boolean")
		return fallback
	}
	return value
}

func (p *envParser) getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strValue)
	if err != nil {
		p.reject(key, strValue, "duration such as 5s")
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
