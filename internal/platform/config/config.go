package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultCatalogSource      = SourceFile
	defaultCatalogFile        = "laminates.json"
	defaultCatalogTimeout     = 10 * time.Second
	defaultCatalogPageSize    = 300
	defaultCatalogCollection  = "laminates"
	defaultProductLinkBase    = "https://dummynavigator.centuryply.com/product-details"
	defaultAgentModel         = "gpt-4o"
	defaultAgentTimeout       = 30 * time.Second
	defaultAgentMaxTokens     = 4000
	defaultBatchSize          = 4
	defaultMaxBatchSize       = 20
	defaultSessionTTL         = 30 * time.Minute
	defaultSessionSweep       = 5 * time.Minute
	defaultMaxColorsPerUser   = 16
	defaultHistoryLimitPairs  = 20
)

// Catalog source identifiers accepted via CATALOG_SOURCE.
const (
	SourceFile      = "file"
	SourceLambda    = "lambda"
	SourceFirestore = "firestore"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Agent   AgentConfig
	Chat    ChatConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CatalogConfig selects and parameterises the catalog collaborator.
type CatalogConfig struct {
	Source          string
	FilePath        string
	LambdaFunction  string
	LambdaRegion    string
	FirestoreProject    string
	FirestoreCollection string
	PageSize        int
	FetchTimeout    time.Duration
	ProductLinkBase string
}

// AgentConfig defines the language-model collaborator endpoint and credentials.
type AgentConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// ChatConfig controls conversation behaviour.
type ChatConfig struct {
	BatchSize        int
	MaxBatchSize     int
	SessionTTL       time.Duration
	SessionSweep     time.Duration
	MaxColorsPerUser int
	HistoryLimit     int
}

// Load reads configuration from the environment, optionally seeded from a
// local .env file, applies defaults, and validates the result.
func Load() (Config, error) {
	if err := loadEnvFile(envOrDefault("ENV_FILE", defaultEnvFile)); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         envOrDefault("PORT", defaultPort),
			ReadTimeout:  durationFromEnv("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationFromEnv("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationFromEnv("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Catalog: CatalogConfig{
			Source:              strings.ToLower(envOrDefault("CATALOG_SOURCE", defaultCatalogSource)),
			FilePath:            envOrDefault("CATALOG_FILE", defaultCatalogFile),
			LambdaFunction:      envOrDefault("CATALOG_LAMBDA_FUNCTION", "db-connection"),
			LambdaRegion:        envOrDefault("AWS_REGION", "ap-south-1"),
			FirestoreProject:    os.Getenv("FIRESTORE_PROJECT_ID"),
			FirestoreCollection: envOrDefault("CATALOG_FIRESTORE_COLLECTION", defaultCatalogCollection),
			PageSize:            intFromEnv("CATALOG_PAGE_SIZE", defaultCatalogPageSize),
			FetchTimeout:        durationFromEnv("CATALOG_FETCH_TIMEOUT", defaultCatalogTimeout),
			ProductLinkBase:     envOrDefault("CATALOG_PRODUCT_LINK_BASE", defaultProductLinkBase),
		},
		Agent: AgentConfig{
			BaseURL:   os.Getenv("AGENT_BASE_URL"),
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     envOrDefault("AGENT_MODEL", defaultAgentModel),
			MaxTokens: intFromEnv("AGENT_MAX_TOKENS", defaultAgentMaxTokens),
			Timeout:   durationFromEnv("AGENT_TIMEOUT", defaultAgentTimeout),
		},
		Chat: ChatConfig{
			BatchSize:        intFromEnv("CHAT_BATCH_SIZE", defaultBatchSize),
			MaxBatchSize:     intFromEnv("CHAT_MAX_BATCH_SIZE", defaultMaxBatchSize),
			SessionTTL:       durationFromEnv("SESSION_TTL", defaultSessionTTL),
			SessionSweep:     durationFromEnv("SESSION_SWEEP_INTERVAL", defaultSessionSweep),
			MaxColorsPerUser: intFromEnv("SESSION_MAX_COLORS", defaultMaxColorsPerUser),
			HistoryLimit:     intFromEnv("CHAT_HISTORY_LIMIT", defaultHistoryLimitPairs),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []string

	switch c.Catalog.Source {
	case SourceFile:
		if strings.TrimSpace(c.Catalog.FilePath) == "" {
			problems = append(problems, "CATALOG_FILE is required for the file source")
		}
	case SourceLambda:
		if strings.TrimSpace(c.Catalog.LambdaFunction) == "" {
			problems = append(problems, "CATALOG_LAMBDA_FUNCTION is required for the lambda source")
		}
	case SourceFirestore:
		if strings.TrimSpace(c.Catalog.FirestoreProject) == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is required for the firestore source")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CATALOG_SOURCE %q", c.Catalog.Source))
	}

	if strings.TrimSpace(c.Agent.APIKey) == "" {
		problems = append(problems, "OPENAI_API_KEY is required")
	}
	if c.Chat.BatchSize <= 0 {
		problems = append(problems, "CHAT_BATCH_SIZE must be greater than zero")
	}
	if c.Chat.MaxBatchSize < c.Chat.BatchSize {
		problems = append(problems, "CHAT_MAX_BATCH_SIZE must be at least CHAT_BATCH_SIZE")
	}
	if c.Chat.MaxColorsPerUser <= 0 {
		problems = append(problems, "SESSION_MAX_COLORS must be greater than zero")
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// loadEnvFile reads KEY=VALUE lines into the process environment without
// overriding values already set.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	return scanner.Err()
}

func envOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
