package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where tastevec stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIEnabled             bool   // TASTEVEC_AI_ENABLED
	AIEmbeddingProvider   string // TASTEVEC_AI_EMBEDDING_PROVIDER (default: siliconflow)
	AISiliconFlowAPIKey   string // TASTEVEC_AI_SILICONFLOW_API_KEY
	AISiliconFlowBaseURL  string // TASTEVEC_AI_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)
	AIOpenAIAPIKey        string // TASTEVEC_AI_OPENAI_API_KEY
	AIOpenAIBaseURL       string // TASTEVEC_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIOllamaBaseURL       string // TASTEVEC_AI_OLLAMA_BASE_URL (default: http://localhost:11434)
	AIEmbeddingModel      string // TASTEVEC_AI_EMBEDDING_MODEL (default: BAAI/bge-m3)
	AIEmbeddingDimensions int    // TASTEVEC_AI_EMBEDDING_DIMENSIONS (default: 1024)

	// Feedback and recommendation tuning
	FeedbackMaxAttempts   int           // TASTEVEC_FEEDBACK_MAX_ATTEMPTS (default: 3)
	FeedbackBackoff       time.Duration // TASTEVEC_FEEDBACK_BACKOFF (default: 50ms)
	FeedbackConcurrency   int           // TASTEVEC_FEEDBACK_CONCURRENCY (default: 16)
	RecommendationTimeout time.Duration // TASTEVEC_RECOMMENDATION_TIMEOUT (default: 5s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and at least one API key or base URL is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AISiliconFlowAPIKey != "" || p.AIOpenAIAPIKey != "" || p.AIOllamaBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer environment variable, using default", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration environment variable, using default", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return d
}

// FromEnv loads AI and tuning configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIEnabled = os.Getenv("TASTEVEC_AI_ENABLED") == "true"
	p.AIEmbeddingProvider = getEnvOrDefault("TASTEVEC_AI_EMBEDDING_PROVIDER", "siliconflow")
	p.AISiliconFlowAPIKey = os.Getenv("TASTEVEC_AI_SILICONFLOW_API_KEY")
	p.AISiliconFlowBaseURL = getEnvOrDefault("TASTEVEC_AI_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	p.AIOpenAIAPIKey = os.Getenv("TASTEVEC_AI_OPENAI_API_KEY")
	p.AIOpenAIBaseURL = getEnvOrDefault("TASTEVEC_AI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.AIOllamaBaseURL = getEnvOrDefault("TASTEVEC_AI_OLLAMA_BASE_URL", "http://localhost:11434")
	p.AIEmbeddingModel = getEnvOrDefault("TASTEVEC_AI_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.AIEmbeddingDimensions = getIntEnvOrDefault("TASTEVEC_AI_EMBEDDING_DIMENSIONS", 1024)

	p.FeedbackMaxAttempts = getIntEnvOrDefault("TASTEVEC_FEEDBACK_MAX_ATTEMPTS", 3)
	p.FeedbackBackoff = getDurationEnvOrDefault("TASTEVEC_FEEDBACK_BACKOFF", 50*time.Millisecond)
	p.FeedbackConcurrency = getIntEnvOrDefault("TASTEVEC_FEEDBACK_CONCURRENCY", 16)
	p.RecommendationTimeout = getDurationEnvOrDefault("TASTEVEC_RECOMMENDATION_TIMEOUT", 5*time.Second)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "tastevec")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/tastevec"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("tastevec_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.FeedbackMaxAttempts <= 0 {
		p.FeedbackMaxAttempts = 3
	}
	return nil
}
