package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2048)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Storage Configuration:
// - DATA_ROOT: Project data root (default: current working directory)
// - UPLOAD_DIR: Uploaded PDF directory under the root (default: pdf_uploads)
// - REPORT_DIR: Generated report directory under the root (default: audit_reports)
// - JOBS_FILE: Persisted jobs document under the root (default: jobs/all_jobs.json)
//
// Server Configuration:
// - HTTP_ADDR: Listen address (default: :8000)
// - LOG_LEVEL: debug, info, warn, error (default: info)
//
// Audit Configuration:
// - REPORT_LANGUAGE: BCP 47 tag for report output language (default: en)
// - RECONCILE_CRON: Cron expression for periodic reconciliation (default: */30 * * * *)

type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// Storage Configuration
	Storage StorageConfig `json:"storage"`

	// Server Configuration
	Server ServerConfig `json:"server"`

	// Audit Configuration
	Audit AuditConfig `json:"audit"`
}

// LLMConfig holds the configuration for LLM client
// Supports any LLM provider (OpenRouter, OpenAI, Anthropic, etc.)
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// StorageConfig holds the on-disk layout. UploadDir, ReportDir and JobsFile
// are kept relative to DataRoot in the environment; they are resolved to
// absolute paths by NewFromEnv.
type StorageConfig struct {
	DataRoot  string `json:"data_root"`
	UploadDir string `json:"upload_dir"`
	ReportDir string `json:"report_dir"`
	JobsFile  string `json:"jobs_file"`
}

type ServerConfig struct {
	HTTPAddr string `json:"http_addr"`
	LogLevel string `json:"log_level"`
}

type AuditConfig struct {
	ReportLanguage language.Tag `json:"report_language"`
	ReconcileCron  string       `json:"reconcile_cron"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	root := getEnvString("DATA_ROOT", "")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}

	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Storage: StorageConfig{
			DataRoot:  root,
			UploadDir: joinRoot(root, getEnvString("UPLOAD_DIR", "pdf_uploads")),
			ReportDir: joinRoot(root, getEnvString("REPORT_DIR", "audit_reports")),
			JobsFile:  joinRoot(root, getEnvString("JOBS_FILE", filepath.Join("jobs", "all_jobs.json"))),
		},
		Server: ServerConfig{
			HTTPAddr: getEnvString("HTTP_ADDR", ":8000"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		Audit: AuditConfig{
			ReportLanguage: parseLanguage(getEnvString("REPORT_LANGUAGE", "en")),
			ReconcileCron:  getEnvString("RECONCILE_CRON", "*/30 * * * *"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// WithDataRoot overrides the data root and re-derives the storage layout.
func WithDataRoot(root string) Option {
	return func(c *Config) {
		c.Storage = StorageConfig{
			DataRoot:  root,
			UploadDir: filepath.Join(root, "pdf_uploads"),
			ReportDir: filepath.Join(root, "audit_reports"),
			JobsFile:  filepath.Join(root, "jobs", "all_jobs.json"),
		}
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Storage.DataRoot == "" {
		return fmt.Errorf("DATA_ROOT is required")
	}
	return nil
}

// EnsureDirs creates the storage directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Storage.UploadDir, c.Storage.ReportDir, filepath.Dir(c.Storage.JobsFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func joinRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func parseLanguage(tag string) language.Tag {
	parsed, err := language.Parse(tag)
	if err != nil {
		return language.English
	}
	return parsed
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
