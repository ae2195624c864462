// Package config loads and validates the router's configuration from an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	HTTPAddr            string        `yaml:"http_addr"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodyBytes int64         `yaml:"max_request_body_bytes"`

	// Booking store.
	BackendURL     string        `yaml:"backend_db_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// Model settings.
	ModelProvider   string  `yaml:"model_provider"` // "openai" or "anthropic"
	ModelName       string  `yaml:"model_name"`     // empty uses the adapter default
	Temperature     float64 `yaml:"model_temperature"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`

	// Routing settings.
	MaxTurns    int           `yaml:"max_turns"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	MailboxSize int           `yaml:"mailbox_size"`
	SessionDate string        `yaml:"session_date"` // fixed YYYY-MM-DD, empty means today

	// Auth. An empty secret disables token verification.
	JWTSecret    string `yaml:"jwt_secret"`
	JWTAlgorithm string `yaml:"jwt_algorithm"`

	// Snapshot store. Empty keeps snapshots in memory.
	SnapshotDB string `yaml:"snapshot_db"`

	// OTEL settings.
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure"`
	ServiceName  string `yaml:"service_name"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		ShutdownTimeout:     10 * time.Second,
		MaxRequestBodyBytes: 1 << 20,
		BackendURL:          "http://127.0.0.1:8000",
		BackendTimeout:      10 * time.Second,
		ModelProvider:       ProviderOpenAI,
		MaxTurns:            20,
		ToolTimeout:         10 * time.Second,
		TurnTimeout:         2 * time.Minute,
		MailboxSize:         16,
		JWTAlgorithm:        "HS256",
		ServiceName:         "vaxmesh",
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

// Load reads the YAML file at path, if any, then applies environment
// overrides. Variables in the format ${VAR_NAME} inside the file are
// expanded.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading file: %w", err)
		}

		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envStr("VAXMESH_HTTP_ADDR", cfg.HTTPAddr)
	cfg.ShutdownTimeout = envDuration("VAXMESH_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxRequestBodyBytes = int64(envInt("VAXMESH_MAX_REQUEST_BODY_BYTES", int(cfg.MaxRequestBodyBytes)))
	cfg.BackendURL = envStr("BACKEND_DB_URL", cfg.BackendURL)
	cfg.BackendTimeout = envDuration("BACKEND_TIMEOUT", cfg.BackendTimeout)
	cfg.ModelProvider = envStr("MODEL_PROVIDER", cfg.ModelProvider)
	cfg.ModelName = envStr("MODEL_NAME", cfg.ModelName)
	cfg.Temperature = envFloat("MODEL_TEMPERATURE", cfg.Temperature)
	cfg.OpenAIAPIKey = envStr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envStr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.MaxTurns = envInt("MAX_TURNS", cfg.MaxTurns)
	cfg.ToolTimeout = envDuration("TOOL_TIMEOUT", cfg.ToolTimeout)
	cfg.TurnTimeout = envDuration("TURN_TIMEOUT", cfg.TurnTimeout)
	cfg.MailboxSize = envInt("MAILBOX_SIZE", cfg.MailboxSize)
	cfg.SessionDate = envStr("SESSION_DATE", cfg.SessionDate)
	cfg.JWTSecret = envStr("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTAlgorithm = envStr("JWT_ALGORITHM", cfg.JWTAlgorithm)
	cfg.SnapshotDB = envStr("SNAPSHOT_DB", cfg.SnapshotDB)
	cfg.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELInsecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTELInsecure)
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envStr("LOG_FORMAT", cfg.LogFormat)
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("VAXMESH_HTTP_ADDR is required"))
	}

	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_DB_URL is required"))
	}

	switch c.ModelProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("MODEL_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.ModelProvider))
	}

	if c.MaxTurns <= 0 {
		errs = append(errs, errors.New("MAX_TURNS must be positive"))
	}

	if c.ToolTimeout <= 0 {
		errs = append(errs, errors.New("TOOL_TIMEOUT must be positive"))
	}

	if c.MailboxSize <= 0 {
		errs = append(errs, errors.New("MAILBOX_SIZE must be positive"))
	}

	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, errors.New("VAXMESH_MAX_REQUEST_BODY_BYTES must be positive"))
	}

	if c.SessionDate != "" {
		if _, err := time.Parse(time.DateOnly, c.SessionDate); err != nil {
			errs = append(errs, fmt.Errorf("SESSION_DATE must be YYYY-MM-DD: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when
// unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return defaultVal
}
