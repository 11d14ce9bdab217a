package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete SDK configuration.
type Config struct {
	Environment string

	Governance    GovernanceConfig
	Pricing       PricingConfig
	Telemetry     TelemetryConfig
	Providers     ProvidersConfig
	Budget        BudgetConfig
	Admin         AdminConfig
	Observability ObservabilityConfig
}

// GovernanceConfig holds the default governance attributes attached to every
// tracked operation.
type GovernanceConfig struct {
	Team        string
	Project     string
	CustomerID  string
	CostCenter  string
	Feature     string
	Environment string
}

// PricingConfig controls the pricing table sources.
type PricingConfig struct {
	// File is an optional YAML file merged over the builtin table.
	File string
	// Watch reloads File on change.
	Watch bool
	// Strict makes unknown (provider, model) pairs an error instead of a
	// flagged zero-cost fallback.
	Strict bool
}

// TelemetryConfig controls the OpenTelemetry wiring. Exporter names follow
// the OTEL_*_EXPORTER conventions: "otlp", "console", "prometheus" (metrics
// only) or "none".
type TelemetryConfig struct {
	ServiceName     string
	Disabled        bool
	TracesExporter  string `validate:"omitempty,oneof=otlp console none"`
	MetricsExporter string `validate:"omitempty,oneof=otlp console prometheus none"`
	Endpoint        string
}

// ProvidersConfig holds LLM provider credentials and endpoints.
type ProvidersConfig struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
}

// ProviderConfig is the per-provider connection configuration.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Configured reports whether the provider has credentials set.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// BudgetConfig selects the budget store backend. When DatabaseURL is empty
// budgets are tracked in memory.
type BudgetConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Retention bounds how long the Postgres store keeps transaction rows.
	Retention time.Duration
}

// Persistent reports whether a Postgres budget store is configured.
func (b BudgetConfig) Persistent() bool {
	return b.DatabaseURL != ""
}

// LogString returns a safe description of the database target (no password).
func (b BudgetConfig) LogString() string {
	if b.DatabaseURL == "" {
		return "memory"
	}
	u, err := url.Parse(b.DatabaseURL)
	if err != nil {
		return "postgres"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres host=%s port=%s database=%s", host, port, strings.TrimPrefix(u.Path, "/"))
}

// AdminConfig configures the optional local diagnostics server.
type AdminConfig struct {
	Enabled         bool
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds logging configuration.
type ObservabilityConfig struct {
	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `validate:"omitempty,oneof=json console"`
}

var validate = validator.New()

// New creates a Config by loading environment variables, with .env support
// for local development.
func New(ctx context.Context) (*Config, error) {
	_ = ctx
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("GENOPS_ENVIRONMENT", getEnv("ENVIRONMENT", "development")),
		Governance: GovernanceConfig{
			Team:        getEnv("GENOPS_TEAM", ""),
			Project:     getEnv("GENOPS_PROJECT", ""),
			CustomerID:  getEnv("GENOPS_CUSTOMER_ID", ""),
			CostCenter:  getEnv("GENOPS_COST_CENTER", ""),
			Feature:     getEnv("GENOPS_FEATURE", ""),
			Environment: getEnv("GENOPS_ENVIRONMENT", getEnv("ENVIRONMENT", "development")),
		},
		Pricing: PricingConfig{
			File:   getEnv("GENOPS_PRICING_FILE", ""),
			Watch:  getEnvAsBool("GENOPS_PRICING_WATCH", false),
			Strict: getEnvAsBool("GENOPS_PRICING_STRICT", false),
		},
		Telemetry: TelemetryConfig{
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "genops"),
			Disabled:        getEnvAsBool("OTEL_SDK_DISABLED", false),
			TracesExporter:  getEnv("OTEL_TRACES_EXPORTER", ""),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", ""),
			Endpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 2),
			},
			Anthropic: ProviderConfig{
				APIKey:     getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Timeout:    getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("ANTHROPIC_MAX_RETRIES", 2),
			},
		},
		Budget: BudgetConfig{
			DatabaseURL:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Retention:       getEnvAsDuration("GENOPS_BUDGET_RETENTION", 90*24*time.Hour),
		},
		Admin: AdminConfig{
			Enabled:         getEnvAsBool("GENOPS_ADMIN_ENABLED", false),
			Addr:            getEnv("GENOPS_ADMIN_ADDR", "127.0.0.1:9464"),
			ReadTimeout:     getEnvAsDuration("GENOPS_ADMIN_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("GENOPS_ADMIN_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("GENOPS_ADMIN_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("GENOPS_LOG_LEVEL", "info"),
			LogFormat: getEnv("GENOPS_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Pricing.Watch && c.Pricing.File == "" {
		return fmt.Errorf("GENOPS_PRICING_WATCH requires GENOPS_PRICING_FILE")
	}
	if c.Telemetry.TracesExporter == "otlp" || c.Telemetry.MetricsExporter == "otlp" {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("otlp exporter selected but OTEL_EXPORTER_OTLP_ENDPOINT is not set")
		}
	}
	return nil
}

// IsProduction returns true if running in a production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
