// Package config provides configuration for the commerce backend, loaded
// from defaults, optional YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete application configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	Cache       Cache       `yaml:"cache"`
	Logging     Logging     `yaml:"logging"`
	Tracing     Tracing     `yaml:"tracing"`
	CORS        CORS        `yaml:"cors"`

	// LoadedFrom records which sources contributed, in priority order.
	LoadedFrom []string `yaml:"-"`
}

// Server holds HTTP server settings.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database holds Postgres connection settings.
type Database struct {
	URL              string        `yaml:"url" validate:"required"`
	MaxConns         int32         `yaml:"max_conns" validate:"min=1"`
	MinConns         int32         `yaml:"min_conns" validate:"min=0"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// Cache holds per-instance cache capacities.
type Cache struct {
	Homepage       int `yaml:"homepage" validate:"min=1"`
	Products       int `yaml:"products" validate:"min=1"`
	ProductDetails int `yaml:"product_details" validate:"min=1"`
	Discounts      int `yaml:"discounts" validate:"min=1"`
	RoomTypes      int `yaml:"room_types" validate:"min=1"`
	Categories     int `yaml:"categories" validate:"min=1"`
	Pricing        int `yaml:"pricing" validate:"min=1"`
	HeroBanners    int `yaml:"hero_banners" validate:"min=1"`
}

// Logging holds logger settings.
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Tracing holds OpenTelemetry export settings.
type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// CORS holds cross-origin settings for the HTTP surface.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	MaxAge         int      `yaml:"max_age"`
}

var validate = validator.New()

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid configuration: database min_conns %d exceeds max_conns %d",
			c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// IsDevelopment reports whether the environment is development.
func (c *Config) IsDevelopment() bool { return c.Environment == Development }

// Default returns the configuration defaults for env.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  25 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			URL:              "postgres://localhost:5432/commerce?sslmode=disable",
			MaxConns:         10,
			MinConns:         2,
			ConnectTimeout:   5 * time.Second,
			StatementTimeout: 30 * time.Second,
		},
		Cache: Cache{
			Homepage:       20,
			Products:       500,
			ProductDetails: 300,
			Discounts:      200,
			RoomTypes:      50,
			Categories:     50,
			Pricing:        1000,
			HeroBanners:    20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Tracing: Tracing{
			Enabled:     false,
			ServiceName: "commerce-backend",
			Endpoint:    "localhost:4317",
			SampleRate:  0.1,
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			MaxAge:         300,
		},
	}
}

// applyEnv overlays environment variables, the highest priority source.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxConns = int32(getEnvInt("DATABASE_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getEnvInt("DATABASE_MIN_CONNS", int(c.Database.MinConns)))

	c.Cache.Homepage = getEnvInt("CACHE_HOMEPAGE_SIZE", c.Cache.Homepage)
	c.Cache.Products = getEnvInt("CACHE_PRODUCTS_SIZE", c.Cache.Products)
	c.Cache.ProductDetails = getEnvInt("CACHE_PRODUCT_DETAILS_SIZE", c.Cache.ProductDetails)
	c.Cache.Discounts = getEnvInt("CACHE_DISCOUNTS_SIZE", c.Cache.Discounts)
	c.Cache.RoomTypes = getEnvInt("CACHE_ROOM_TYPES_SIZE", c.Cache.RoomTypes)
	c.Cache.Categories = getEnvInt("CACHE_CATEGORIES_SIZE", c.Cache.Categories)
	c.Cache.Pricing = getEnvInt("CACHE_PRICING_SIZE", c.Cache.Pricing)
	c.Cache.HeroBanners = getEnvInt("CACHE_HERO_BANNERS_SIZE", c.Cache.HeroBanners)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", c.Tracing.ServiceName)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", c.Tracing.SampleRate)

	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		c.CORS.AllowedOrigins = splitAndTrim(val)
	}
}

func getEnvironment() Environment {
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "production", "prod":
		return Production
	case "staging":
		return Staging
	default:
		return Development
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
