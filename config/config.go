// Package config loads the demo engine's configuration, grounded on the
// teacher's config.Load(configPath string) (*Config, error) shape
// (spf13/viper, file + environment overlay, SetDefault block, final
// Unmarshal) but scoped to what SPEC_FULL.md §10 actually needs: there is
// no Database/Redis/Auth/Payment config here, since persistence and auth
// are explicit Non-goals of this engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds all configuration for the promotion demo service.
type EngineConfig struct {
	App    AppConfig
	Server ServerConfig
	Solver SolverConfig
	CORS   CORSConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// SolverConfig bounds the ILP backend's search and tolerance (spec.md §4.9,
// §7: a backend failure or exhausted node budget becomes
// corerr.ErrSolverBackend, never a silent wrong answer).
type SolverConfig struct {
	// MaxBranchAndBoundNodes caps the backend's node exploration, see
	// internal/promotion/backend.NewBranchAndBound.
	MaxBranchAndBoundNodes int

	// NodeTimeBudget is loaded with the rest of the configuration, but
	// nothing in this repository reads it: no caller wraps a solve in a
	// timeout, and the backend has no notion of wall-clock time.
	NodeTimeBudget time.Duration

	// CoefficientEpsilon tolerates floating point error when the backend
	// compares a constraint's left/right hand sides, see
	// internal/promotion/backend's feasibility checking.
	CoefficientEpsilon float64
}

// CORSConfig holds CORS configuration for the demo HTTP surface.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*EngineConfig, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LATTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lattice")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.loglevel", "info")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readtimeout", "15s")
	v.SetDefault("server.writetimeout", "15s")
	v.SetDefault("server.shutdowntimeout", "30s")

	v.SetDefault("solver.maxbranchandboundnodes", 100000)
	v.SetDefault("solver.nodetimebudget", "5s")
	v.SetDefault("solver.coefficientepsilon", 1e-6)

	v.SetDefault("cors.allowedorigins", []string{"*"})
	v.SetDefault("cors.allowedmethods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowedheaders", []string{"Accept", "Content-Type", "X-Correlation-ID"})
	v.SetDefault("cors.exposedheaders", []string{"X-Correlation-ID"})
	v.SetDefault("cors.allowcredentials", false)
	v.SetDefault("cors.maxage", 300)
}

// Validate validates the configuration.
func (c *EngineConfig) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}
	if c.Solver.MaxBranchAndBoundNodes <= 0 {
		return fmt.Errorf("solver.maxbranchandboundnodes must be positive")
	}
	if c.Solver.CoefficientEpsilon <= 0 {
		return fmt.Errorf("solver.coefficientepsilon must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *EngineConfig) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment.
func (c *EngineConfig) IsProduction() bool {
	return c.App.Environment == "production"
}

// ServerAddr returns the HTTP server address.
func (c *EngineConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
