package cqrs

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config is the configuration of the registry and the dispatchers.
// It is resolved once by Register and shared, read-only, by every dispatch.
//
// The lifetimes and the scope policy can be loaded from the environment
// (ConfigFromEnv) or from a TOML file (LoadConfigFile):
//
//	command_handler_lifetime = "per_scope"
//	query_dispatcher_lifetime = "singleton"
//
//	[scopes]
//	create_for_queries = true
type Config struct {
	// CommandHandlerLifetime is used for command handlers without an explicit lifetime.
	CommandHandlerLifetime Lifetime `env:"COMMAND_HANDLER_LIFETIME" toml:"command_handler_lifetime"`
	// QueryHandlerLifetime is used for query handlers without an explicit lifetime.
	QueryHandlerLifetime Lifetime `env:"QUERY_HANDLER_LIFETIME" toml:"query_handler_lifetime"`
	// CommandDispatcherLifetime is the lifetime of the *CommandDispatcher registration.
	CommandDispatcherLifetime Lifetime `env:"COMMAND_DISPATCHER_LIFETIME" toml:"command_dispatcher_lifetime"`
	// QueryDispatcherLifetime is the lifetime of the *QueryDispatcher registration.
	QueryDispatcherLifetime Lifetime `env:"QUERY_DISPATCHER_LIFETIME" toml:"query_dispatcher_lifetime"`
	// Scopes decides, per dispatch, whether a new resolution scope is created.
	Scopes ScopePolicy `envPrefix:"SCOPE_" toml:"scopes"`

	// Logger receives the diagnostic records of failed dispatches. Defaults to slog.Default().
	Logger *slog.Logger `env:"-" toml:"-"`
	// ErrorHandlers may optionally be provided.
	// They will receive any error recovered while dispatching.
	ErrorHandlers []ErrorHandler `env:"-" toml:"-"`
	// TracerProvider defaults to the global OpenTelemetry tracer provider.
	TracerProvider trace.TracerProvider `env:"-" toml:"-"`
	// MeterProvider defaults to the global OpenTelemetry meter provider.
	MeterProvider metric.MeterProvider `env:"-" toml:"-"`
}

// DefaultConfig returns the configuration Register starts from.
func DefaultConfig() Config {
	return Config{
		CommandHandlerLifetime:    PerScope,
		QueryHandlerLifetime:      PerScope,
		CommandDispatcherLifetime: PerScope,
		QueryDispatcherLifetime:   PerScope,
		Scopes: ScopePolicy{
			CreateForCommandsIfRoot: true,
			CreateForQueriesIfRoot:  true,
		},
	}
}

// Validate checks that every lifetime of the configuration is a known one.
func (c Config) Validate() error {
	lifetimes := []struct {
		name string
		l    Lifetime
	}{
		{"command handler", c.CommandHandlerLifetime},
		{"query handler", c.QueryHandlerLifetime},
		{"command dispatcher", c.CommandDispatcherLifetime},
		{"query dispatcher", c.QueryDispatcherLifetime},
	}
	for _, lt := range lifetimes {
		if !lt.l.Valid() {
			return fmt.Errorf("%w: %s lifetime %d", ErrInvalidLifetime, lt.name, lt.l)
		}
	}
	return nil
}

func (c Config) defaultHandlerLifetime(cat Category) Lifetime {
	if cat == CategoryQuery {
		return c.QueryHandlerLifetime
	}
	return c.CommandHandlerLifetime
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// ConfigFromEnv loads the configuration from environment variables on top of
// DefaultConfig. Every variable name is prefixed with prefix, e.g. with prefix
// "CQRS_": CQRS_QUERY_HANDLER_LIFETIME, CQRS_SCOPE_CREATE_FOR_QUERIES.
func ConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (".env" when none is given) into the
// process environment, without overriding variables that are already set.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// ParseConfigTOML parses a TOML document on top of DefaultConfig.
// Unknown keys are rejected.
func ParseConfigTOML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a TOML configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config: %w", err)
	}
	return ParseConfigTOML(data)
}

// Apply returns a configure function copying the serializable settings of c,
// for use with Register alongside ConfigFromEnv or LoadConfigFile.
// Runtime collaborators already set on the target are kept unless c sets them.
func (c Config) Apply() func(*Config) {
	return func(target *Config) {
		logger, handlers, tp, mp := target.Logger, target.ErrorHandlers, target.TracerProvider, target.MeterProvider
		*target = c
		if target.Logger == nil {
			target.Logger = logger
		}
		if target.ErrorHandlers == nil {
			target.ErrorHandlers = handlers
		}
		if target.TracerProvider == nil {
			target.TracerProvider = tp
		}
		if target.MeterProvider == nil {
			target.MeterProvider = mp
		}
	}
}
