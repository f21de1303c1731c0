// Package config loads AgentForge's runtime settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Addr         string        `mapstructure:"addr"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Database struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type Events struct {
	OutboxSize  int `mapstructure:"outbox_size"`
	LogRingSize int `mapstructure:"log_ring_size"`
}

type Observability struct {
	LogLevel     string `mapstructure:"log_level"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

type Config struct {
	Server        Server        `mapstructure:"server"`
	Database      Database      `mapstructure:"database"`
	Events        Events        `mapstructure:"events"`
	Observability Observability `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Addr:         ":8080",
			CORSOrigins:  []string{"http://localhost:3003"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: Database{
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Events: Events{
			OutboxSize:  256,
			LogRingSize: 500,
		},
		Observability: Observability{
			LogLevel:    "info",
			MetricsAddr: ":9090",
			ServiceName: "agentforge",
		},
	}
}

// Load reads configuration from a YAML file at path, if present, layering
// environment variable overrides on top (e.g. DATABASE_URL maps to
// database.url via the "." -> "_" key replacer). path may be empty, in
// which case only defaults and env vars apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.cors_origins", def.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)

	v.SetDefault("database.max_conns", def.Database.MaxConns)
	v.SetDefault("database.min_conns", def.Database.MinConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", def.Database.ConnMaxIdleTime)

	v.SetDefault("events.outbox_size", def.Events.OutboxSize)
	v.SetDefault("events.log_ring_size", def.Events.LogRingSize)

	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.metrics_addr", def.Observability.MetricsAddr)
	v.SetDefault("observability.service_name", def.Observability.ServiceName)

	// DATABASE_URL is the one setting every deployment must set explicitly.
	// database.url has no default, so AutomaticEnv alone would not surface
	// it to Unmarshal; bind it to DATABASE_URL directly.
	_ = v.BindEnv("database.url", "DATABASE_URL")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (DATABASE_URL) must be set")
	}
	if cfg.Database.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be >= 1")
	}
	if cfg.Events.OutboxSize < 1 {
		return fmt.Errorf("events.outbox_size must be >= 1")
	}
	if cfg.Events.LogRingSize < 1 {
		return fmt.Errorf("events.log_ring_size must be >= 1")
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		return fmt.Errorf("server.cors_origins must be non-empty")
	}
	return nil
}
