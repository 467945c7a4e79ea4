// Package config loads settings from flags, environment variables and an
// optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"groups/solver"
)

type Server struct {
	ListenAddr   string   `mapstructure:"listen_addr" validate:"required"`
	PGConn       string   `mapstructure:"pgconn" validate:"required"`
	ClientID     string   `mapstructure:"client_id" validate:"required"`
	ClientSecret string   `mapstructure:"client_secret" validate:"required"`
	Admins       []string `mapstructure:"admins" validate:"required,min=1,dive,email"`
}

type Build struct {
	Mode string `mapstructure:"mode" validate:"buildmode"`
	Seed int64  `mapstructure:"seed"`
}

type Config struct {
	Server         Server `mapstructure:",squash"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogDevelopment bool   `mapstructure:"log_development"`
	Build          Build  `mapstructure:"build"`
}

var envNames = map[string]string{
	"pgconn":          "PGCONN",
	"client_id":       "CLIENT_ID",
	"client_secret":   "CLIENT_SECRET",
	"admins":          "ADMINS",
	"listen_addr":     "LISTEN_ADDR",
	"log_level":       "LOG_LEVEL",
	"log_development": "LOG_DEVELOPMENT",
	"build.mode":      "BUILD_MODE",
	"build.seed":      "BUILD_SEED",
}

var flagKeys = map[string]string{
	"listen":          "listen_addr",
	"log-level":       "log_level",
	"log-development": "log_development",
	"mode":            "build.mode",
	"seed":            "build.seed",
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("listen", ":8080", "HTTP listen address")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-development", false, "human-readable console logs")
	fs.String("mode", "deterministic", "build mode: deterministic or randomized")
	fs.Int64("seed", 1, "random seed for randomized builds")
}

// Load resolves the configuration for a parsed flag set that went through
// RegisterFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("build.mode", "deterministic")
	v.SetDefault("build.seed", int64(1))
	v.SetDefault("pgconn", "")
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("admins", []string{})

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Build.Mode = strings.ToLower(strings.TrimSpace(cfg.Build.Mode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	admins := cfg.Server.Admins[:0]
	for _, a := range cfg.Server.Admins {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	cfg.Server.Admins = admins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := solver.ParseMode(cfg.Build.Mode)
	cfg.Build.Mode = mode.String()
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("buildmode", func(fl validator.FieldLevel) bool {
		_, err := solver.ParseMode(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if err := validate.StructExcept(c, "Server"); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateServer checks the settings the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := validate.Struct(c.Server); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}
