// Package config loads settings from an optional YAML file, the process
// environment and a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/monocle-dev/planboard/internal/types"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const EnvPrefix = "PLANBOARD"

type Config struct {
	Server   *Server
	Auth     *Auth
	Store    *Store
	Redis    *Redis
	Logger   *Logger
	Realtime *Realtime
}

type Server struct {
	Host           string
	Port           int
	BasePath       string
	Mode           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Auth struct {
	JWTSecret  string
	TokenTTL   time.Duration
	Revocation string
	BcryptCost int
}

type Store struct {
	Driver         string
	URI            string
	Database       string
	ConnectTimeout time.Duration
	Breaker        *Breaker
}

type Breaker struct {
	Enabled     bool
	Failures    uint32
	MaxRequests uint32
	Timeout     time.Duration
}

type Redis struct {
	URL string
	DB  int
}

type Logger struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type Realtime struct {
	Enabled bool
}

// Load reads configuration. configPath may be empty, in which case only the
// environment and defaults are used.
func Load(configPath string) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"server.port":     {EnvPrefix + "_SERVER_PORT", "PORT"},
		"auth.jwt_secret": {EnvPrefix + "_AUTH_JWT_SECRET", "JWT_SECRET"},
		"redis.url":       {EnvPrefix + "_REDIS_URL", "REDIS_URL"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server:   getServerConfig(v),
		Auth:     getAuthConfig(v),
		Store:    getStoreConfig(v),
		Redis:    &Redis{URL: v.GetString("redis.url"), DB: v.GetInt("redis.db")},
		Logger:   getLoggerConfig(v),
		Realtime: &Realtime{Enabled: v.GetBool("realtime.enabled")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 168*time.Hour)
	v.SetDefault("auth.revocation", "memory")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	v.SetDefault("store.driver", "mongodb")
	v.SetDefault("store.uri", "")
	v.SetDefault("store.database", "planboard")
	v.SetDefault("store.connect_timeout", 10*time.Second)
	v.SetDefault("store.breaker.enabled", true)
	v.SetDefault("store.breaker.failures", 5)
	v.SetDefault("store.breaker.max_requests", 1)
	v.SetDefault("store.breaker.timeout", 30*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("realtime.enabled", true)
}

func getServerConfig(v *viper.Viper) *Server {
	return &Server{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		BasePath:       v.GetString("server.base_path"),
		Mode:           v.GetString("server.mode"),
		AllowedOrigins: allowedOrigins(v),
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
	}
}

// allowedOrigins starts from the development defaults and appends CLIENT_URL,
// the comma separated ALLOWED_ORIGINS and server.allowed_origins.
func allowedOrigins(v *viper.Viper) []string {
	origins := append([]string{}, types.DefaultOrigins...)

	_ = v.BindEnv("client_url", "CLIENT_URL")
	_ = v.BindEnv("allowed_origins", "ALLOWED_ORIGINS")

	if clientURL := strings.TrimSpace(v.GetString("client_url")); clientURL != "" {
		origins = append(origins, clientURL)
	}

	candidates := strings.Split(v.GetString("allowed_origins"), ",")
	candidates = append(candidates, v.GetStringSlice("server.allowed_origins")...)

	for _, origin := range candidates {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return origins
}

func getAuthConfig(v *viper.Viper) *Auth {
	return &Auth{
		JWTSecret:  v.GetString("auth.jwt_secret"),
		TokenTTL:   v.GetDuration("auth.token_ttl"),
		Revocation: strings.ToLower(v.GetString("auth.revocation")),
		BcryptCost: v.GetInt("auth.bcrypt_cost"),
	}
}

func getStoreConfig(v *viper.Viper) *Store {
	driver := strings.ToLower(v.GetString("store.driver"))

	_ = v.BindEnv("mongodb_uri", "MONGODB_URI")
	_ = v.BindEnv("database_url", "DATABASE_URL")

	uri := v.GetString("store.uri")
	if uri == "" {
		switch driver {
		case "mongodb":
			uri = v.GetString("mongodb_uri")
		case "postgres", "mysql":
			uri = v.GetString("database_url")
		}
	}
	if uri == "" && driver == "mongodb" {
		uri = "mongodb://localhost:27017"
	}

	return &Store{
		Driver:         driver,
		URI:            uri,
		Database:       v.GetString("store.database"),
		ConnectTimeout: v.GetDuration("store.connect_timeout"),
		Breaker: &Breaker{
			Enabled:     v.GetBool("store.breaker.enabled"),
			Failures:    uint32(v.GetInt("store.breaker.failures")),
			MaxRequests: uint32(v.GetInt("store.breaker.max_requests")),
			Timeout:     v.GetDuration("store.breaker.timeout"),
		},
	}
}

func getLoggerConfig(v *viper.Viper) *Logger {
	return &Logger{
		Level:      v.GetString("log.level"),
		Format:     strings.ToLower(v.GetString("log.format")),
		File:       v.GetString("log.file"),
		MaxSize:    v.GetInt("log.max_size"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAge:     v.GetInt("log.max_age"),
		Compress:   v.GetBool("log.compress"),
	}
}

// Validate reports the first setting that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	switch c.Auth.Revocation {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url (REDIS_URL) is required for redis token revocation")
		}
	default:
		return fmt.Errorf("unknown auth.revocation backend: %s", c.Auth.Revocation)
	}

	switch c.Store.Driver {
	case "memory":
	case "mongodb", "postgres", "mysql":
		if c.Store.URI == "" {
			return fmt.Errorf("store.uri is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver: %s", c.Store.Driver)
	}

	switch c.Logger.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format: %s", c.Logger.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /: %s", c.Server.BasePath)
	}

	return nil
}
