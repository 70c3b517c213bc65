// Package config loads settings for the store server and the CLI client from
// command-line flags, environment variables, a .env file and defaults.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Store  StoreConfig
	Server ServerConfig
	Auth   AuthConfig
	Client ClientConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty or empty to follow the environment
}

// StoreConfig selects where the server keeps the tree.
type StoreConfig struct {
	Backend  string // memory, badger or sqlite
	DataPath string
}

// ServerConfig holds store server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Heartbeat       time.Duration
	StreamQueue     int
	StreamSend      time.Duration
	AuthRate        float64 // auth requests per second per client address
	AuthBurst       int
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	KeyHex        string // empty means <data>/auth.key
	TokenDuration time.Duration
}

// ClientConfig holds CLI client configuration.
type ClientConfig struct {
	ServerURL      string
	Email          string
	Password       string
	TokenFile      string
	RequestTimeout time.Duration
}

// setting is one configuration key: its flag, environment variable and default.
type setting struct {
	flag  string
	env   string
	def   string
	usage string
}

var settings = []setting{
	{"env", "ENV", "development", "Environment (development, staging, production)"},
	{"log-level", "LOG_LEVEL", "info", "Log level (debug, info, warn, error)"},
	{"log-format", "LOG_FORMAT", "", "Log format (json, pretty)"},

	{"store-backend", "STORE_BACKEND", "badger", "Tree persistence (memory, badger, sqlite)"},
	{"data-path", "DATA_PATH", "", "Directory for the tree and the auth key"},

	{"port", "SERVER_PORT", "8080", "Server port"},
	{"read-timeout", "SERVER_READ_TIMEOUT", "15s", "HTTP read timeout"},
	{"write-timeout", "SERVER_WRITE_TIMEOUT", "15s", "HTTP write timeout"},
	{"idle-timeout", "SERVER_IDLE_TIMEOUT", "60s", "HTTP idle timeout"},
	{"shutdown-timeout", "SERVER_SHUTDOWN_TIMEOUT", "10s", "Graceful shutdown timeout"},
	{"cors-origins", "SERVER_CORS_ORIGINS", "*", "Comma separated allowed origins"},
	{"heartbeat", "STREAM_HEARTBEAT", "30s", "Stream heartbeat interval"},
	{"stream-queue", "STREAM_QUEUE", "256", "Outbound frames buffered per stream client"},
	{"stream-send-timeout", "STREAM_SEND_TIMEOUT", "10s", "How long a frame waits on a full stream queue"},
	{"auth-rate", "AUTH_RATE", "0.2", "Auth requests per second per client address"},
	{"auth-burst", "AUTH_BURST", "10", "Auth request burst per client address"},

	{"auth-key", "AUTH_KEY", "", "Hex encoded 32-byte token key"},
	{"token-duration", "TOKEN_DURATION", "720h", "Access token lifetime"},

	{"server-url", "SHOPLIST_SERVER", "http://localhost:8080", "Store server URL"},
	{"email", "SHOPLIST_EMAIL", "", "Account email"},
	{"password", "SHOPLIST_PASSWORD", "", "Account password"},
	{"token-file", "SHOPLIST_TOKEN_FILE", "", "Where the CLI keeps its access token"},
	{"request-timeout", "SHOPLIST_TIMEOUT", "10s", "Client request timeout"},
}

// Overrides maps an environment key to the value of its flag after parsing.
type Overrides map[string]*string

// BindFlags registers every setting on fs. Pass the result to Load once fs
// has been parsed.
func BindFlags(fs *flag.FlagSet) Overrides {
	o := make(Overrides, len(settings)+1)
	for _, s := range settings {
		o[s.env] = fs.String(s.flag, "", s.usage)
	}
	o[envFileKey] = fs.String("env-file", ".env", "Path to .env file")
	return o
}

const envFileKey = "ENV_FILE"

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(o Overrides) (*Config, error) {
	envFile := ".env"
	if p := o.get(envFileKey); p != "" {
		envFile = p
	}
	// A missing .env file is fine.
	if err := loadEnvFile(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	r := resolver{o: o}
	cfg := &Config{
		App: AppConfig{
			Environment: r.str("ENV"),
		},
		Logger: LoggerConfig{
			Level:  r.str("LOG_LEVEL"),
			Format: r.str("LOG_FORMAT"),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(r.str("STORE_BACKEND")),
			DataPath: r.str("DATA_PATH"),
		},
		Server: ServerConfig{
			Port:            r.str("SERVER_PORT"),
			ReadTimeout:     r.duration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    r.duration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     r.duration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: r.duration("SERVER_SHUTDOWN_TIMEOUT"),
			CORSOrigins:     r.list("SERVER_CORS_ORIGINS"),
			Heartbeat:       r.duration("STREAM_HEARTBEAT"),
			StreamQueue:     r.integer("STREAM_QUEUE"),
			StreamSend:      r.duration("STREAM_SEND_TIMEOUT"),
			AuthRate:        r.float("AUTH_RATE"),
			AuthBurst:       r.integer("AUTH_BURST"),
		},
		Auth: AuthConfig{
			KeyHex:        r.str("AUTH_KEY"),
			TokenDuration: r.duration("TOKEN_DURATION"),
		},
		Client: ClientConfig{
			ServerURL:      strings.TrimRight(r.str("SHOPLIST_SERVER"), "/"),
			Email:          r.str("SHOPLIST_EMAIL"),
			Password:       r.str("SHOPLIST_PASSWORD"),
			TokenFile:      r.str("SHOPLIST_TOKEN_FILE"),
			RequestTimeout: r.duration("SHOPLIST_TIMEOUT"),
		},
	}
	if r.err != nil {
		return nil, r.err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration built from the environment and defaults
// alone, without flags or a .env file.
func Defaults() *Config {
	cfg, err := Load(Overrides{envFileKey: ptr(os.DevNull)})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Logger.Format {
	case "", "json", "pretty":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	switch c.Store.Backend {
	case "memory":
	case "badger", "sqlite":
		if c.Store.DataPath == "" {
			return fmt.Errorf("store backend %s needs a data path", c.Store.Backend)
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory, badger, or sqlite)", c.Store.Backend)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	if c.Server.StreamQueue < 1 || c.Server.StreamSend <= 0 {
		return errors.New("stream queue and send timeout must be positive")
	}
	if c.Server.AuthRate <= 0 || c.Server.AuthBurst < 1 {
		return errors.New("auth rate and burst must be positive")
	}

	if c.Auth.KeyHex != "" && len(c.Auth.KeyHex) != 64 {
		return errors.New("auth key must be 64 hex characters")
	}
	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}

	u, err := url.Parse(c.Client.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url: %q", c.Client.ServerURL)
	}
	return nil
}

// StorePath is the file or directory the configured backend opens.
func (c *Config) StorePath() string {
	switch c.Store.Backend {
	case "badger":
		return filepath.Join(c.Store.DataPath, "tree")
	case "sqlite":
		return filepath.Join(c.Store.DataPath, "tree.db")
	default:
		return ""
	}
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	base := filepath.Join(homeDir, ".shoplist")

	if c.Store.DataPath, err = expandPath(c.Store.DataPath, filepath.Join(base, "data")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Client.TokenFile, err = expandPath(c.Client.TokenFile, filepath.Join(base, "token.json")); err != nil {
		return fmt.Errorf("invalid token file: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is used.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (o Overrides) get(key string) string {
	if p := o[key]; p != nil {
		return *p
	}
	return ""
}

// resolver reads settings by environment key and keeps the first parse error.
type resolver struct {
	o   Overrides
	err error
}

func (r *resolver) str(envKey string) string {
	// Priority 1: Command-line flag.
	if v := r.o.get(envKey); v != "" {
		return v
	}
	// Priority 2: Environment variable (the .env file only fills unset ones).
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Priority 3: Default value.
	for _, s := range settings {
		if s.env == envKey {
			return s.def
		}
	}
	return ""
}

func (r *resolver) duration(envKey string) time.Duration {
	raw := r.str(envKey)
	d, err := time.ParseDuration(raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d
}

func (r *resolver) integer(envKey string) int {
	raw := r.str(envKey)
	n, err := strconv.Atoi(raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return n
}

func (r *resolver) float(envKey string) float64 {
	raw := r.str(envKey)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return f
}

func (r *resolver) list(envKey string) []string {
	var out []string
	for _, part := range strings.Split(r.str(envKey), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ptr(s string) *string { return &s }

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
