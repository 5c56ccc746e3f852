package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
	StoreSQLite = "sqlite3"
)

// The console holds a single operator session and serves it to whoever can
// reach it, so both servers listen on loopback unless told otherwise.
const (
	DefaultConsoleAddr = "127.0.0.1:8082"
	DefaultStubAddr    = "127.0.0.1:5050"
)

type Config struct {
	AuthBaseURL string
	APIBaseURL  string
	ConsoleAddr string
	StubAddr    string
	JWTSecret   string

	TokenStore    string
	TokenStoreDSN string
	TokenFile     string

	StubDBDriver string
	StubDBDSN    string

	MongoURI    string
	MongoDBName string

	TokenTTL time.Duration
	LogLevel string
}

/*
START names the env file: .env-local for a local database, .env.docker
inside compose. Without START a plain .env is read when present.
*/
func Load() (*Config, error) {
	file := os.Getenv("START")
	if file == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	} else if err := godotenv.Load(file); err != nil {
		return nil, fmt.Errorf("env file %s: %w", file, err)
	}

	cfg := &Config{
		AuthBaseURL:   get("AUTH_BASE_URL", "http://localhost:5050/api/v1/auth"),
		APIBaseURL:    get("API_BASE_URL", "http://localhost:5050/api/v1"),
		ConsoleAddr:   get("CONSOLE_ADDR", DefaultConsoleAddr),
		StubAddr:      get("STUB_ADDR", DefaultStubAddr),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenStore:    get("TOKEN_STORE", StoreFile),
		TokenStoreDSN: os.Getenv("TOKEN_STORE_DSN"),
		TokenFile:     get("TOKEN_FILE", defaultTokenFile()),
		StubDBDriver:  get("STUB_DB_DRIVER", StoreMySQL),
		StubDBDSN:     os.Getenv("STUB_DB_DSN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDBName:   get("MONGO_DB_NAME", "accesos"),
		LogLevel:      get("LOG_LEVEL", "info"),
	}

	// MYSQL_DSN is the older name of the stub database DSN.
	if cfg.StubDBDSN == "" {
		cfg.StubDBDSN = os.Getenv("MYSQL_DSN")
	}

	ttl, err := time.ParseDuration(get("TOKEN_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	return cfg, nil
}

// Validate checks what the console needs.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthBaseURL == "" {
		errs = append(errs, errors.New("AUTH_BASE_URL is not set in environment"))
	}
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is not set in environment"))
	}

	switch c.TokenStore {
	case StoreMemory:
	case StoreFile:
		if c.TokenFile == "" {
			errs = append(errs, errors.New("TOKEN_FILE is not set in environment"))
		}
	case StoreMySQL, StoreSQLite:
		if c.TokenStoreDSN == "" {
			errs = append(errs, errors.New("TOKEN_STORE_DSN is not set in environment"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_STORE %q", c.TokenStore))
	}
	return errors.Join(errs...)
}

// ValidateStub checks what the development auth backend needs.
func (c *Config) ValidateStub() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set in environment"))
	}
	if c.StubDBDSN == "" {
		errs = append(errs, errors.New("STUB_DB_DSN is not set in environment"))
	}
	if c.StubDBDriver != StoreMySQL && c.StubDBDriver != StoreSQLite {
		errs = append(errs, fmt.Errorf("unknown STUB_DB_DRIVER %q", c.StubDBDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".consola-token.json"
	}
	return filepath.Join(dir, "consola", "token.json")
}
