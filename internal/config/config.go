// Package config loads the server configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Env            string
	Port           string
	LogLevel       string
	AllowedOrigins []string
	FreePostLimit  int64

	Database DatabaseConfig
	Auth     AuthConfig
	Payments PaymentsConfig
}

type DatabaseConfig struct {
	Driver string

	// PostgreSQL, either a full URL or the individual DB_* parts.
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// MongoDB, e.g. mongodb://localhost/forumx or memory://forumx.
	MongoURI string
}

type AuthConfig struct {
	FirebaseProjectID string
	CertsURL          string
	HMACSecret        string
}

type PaymentsConfig struct {
	StripeSecretKey string
	Price           decimal.Decimal
	Currency        string
}

// Production reports whether the server runs with production defaults.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// PostgresDSN returns URL when set, otherwise a key/value DSN built from the parts.
func (d DatabaseConfig) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", DriverPostgres),
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "forumx"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MongoURI: getEnv("MONGODB_URI", "mongodb://localhost:27017/forumx"),
		},
		Auth: AuthConfig{
			FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
			CertsURL:          os.Getenv("FIREBASE_CERTS_URL"),
			HMACSecret:        os.Getenv("AUTH_HMAC_SECRET"),
		},
		Payments: PaymentsConfig{
			StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			Currency:        strings.ToLower(getEnv("MEMBERSHIP_CURRENCY", "usd")),
		},
	}

	limit, err := strconv.ParseInt(getEnv("FREE_POST_LIMIT", "5"), 10, 64)
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("invalid FREE_POST_LIMIT %q", os.Getenv("FREE_POST_LIMIT"))
	}
	cfg.FreePostLimit = limit

	price, err := decimal.NewFromString(getEnv("MEMBERSHIP_PRICE", "9.99"))
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("invalid MEMBERSHIP_PRICE %q", os.Getenv("MEMBERSHIP_PRICE"))
	}
	cfg.Payments.Price = price

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want %q or %q", c.Database.Driver, DriverPostgres, DriverMongo)
	}
	if c.Auth.FirebaseProjectID == "" && c.Auth.HMACSecret == "" {
		return errors.New("one of FIREBASE_PROJECT_ID or AUTH_HMAC_SECRET is required")
	}
	if c.Production() && c.Auth.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
