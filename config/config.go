package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is built once at startup
// and handed to the components that need it.
type Config struct {
	// App
	Port           string
	Env            string
	StoreBackend   string
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxUploadMB    int64

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Media
	CloudinaryURL    string
	CloudinaryFolder string

	// Web Push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Rate limiting for the public auth routes
	RateLimit  int
	RateWindow time.Duration

	SweepInterval time.Duration
}

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		StoreBackend:       getEnv("STORE_BACKEND", BackendMongo),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		MaxUploadMB:        int64(getEnvInt("MAX_UPLOAD_MB", 10)),
		MongoURI:           getEnv("MONGODB_URI", ""),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "kinship"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 10*time.Hour),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/users/google/callback"),
		CloudinaryURL:      getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder:   getEnv("CLOUDINARY_FOLDER", "kinship"),
		VAPIDPublicKey:     getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:    getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:       getEnv("VAPID_SUBJECT", "mailto:admin@kinship.local"),
		RateLimit:          getEnvInt("RATE_LIMIT", 60),
		RateWindow:         getEnvDuration("RATE_WINDOW", time.Minute),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 30*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required when STORE_BACKEND=mongo")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GoogleEnabled reports whether Google sign-in has a client configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
