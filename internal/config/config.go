package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Configuration struct {
	Server   ServerConfig   `json:"server"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Database DatabaseConfig `json:"database"`
	Audit    AuditConfig    `json:"audit"`
	Seed     SeedConfig     `json:"seed"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type SecurityConfig struct {
	JWTSecret         string        `json:"jwt_secret"`
	TokenLifetime     time.Duration `json:"token_lifetime"`
	ChallengeLifetime time.Duration `json:"challenge_lifetime"`
	MaxLoginAttempts  int           `json:"max_login_attempts"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Environment string `json:"environment"`
}

type DatabaseConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            string `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime"`
}

type AuditConfig struct {
	NatsURL       string `json:"nats_url"`
	SubjectPrefix string `json:"subject_prefix"`
}

// SeedConfig lists the out-of-band provisioned principals. Admin standing is
// only ever established here; the role grant endpoint refuses it.
type SeedConfig struct {
	AdminAddresses  []string `json:"admin_addresses"`
	IssuerAddresses []string `json:"issuer_addresses"`
	AdminUsername   string   `json:"admin_username"`
	AdminPassword   string   `json:"admin_password"`
}

var (
	config     *Configuration
	configLock sync.RWMutex
)

// Load builds the configuration from defaults overlaid with the process
// environment. A .env file is honored when present.
func Load() *Configuration {
	configLock.Lock()
	defer configLock.Unlock()

	godotenv.Load()

	config = &Configuration{
		Server: ServerConfig{
			Port:         envOr("PORT", "8000"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:         envOr("JWT_SECRET", "insecure-development-secret"),
			TokenLifetime:     envDurationOr("TOKEN_LIFETIME", 24*time.Hour),
			ChallengeLifetime: envDurationOr("CHALLENGE_LIFETIME", 5*time.Minute),
			MaxLoginAttempts:  envIntOr("MAX_LOGIN_ATTEMPTS", 5),
		},
		Logging: LoggingConfig{
			Level:       envOr("LOG_LEVEL", "info"),
			Environment: envOr("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Enabled:         envBoolOr("DATABASE_ENABLED", false),
			Host:            envOr("DATABASE_HOST", "localhost"),
			Port:            envOr("DATABASE_PORT", "5432"),
			Username:        envOr("DATABASE_USER", "postgres"),
			Password:        envOr("DATABASE_PASSWORD", "password"),
			Name:            envOr("DATABASE_NAME", "certificates"),
			SSLMode:         envOr("DATABASE_SSLMODE", "disable"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 300,
		},
		Audit: AuditConfig{
			NatsURL:       os.Getenv("NATS_URL"),
			SubjectPrefix: envOr("AUDIT_SUBJECT_PREFIX", "audit"),
		},
		Seed: SeedConfig{
			AdminAddresses:  envList("ADMIN_ADDRESSES"),
			IssuerAddresses: envList("ISSUER_ADDRESSES"),
			AdminUsername:   envOr("ADMIN_USERNAME", "admin"),
			AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		},
	}

	return config
}

func Get() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	logger.Info("Application configuration",
		zap.String("port", config.Server.Port),
		zap.Duration("token_lifetime", config.Security.TokenLifetime),
		zap.Duration("challenge_lifetime", config.Security.ChallengeLifetime),
		zap.Bool("database_enabled", config.Database.Enabled),
		zap.String("database_host", config.Database.Host),
		zap.String("database_name", config.Database.Name),
		zap.Bool("nats_audit", config.Audit.NatsURL != ""),
		zap.Int("seed_admins", len(config.Seed.AdminAddresses)),
		zap.Int("seed_issuers", len(config.Seed.IssuerAddresses)),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
