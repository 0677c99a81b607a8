package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Password PasswordConfig
	Email    EmailConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	BaseURL         string // Public URL used in emailed links
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins, empty disables CORS
	SecureCookies   bool
	UploadMaxBytes  int64
}

type DatabaseConfig struct {
	Driver         string // postgres or sqlite
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	DSN            string // sqlite only
	AutoMigrate    bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

type AuthConfig struct {
	// TokenFormat selects the session token implementation: paseto or jwt
	TokenFormat string
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey       []byte
	JWTSecret       []byte
	SessionDuration time.Duration
	ResetDuration   time.Duration
	Argon2Time      uint32
	Argon2Memory    uint32
	Argon2Threads   uint8
}

// PasswordConfig describes the password policy applied on sign-up, profile
// password change and reset.
type PasswordConfig struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireDigit   bool
	RequireSpecial bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromName     string
}

type StorageConfig struct {
	Region         string
	Endpoint       string // S3-compatible endpoint (MinIO), empty for AWS
	AccessKey      string
	SecretKey      string
	Bucket         string // empty disables profile picture uploads
	UsePathStyle   bool
	PresignExpires time.Duration
}

// Load reads configuration from environment variables
// A .env file in the working directory is loaded first when present
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "3000"),
			Env:             getEnv("APP_ENV", "dev"),
			BaseURL:         strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", nil),
			SecureCookies:   getBoolEnv("COOKIE_SECURE", true),
			UploadMaxBytes:  int64(getIntEnv("UPLOAD_MAX_BYTES", 5*1024*1024)),
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "postgres"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "bookshelf"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			DSN:            getEnv("DB_DSN", "file:bookshelf.db?_pragma=foreign_keys(1)"),
			AutoMigrate:    getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		Auth: AuthConfig{
			TokenFormat:     getEnv("SESSION_TOKEN_FORMAT", "paseto"),
			PasetoKey:       []byte(getEnv("PASETO_KEY", "")),
			JWTSecret:       []byte(getEnv("JWT_SECRET", "")),
			SessionDuration: getDurationEnv("SESSION_DURATION", time.Hour),
			ResetDuration:   getDurationEnv("RESET_TOKEN_DURATION", 15*time.Minute),
			Argon2Time:      uint32(getIntEnv("ARGON2_TIME", 3)),
			Argon2Memory:    uint32(getIntEnv("ARGON2_MEMORY_KB", 64*1024)),
			Argon2Threads:   uint8(getIntEnv("ARGON2_THREADS", 4)),
		},
		Password: PasswordConfig{
			MinLength:      getIntEnv("PASSWORD_MIN_LENGTH", 8),
			MaxLength:      getIntEnv("PASSWORD_MAX_LENGTH", 20),
			RequireUpper:   getBoolEnv("PASSWORD_REQUIRE_UPPER", true),
			RequireDigit:   getBoolEnv("PASSWORD_REQUIRE_DIGIT", true),
			RequireSpecial: getBoolEnv("PASSWORD_REQUIRE_SPECIAL", true),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromName:     getEnv("SMTP_FROM_NAME", "Apni Book"),
		},
		Storage: StorageConfig{
			Region:         getEnv("S3_REGION", "us-east-1"),
			Endpoint:       getEnv("S3_ENDPOINT", ""),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			Bucket:         getEnv("S3_BUCKET", ""),
			UsePathStyle:   getBoolEnv("S3_USE_PATH_STYLE", true),
			PresignExpires: getDurationEnv("S3_PRESIGN_EXPIRES", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Auth.TokenFormat {
	case "paseto":
		// Validate PASETO key length (must be 32 bytes for v4.local)
		if len(c.Auth.PasetoKey) != 32 {
			return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
		}
	case "jwt":
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
		}
	default:
		return fmt.Errorf("unsupported SESSION_TOKEN_FORMAT %q", c.Auth.TokenFormat)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return fmt.Errorf("invalid password length bounds %d..%d", c.Password.MinLength, c.Password.MaxLength)
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "sqlite" {
		return c.DSN
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Address returns the SMTP server address (host:port)
func (c *EmailConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.SMTPHost, c.SMTPPort)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv accepts Go duration strings ("15m") or plain seconds ("900")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
