// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Feed policies accepted by FEED_POLICY.
const (
	FeedPolicyFollowing = "following"
	FeedPolicyGlobal    = "global"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	Port                  string `mapstructure:"PORT"`
	Env                   string `mapstructure:"APP_ENV"`
	MongoURI              string `mapstructure:"MONGODB_URI"`
	MongoDatabase         string `mapstructure:"MONGODB_DATABASE"`
	MongoTransactions     bool   `mapstructure:"MONGODB_TRANSACTIONS"`
	MongoTimeoutSeconds   int    `mapstructure:"MONGODB_TIMEOUT_SECONDS"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	AllowedOrigins        string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags          string `mapstructure:"FEATURE_FLAGS"`
	FeatureFlagsFile      string `mapstructure:"FEATURE_FLAGS_FILE"`
	FeedPolicy            string `mapstructure:"FEED_POLICY"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RateLimitMax          int    `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindowMin    int    `mapstructure:"RATE_LIMIT_WINDOW_MINUTES"`
	ImageMaxUploadSizeMB  int    `mapstructure:"IMAGE_MAX_UPLOAD_MB"`
	ImageMaxDimension     int    `mapstructure:"IMAGE_MAX_DIMENSION"`
	ImageOutputFormat     string `mapstructure:"IMAGE_OUTPUT_FORMAT"`
	ImageJPEGQuality      int    `mapstructure:"IMAGE_JPEG_QUALITY"`
	AdminUserIDs          string `mapstructure:"ADMIN_USER_IDS"`
	TracingEnabled        bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint          string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName           string `mapstructure:"OTEL_SERVICE_NAME"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGODB_DATABASE", "vistagram")
	viper.SetDefault("MONGODB_TRANSACTIONS", false)
	viper.SetDefault("MONGODB_TIMEOUT_SECONDS", 10)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("FEATURE_FLAGS_FILE", "")
	viper.SetDefault("FEED_POLICY", FeedPolicyFollowing)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RATE_LIMIT_MAX", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW_MINUTES", 15)
	viper.SetDefault("IMAGE_MAX_UPLOAD_MB", 10)
	viper.SetDefault("IMAGE_MAX_DIMENSION", 800)
	viper.SetDefault("IMAGE_OUTPUT_FORMAT", "jpeg")
	viper.SetDefault("IMAGE_JPEG_QUALITY", 70)
	viper.SetDefault("ADMIN_USER_IDS", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	viper.SetDefault("OTEL_SERVICE_NAME", "vistagram-api")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.FeedPolicy = strings.ToLower(strings.TrimSpace(c.FeedPolicy))
	c.ImageOutputFormat = strings.ToLower(strings.TrimSpace(c.ImageOutputFormat))
	if c.ImageOutputFormat == "jpg" {
		c.ImageOutputFormat = "jpeg"
	}
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// RequestTimeout is the wall-clock budget for a single HTTP request.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MongoTimeout bounds connect and ping against the document store.
func (c *Config) MongoTimeout() time.Duration {
	if c.MongoTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.MongoTimeoutSeconds) * time.Second
}

// AdminIDs returns the configured admin user ids (hex object ids).
func (c *Config) AdminIDs() []string {
	var ids []string
	for _, raw := range strings.Split(c.AdminUserIDs, ",") {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		return errors.New("MONGODB_URI must use the mongodb:// or mongodb+srv:// scheme")
	}
	if c.MongoDatabase == "" {
		return errors.New("MONGODB_DATABASE is required")
	}
	switch c.FeedPolicy {
	case FeedPolicyFollowing, FeedPolicyGlobal:
	default:
		return fmt.Errorf("FEED_POLICY must be %q or %q, got %q", FeedPolicyFollowing, FeedPolicyGlobal, c.FeedPolicy)
	}
	switch c.ImageOutputFormat {
	case "jpeg", "webp":
	default:
		return fmt.Errorf("IMAGE_OUTPUT_FORMAT must be jpeg or webp, got %q", c.ImageOutputFormat)
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_MB must be positive")
	}
	if c.ImageJPEGQuality < 1 || c.ImageJPEGQuality > 100 {
		return errors.New("IMAGE_JPEG_QUALITY must be between 1 and 100")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.AllowedOrigins == "*" {
			return errors.New("ALLOWED_ORIGINS cannot be '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
