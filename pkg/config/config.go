package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverGCS = "gcs"
	StorageDriverS3  = "s3"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	StorageDriver   string
	StorageBucket   string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3UseSSL        bool
	S3PublicBaseURL string

	SessionTokenSecret     string
	SessionTokenTemplate   string
	SessionTokenTTL        time.Duration
	SessionRefreshInterval time.Duration

	ConversationPageSize int
	MessagePageSize      int
	MessageCooldown      time.Duration
	HTTPRateLimit        float64

	// MissingKeys lists required settings that were not supplied. A non-empty
	// list puts the service in setup mode.
	MissingKeys []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("storage_driver", StorageDriverGCS)
	v.SetDefault("s3_use_ssl", true)
	v.SetDefault("session_token_template", "marketplace")
	v.SetDefault("session_token_ttl", "10m")
	v.SetDefault("session_refresh_interval", "5m")
	v.SetDefault("conversation_page_size", 20)
	v.SetDefault("message_page_size", 30)
	v.SetDefault("message_cooldown", "2s")
	v.SetDefault("http_rate_limit", 20)

	cfg := &Config{
		ServerPort:                 v.GetString("server_port"),
		Environment:                v.GetString("environment"),
		LogLevel:                   v.GetString("log_level"),
		FirebaseProject:            v.GetString("firebase_project_id"),
		FirebaseServiceAccountJSON: v.GetString("firebase_service_account_json"),
		FirebaseServiceAccountPath: v.GetString("firebase_service_account_path"),
		StorageDriver:              strings.ToLower(v.GetString("storage_driver")),
		StorageBucket:              v.GetString("storage_bucket"),
		S3Endpoint:                 v.GetString("s3_endpoint"),
		S3AccessKey:                v.GetString("s3_access_key"),
		S3SecretKey:                v.GetString("s3_secret_key"),
		S3UseSSL:                   v.GetBool("s3_use_ssl"),
		S3PublicBaseURL:            v.GetString("s3_public_base_url"),
		SessionTokenSecret:         v.GetString("session_token_secret"),
		SessionTokenTemplate:       v.GetString("session_token_template"),
		ConversationPageSize:       v.GetInt("conversation_page_size"),
		MessagePageSize:            v.GetInt("message_page_size"),
		HTTPRateLimit:              v.GetFloat64("http_rate_limit"),
	}

	var err error
	if cfg.SessionTokenTTL, err = parseDuration(v, "session_token_ttl"); err != nil {
		return nil, err
	}
	if cfg.SessionRefreshInterval, err = parseDuration(v, "session_refresh_interval"); err != nil {
		return nil, err
	}
	if cfg.MessageCooldown, err = parseDuration(v, "message_cooldown"); err != nil {
		return nil, err
	}

	if cfg.StorageDriver != StorageDriverGCS && cfg.StorageDriver != StorageDriverS3 {
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if cfg.ConversationPageSize <= 0 {
		cfg.ConversationPageSize = 20
	}
	if cfg.MessagePageSize <= 0 {
		cfg.MessagePageSize = 30
	}

	cfg.MissingKeys = cfg.missing()
	return cfg, nil
}

// Ready reports whether every required setting is present.
func (c *Config) Ready() bool {
	return len(c.MissingKeys) == 0
}

func (c *Config) HTTPAddress() string {
	if strings.HasPrefix(c.ServerPort, ":") {
		return c.ServerPort
	}
	return ":" + c.ServerPort
}

func (c *Config) missing() []string {
	var keys []string
	if c.FirebaseProject == "" {
		keys = append(keys, "FIREBASE_PROJECT_ID")
	}
	if c.FirebaseServiceAccountJSON == "" && c.FirebaseServiceAccountPath == "" {
		keys = append(keys, "FIREBASE_SERVICE_ACCOUNT_JSON")
	}
	if c.StorageBucket == "" {
		keys = append(keys, "STORAGE_BUCKET")
	}
	if c.SessionTokenSecret == "" {
		keys = append(keys, "SESSION_TOKEN_SECRET")
	}
	if c.StorageDriver == StorageDriverS3 {
		if c.S3Endpoint == "" {
			keys = append(keys, "S3_ENDPOINT")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			keys = append(keys, "S3_ACCESS_KEY", "S3_SECRET_KEY")
		}
	}
	return keys
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}
