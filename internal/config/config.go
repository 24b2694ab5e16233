// Package config loads server settings from an optional YAML file with
// ZAIKON_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ZAIKON_"

type Email struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
}

type LINE struct {
	ChannelAccessToken string `yaml:"channel_access_token"`
	ChannelSecret      string `yaml:"channel_secret"`
	BotID              string `yaml:"bot_id"`
}

// AddFriendURL is the link shown next to a chat link code.
func (l LINE) AddFriendURL() string {
	if l.BotID == "" {
		return ""
	}
	return "https://line.me/R/ti/p/" + l.BotID
}

type Push struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

type Admin struct {
	SigningKey   string        `yaml:"signing_key"`
	PasswordHash string        `yaml:"password_hash"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type Backup struct {
	S3Endpoint    string `yaml:"s3_endpoint"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Region      string `yaml:"s3_region"`
	S3AccessKey   string `yaml:"s3_access_key"`
	S3SecretKey   string `yaml:"s3_secret_key"`
	S3Prefix      string `yaml:"s3_prefix"`
	Passphrase    string `yaml:"passphrase"`
	RetentionDays int    `yaml:"retention_days"`
}

type Cleanup struct {
	Interval     time.Duration `yaml:"interval"`
	InactiveDays int           `yaml:"inactive_days"`
	Orphaned     bool          `yaml:"orphaned"`
}

type Config struct {
	Port       string        `yaml:"port"`
	DBPath     string        `yaml:"db_path"`
	BaseURL    string        `yaml:"base_url"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	Email   Email   `yaml:"email"`
	LINE    LINE    `yaml:"line"`
	Push    Push    `yaml:"push"`
	Admin   Admin   `yaml:"admin"`
	Backup  Backup  `yaml:"backup"`
	Cleanup Cleanup `yaml:"cleanup"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Port:       "8080",
		DBPath:     "zaikon.db",
		BaseURL:    "http://localhost:8080",
		LogLevel:   "info",
		LogFormat:  "text",
		SessionTTL: 7 * 24 * time.Hour,
		Push:       Push{Subscriber: "mailto:admin@localhost"},
		Admin:      Admin{TokenTTL: 30 * time.Minute},
		Backup:     Backup{S3Region: "auto", S3Prefix: "zaikon/", RetentionDays: 30},
		Cleanup:    Cleanup{InactiveDays: 180},
	}
}

// Load reads path when it exists, then applies the environment from
// getenv. An empty path skips the file.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key string, dst *string) {
	if v := e.getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := e.getenv(EnvPrefix + key)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = d
}

func (e *envReader) integer(key string, dst *int) {
	v := e.getenv(EnvPrefix + key)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v := e.getenv(EnvPrefix + key)
	if v == "" || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = b
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	e := &envReader{getenv: getenv}
	e.str("PORT", &cfg.Port)
	e.str("DB_PATH", &cfg.DBPath)
	e.str("BASE_URL", &cfg.BaseURL)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.duration("SESSION_TTL", &cfg.SessionTTL)

	e.str("POSTMARK_TOKEN", &cfg.Email.PostmarkToken)
	e.str("EMAIL_FROM", &cfg.Email.From)

	e.str("LINE_CHANNEL_ACCESS_TOKEN", &cfg.LINE.ChannelAccessToken)
	e.str("LINE_CHANNEL_SECRET", &cfg.LINE.ChannelSecret)
	e.str("LINE_BOT_ID", &cfg.LINE.BotID)

	e.str("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	e.str("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	e.str("VAPID_SUBSCRIBER", &cfg.Push.Subscriber)

	e.str("ADMIN_SIGNING_KEY", &cfg.Admin.SigningKey)
	e.str("ADMIN_PASSWORD_HASH", &cfg.Admin.PasswordHash)
	e.duration("ADMIN_TOKEN_TTL", &cfg.Admin.TokenTTL)

	e.str("S3_ENDPOINT", &cfg.Backup.S3Endpoint)
	e.str("S3_BUCKET", &cfg.Backup.S3Bucket)
	e.str("S3_REGION", &cfg.Backup.S3Region)
	e.str("S3_ACCESS_KEY", &cfg.Backup.S3AccessKey)
	e.str("S3_SECRET_KEY", &cfg.Backup.S3SecretKey)
	e.str("S3_PREFIX", &cfg.Backup.S3Prefix)
	e.str("BACKUP_PASSPHRASE", &cfg.Backup.Passphrase)
	e.integer("BACKUP_RETENTION_DAYS", &cfg.Backup.RetentionDays)

	e.duration("CLEANUP_INTERVAL", &cfg.Cleanup.Interval)
	e.integer("CLEANUP_INACTIVE_DAYS", &cfg.Cleanup.InactiveDays)
	e.boolean("CLEANUP_ORPHANED", &cfg.Cleanup.Orphaned)
	return e.err
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var problems []string
	if c.Port == "" {
		problems = append(problems, "port is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "session_ttl must be positive")
	}
	if c.Cleanup.Interval < 0 {
		problems = append(problems, "cleanup.interval must not be negative")
	}
	if c.Cleanup.InactiveDays < 0 {
		problems = append(problems, "cleanup.inactive_days must not be negative")
	}
	if (c.Admin.SigningKey == "") != (c.Admin.PasswordHash == "") {
		problems = append(problems, "admin.signing_key and admin.password_hash must be set together")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
