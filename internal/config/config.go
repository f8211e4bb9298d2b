package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"automax/internal/pkg/validator"
)

const (
	defaultSecretKey     = "changeme-secret-key"
	defaultAppMode       = "Debug"
	defaultAllowedHosts  = "127.0.0.1,localhost,.onrender.com"
	defaultUseDebugDB    = "true"
	defaultServerAddr    = ":8080"
	defaultSessionTTL    = "24h"
	defaultMaxUploadSize = 10 << 20 // 10 MiB
	defaultStaticURL     = "/static/"
	defaultMediaURL      = "/media/"
	defaultEmailHost     = "smtp.mailgun.org"
	defaultEmailPort     = 587
	defaultEmailUseTLS   = "true"
	defaultFromEmail     = "webmaster@localhost"
	defaultDBPort        = "5432"
	defaultDBSSLMode     = "prefer"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
)

// Config is built once at startup and passed by pointer to whatever needs it.
// Nothing reads the environment after Load returns.
type Config struct {
	BaseDir      string
	SecretKey    string `validate:"required"`
	Debug        bool
	AllowedHosts []string
	ServerAddr   string `validate:"required"`
	LogLevel     string
	SessionTTL   time.Duration

	Database DatabaseConfig
	Static   StaticConfig
	Storage  StorageConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	UseDebugDB bool
	SQLitePath string
	Name       string
	User       string
	Password   string
	Host       string
	Port       string
	SSLMode    string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

type StaticConfig struct {
	StaticURL   string `validate:"required"`
	StaticRoot  string
	StaticDirs  []string
	MediaURL    string `validate:"required"`
	MediaRoot   string `validate:"required"`
	MaxUploadSz int64  `validate:"gt=0"`
}

type StorageConfig struct {
	Provider        string `validate:"oneof=local s3 gcs"`
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
	GCSBucketName   string
}

type EmailConfig struct {
	Host        string
	Port        int `validate:"gt=0"`
	UseTLS      bool
	User        string
	Password    string
	DefaultFrom string
	Admins      []string
}

// Load reads <base>/.env (if present) and the process environment.
func Load() (*Config, error) {
	baseDir := strings.TrimSpace(os.Getenv("BASE_DIR"))
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		baseDir = wd
	}

	if err := godotenv.Load(filepath.Join(baseDir, ".env")); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	return FromEnv(baseDir)
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv(baseDir string) (*Config, error) {
	cfg := &Config{BaseDir: baseDir}

	cfg.SecretKey = strings.TrimSpace(getEnv("SECRET_KEY", defaultSecretKey))
	cfg.Debug = strings.TrimSpace(getEnv("DJANGOAPPMODE", defaultAppMode)) == "Debug"
	cfg.AllowedHosts = parseListEnv("ALLOWED_HOSTS", defaultAllowedHosts)
	cfg.ServerAddr = strings.TrimSpace(getEnv("SERVER_ADDR", defaultServerAddr))
	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
	}

	var err error
	cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", defaultSessionTTL)
	if err != nil {
		return nil, err
	}

	cfg.Database = DatabaseConfig{
		UseDebugDB: parseBoolEnv("USEDEBUGDB", defaultUseDebugDB),
		SQLitePath: getEnv("SQLITE_PATH", filepath.Join(baseDir, "db.sqlite3")),
		Name:       os.Getenv("DBNAME"),
		User:       os.Getenv("DBUSER"),
		Password:   os.Getenv("DBPASSWORD"),
		Host:       os.Getenv("DBHOST"),
		Port:       getEnv("DBPORT", defaultDBPort),
		SSLMode:    strings.ToLower(strings.TrimSpace(getEnv("DBSSLMODE", defaultDBSSLMode))),
	}

	maxUpload, err := parseIntEnv("MAX_UPLOAD_SIZE", defaultMaxUploadSize)
	if err != nil {
		return nil, err
	}
	cfg.Static = StaticConfig{
		StaticURL:   withSlashes(getEnv("STATIC_URL", defaultStaticURL)),
		StaticRoot:  getEnv("STATIC_ROOT", filepath.Join(baseDir, "staticfiles")),
		StaticDirs:  parseListEnv("STATICFILES_DIRS", filepath.Join(baseDir, "static")),
		MediaURL:    withSlashes(getEnv("MEDIA_URL", defaultMediaURL)),
		MediaRoot:   getEnv("MEDIA_ROOT", filepath.Join(baseDir, "media")),
		MaxUploadSz: int64(maxUpload),
	}

	cfg.Storage = StorageConfig{
		AccessKeyID:     os.Getenv("BUCKETEER_AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BUCKETEER_AWS_SECRET_ACCESS_KEY"),
		Region:          os.Getenv("BUCKETEER_AWS_REGION"),
		BucketName:      os.Getenv("BUCKETEER_BUCKET_NAME"),
		EndpointURL:     os.Getenv("AWS_S3_ENDPOINT_URL"),
		GCSBucketName:   os.Getenv("GCS_BUCKET_NAME"),
	}
	cfg.Storage.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_PROVIDER")))
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = StorageLocal
		if cfg.Storage.BucketName != "" {
			cfg.Storage.Provider = StorageS3
		}
	}

	port, err := parseIntEnv("EMAIL_PORT", defaultEmailPort)
	if err != nil {
		return nil, err
	}
	cfg.Email = EmailConfig{
		Host:        getEnv("EMAIL_HOST", defaultEmailHost),
		Port:        port,
		UseTLS:      parseBoolEnv("EMAIL_USE_TLS", defaultEmailUseTLS),
		User:        os.Getenv("EMAIL_HOST_USER"),
		Password:    os.Getenv("EMAIL_HOST_PASSWORD"),
		DefaultFrom: getEnv("DEFAULT_FROM_EMAIL", defaultFromEmail),
		Admins:      parseListEnv("ADMINS", ""),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabaseDSN returns the SQLite path in debug-db mode and a postgres:// URL otherwise.
func (c *Config) DatabaseDSN() string {
	if c.Database.UseDebugDB {
		return c.Database.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

func validateConfig(cfg *Config) error {
	if errs := validator.Validate(cfg); errs != nil {
		return fmt.Errorf("invalid config: %v", errs)
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if len(cfg.AllowedHosts) == 0 && !cfg.Debug {
		return fmt.Errorf("ALLOWED_HOSTS must not be empty when not in debug mode")
	}

	switch cfg.Storage.Provider {
	case StorageS3:
		if cfg.Storage.BucketName == "" {
			return fmt.Errorf("BUCKETEER_BUCKET_NAME must be set for s3 storage")
		}
	case StorageGCS:
		if cfg.Storage.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME must be set for gcs storage")
		}
	}

	if !cfg.Database.UseDebugDB {
		if cfg.Database.Name == "" || cfg.Database.Host == "" || cfg.Database.User == "" {
			return fmt.Errorf("DBNAME, DBHOST and DBUSER must be set when USEDEBUGDB is off")
		}
	}

	if !cfg.Debug && isEmptyOrDefault(cfg.SecretKey, defaultSecretKey) {
		return fmt.Errorf("in production SECRET_KEY must be set and not default")
	}

	return nil
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func withSlashes(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name, fallback string) []string {
	raw := getEnv(name, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
