package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage and overlay backend names.
const (
	BackendFilesystem = "filesystem"
	BackendMinIO      = "minio"
	BackendJSON       = "json"
	BackendPostgres   = "postgres"
)

// Config aggregates runtime configuration for the Practice Room server.
type Config struct {
	Server     ServerConfig
	Session    SessionConfig
	Identity   IdentityConfig
	Recordings RecordingsConfig
	Postgres   PostgresConfig
	MinIO      MinIOConfig
	Metrics    MetricsConfig
	Pages      PagesConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// IdentityConfig points at the identity provider's signing keys. An empty
// JWKSURL disables server-side verification of the login payload.
type IdentityConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
	ClientTimeout   time.Duration
	Leeway          time.Duration
}

// Enabled reports whether identity tokens are verified at login.
func (i IdentityConfig) Enabled() bool {
	return strings.TrimSpace(i.JWKSURL) != ""
}

// RecordingsConfig describes where recordings and their metadata live.
type RecordingsConfig struct {
	UploadDir         string
	MaxUploadBytes    int64
	StorageBackend    string
	OverlayBackend    string
	AllowedExtensions []string
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	// PresignTTL is the lifetime of direct download links. Zero streams
	// recordings through the server instead.
	PresignTTL time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// PagesConfig holds what the server-rendered pages need.
type PagesConfig struct {
	StaticDir string
	// ClientConfig is handed to templates so the browser can talk to the
	// identity provider directly.
	ClientConfig map[string]string
}

var defaultExtensions = []string{"webm", "wav", "mp3", "ogg", "m4a", "aac", "flac", "opus"}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("PRACTICEROOM_HOST", "0.0.0.0"),
			Port:         getInt("PRACTICEROOM_PORT", 5000),
			ReadTimeout:  getDuration("PRACTICEROOM_READ_TIMEOUT", 60*time.Second),
			WriteTimeout: getDuration("PRACTICEROOM_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDuration("PRACTICEROOM_IDLE_TIMEOUT", 120*time.Second),
		},
		Session: SessionConfig{
			Secret:       getString("SECRET_KEY", ""),
			TTL:          getDuration("SESSION_TTL", 24*time.Hour),
			CookieName:   getString("SESSION_COOKIE_NAME", "practiceroom_session"),
			CookieSecure: getBool("SESSION_COOKIE_SECURE", false),
		},
		Identity: IdentityConfig{
			JWKSURL:         getString("IDP_JWKS_URL", ""),
			Issuer:          getString("IDP_ISSUER", ""),
			Audience:        getString("IDP_AUDIENCE", ""),
			RefreshInterval: getDuration("IDP_JWKS_REFRESH_INTERVAL", time.Hour),
			ClientTimeout:   getDuration("IDP_JWKS_CLIENT_TIMEOUT", 10*time.Second),
			Leeway:          getDuration("IDP_JWT_LEEWAY", 30*time.Second),
		},
		Recordings: RecordingsConfig{
			UploadDir:         getString("UPLOAD_DIR", "recordings"),
			MaxUploadBytes:    getInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
			StorageBackend:    strings.ToLower(getString("STORAGE_BACKEND", BackendFilesystem)),
			OverlayBackend:    strings.ToLower(getString("OVERLAY_BACKEND", BackendJSON)),
			AllowedExtensions: getList("ALLOWED_EXTENSIONS", defaultExtensions),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "practiceroom"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "practiceroom"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "practiceroom"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "recordings"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			PresignTTL:      getDuration("MINIO_PRESIGN_TTL", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("PRACTICEROOM_METRICS_PATH", "/metrics"),
		},
		Pages: PagesConfig{
			StaticDir:    getString("STATIC_DIR", ""),
			ClientConfig: loadClientConfig(),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("SECRET_KEY must be set")
	}
	switch c.Recordings.StorageBackend {
	case BackendFilesystem, BackendMinIO:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Recordings.StorageBackend)
	}
	switch c.Recordings.OverlayBackend {
	case BackendJSON, BackendPostgres:
	default:
		return fmt.Errorf("unsupported OVERLAY_BACKEND %q", c.Recordings.OverlayBackend)
	}
	if c.Recordings.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if len(c.Recordings.AllowedExtensions) == 0 {
		return errors.New("ALLOWED_EXTENSIONS must not be empty")
	}
	return nil
}

// UsesPostgres reports whether any component needs a database pool.
func (c Config) UsesPostgres() bool {
	return c.Recordings.OverlayBackend == BackendPostgres
}

// UsesMinIO reports whether recordings are kept in object storage.
func (c Config) UsesMinIO() bool {
	return c.Recordings.StorageBackend == BackendMinIO
}

func loadClientConfig() map[string]string {
	keys := []string{
		"IDP_API_KEY",
		"IDP_AUTH_DOMAIN",
		"IDP_PROJECT_ID",
		"IDP_STORAGE_BUCKET",
		"IDP_MESSAGING_SENDER_ID",
		"IDP_APP_ID",
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		out[key] = getString(key, "")
	}
	return out
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
