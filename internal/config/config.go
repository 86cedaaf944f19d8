package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageGCS    = "gcs"
	StorageMinio  = "minio"
	StorageMemory = "memory"

	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type ServerConf struct {
	Port            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

type FirebaseConf struct {
	ProjectID string
	// ServiceAccountJSON is the inline service account key, if any.
	ServiceAccountJSON string
	StorageBucket      string
}

type AuthConf struct {
	Provider  string
	JWTSecret string
	Allowlist string
}

type MinioConf struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RedisConf struct {
	Addr     string
	Password string
	DB       int
}

type MediaConf struct {
	ReadURLTTL     time.Duration
	WriteURLTTL    time.Duration
	MaxUploadBytes int64
}

type LogConf struct {
	Development bool
	Level       string
}

type Config struct {
	Server         ServerConf
	Firebase       FirebaseConf
	Auth           AuthConf
	StorageBackend string
	Minio          MinioConf
	StoreBackend   string
	DatabaseURL    string
	Redis          RedisConf
	Media          MediaConf
	ContentDir     string
	InquiryEmail   string
	Log            LogConf
}

// aliases lists the environment names each key is read from, first match wins.
var aliases = map[string][]string{
	"port":                     {"PORT"},
	"shutdown_timeout":         {"SHUTDOWN_TIMEOUT"},
	"request_timeout":          {"REQUEST_TIMEOUT"},
	"firebase_project_id":      {"FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"},
	"firebase_service_account": {"FIREBASE_SERVICE_ACCOUNT", "FIREBASE_ADMIN_SDK_JSON"},
	"firebase_storage_bucket":  {"FIREBASE_STORAGE_BUCKET", "NEXT_PUBLIC_FIREBASE_STORAGE_BUCKET"},
	"owner_email_allowlist":    {"OWNER_EMAIL_ALLOWLIST"},
	"auth_provider":            {"AUTH_PROVIDER"},
	"auth_jwt_secret":          {"AUTH_JWT_SECRET"},
	"storage_backend":          {"STORAGE_BACKEND"},
	"minio_endpoint":           {"MINIO_ENDPOINT"},
	"minio_access_key":         {"MINIO_ACCESS_KEY"},
	"minio_secret_key":         {"MINIO_SECRET_KEY"},
	"minio_bucket":             {"MINIO_BUCKET"},
	"minio_use_ssl":            {"MINIO_USE_SSL"},
	"store_backend":            {"STORE_BACKEND"},
	"database_url":             {"DATABASE_URL"},
	"redis_addr":               {"REDIS_ADDR"},
	"redis_password":           {"REDIS_PASSWORD"},
	"redis_db":                 {"REDIS_DB"},
	"media_read_url_ttl":       {"MEDIA_READ_URL_TTL"},
	"media_write_url_ttl":      {"MEDIA_WRITE_URL_TTL"},
	"media_max_upload_bytes":   {"MEDIA_MAX_UPLOAD_BYTES"},
	"content_dir":              {"CONTENT_DIR"},
	"inquiry_email":            {"INQUIRY_EMAIL"},
	"log_development":          {"LOG_DEVELOPMENT"},
	"log_level":                {"LOG_LEVEL"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("auth_provider", AuthFirebase)
	v.SetDefault("storage_backend", StorageGCS)
	v.SetDefault("store_backend", StoreFirestore)
	v.SetDefault("minio_bucket", "property-media")
	v.SetDefault("media_read_url_ttl", 24*time.Hour)
	v.SetDefault("media_write_url_ttl", 15*time.Minute)
	v.SetDefault("media_max_upload_bytes", 25<<20)
	v.SetDefault("content_dir", "content/properties")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the environment. Variables in envFile are
// loaded first when the file exists; they never override the real
// environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	defaults(v)
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConf{
			Port:            v.GetString("port"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
			RequestTimeout:  v.GetDuration("request_timeout"),
		},
		Firebase: FirebaseConf{
			ProjectID:          strings.TrimSpace(v.GetString("firebase_project_id")),
			ServiceAccountJSON: strings.TrimSpace(v.GetString("firebase_service_account")),
			StorageBucket:      strings.TrimSpace(v.GetString("firebase_storage_bucket")),
		},
		Auth: AuthConf{
			Provider:  strings.ToLower(v.GetString("auth_provider")),
			JWTSecret: v.GetString("auth_jwt_secret"),
			Allowlist: v.GetString("owner_email_allowlist"),
		},
		StorageBackend: strings.ToLower(v.GetString("storage_backend")),
		Minio: MinioConf{
			Endpoint:  v.GetString("minio_endpoint"),
			AccessKey: v.GetString("minio_access_key"),
			SecretKey: v.GetString("minio_secret_key"),
			Bucket:    v.GetString("minio_bucket"),
			UseSSL:    v.GetBool("minio_use_ssl"),
		},
		StoreBackend: strings.ToLower(v.GetString("store_backend")),
		DatabaseURL:  v.GetString("database_url"),
		Redis: RedisConf{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Media: MediaConf{
			ReadURLTTL:     v.GetDuration("media_read_url_ttl"),
			WriteURLTTL:    v.GetDuration("media_write_url_ttl"),
			MaxUploadBytes: v.GetInt64("media_max_upload_bytes"),
		},
		ContentDir:   v.GetString("content_dir"),
		InquiryEmail: v.GetString("inquiry_email"),
		Log: LogConf{
			Development: v.GetBool("log_development"),
			Level:       v.GetString("log_level"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrMissingSetting = errors.New("missing setting")
)

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageGCS, StorageMemory:
	case StorageMinio:
		if c.Minio.Endpoint == "" {
			return wrap(ErrMissingSetting, "MINIO_ENDPOINT")
		}
	default:
		return wrap(ErrUnknownBackend, "STORAGE_BACKEND="+c.StorageBackend)
	}
	switch c.StoreBackend {
	case StoreFirestore, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return wrap(ErrMissingSetting, "DATABASE_URL")
		}
	default:
		return wrap(ErrUnknownBackend, "STORE_BACKEND="+c.StoreBackend)
	}
	switch c.Auth.Provider {
	case AuthFirebase:
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return wrap(ErrMissingSetting, "AUTH_JWT_SECRET")
		}
	default:
		return wrap(ErrUnknownBackend, "AUTH_PROVIDER="+c.Auth.Provider)
	}
	return nil
}

func wrap(err error, detail string) error {
	return fmt.Errorf("%w: %s", err, detail)
}

// UsesFirebase reports whether any component needs the Firebase app.
func (c *Config) UsesFirebase() bool {
	return c.StorageBackend == StorageGCS || c.StoreBackend == StoreFirestore || c.Auth.Provider == AuthFirebase
}
