package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort  int
	Database    DatabaseConfig
	Auth        AuthConfig
	Email       EmailConfig
	Credentials CredentialsConfig
	Storage     StorageConfig
	MQ          MQConfig
	Log         LogConfig
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	MaxOpenConns int
}

// AuthConfig controls token signing and the session cookie.
type AuthConfig struct {
	JWTSecret     string
	SessionTTL    time.Duration
	CookieSecure  bool
	Timezone      string
	AdminEmail    string
	AdminPassword string
}

type EmailConfig struct {
	Transport        string
	From             string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SendgridAPIKey   string
	AdminNotifyEmail string
	AppURL           string
}

type CredentialsConfig struct {
	Backend         string
	ProjectID       string
	CredentialsFile string
}

type StorageConfig struct {
	Backend   string
	VideoRoot string
	Minio     MinioConfig
	GCS       GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	v := newViper()

	dbConfig := DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         firstNonEmpty(v.GetString("DB_HOST"), v.GetString("PGHOST"), "localhost"),
		Port:         firstPositive(v.GetInt("DB_PORT"), v.GetInt("PGPORT"), 5432),
		User:         firstNonEmpty(v.GetString("DB_USER"), v.GetString("PGUSER"), "classroll"),
		Password:     firstNonEmpty(v.GetString("DB_PASSWORD"), v.GetString("PGPASSWORD")),
		DBName:       firstNonEmpty(v.GetString("DB_NAME"), v.GetString("PGDATABASE"), "classroll"),
		UseSSL:       v.GetBool("DB_USE_SSL"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
	}

	return Config{
		ServerPort: v.GetInt("SERVER_PORT"),
		Database:   dbConfig,
		Auth: AuthConfig{
			JWTSecret:     strings.TrimSpace(v.GetString("JWT_SECRET")),
			SessionTTL:    v.GetDuration("SESSION_TTL"),
			CookieSecure:  v.GetBool("COOKIE_SECURE"),
			Timezone:      v.GetString("TIMEZONE"),
			AdminEmail:    strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		Email: EmailConfig{
			Transport:        strings.ToLower(v.GetString("EMAIL_TRANSPORT")),
			From:             v.GetString("EMAIL_FROM"),
			SMTPHost:         v.GetString("SMTP_HOST"),
			SMTPPort:         v.GetInt("SMTP_PORT"),
			SMTPUser:         v.GetString("SMTP_USER"),
			SMTPPassword:     v.GetString("SMTP_PASSWORD"),
			SendgridAPIKey:   v.GetString("SENDGRID_API_KEY"),
			AdminNotifyEmail: v.GetString("ADMIN_NOTIFY_EMAIL"),
			AppURL:           v.GetString("APP_URL"),
		},
		Credentials: CredentialsConfig{
			Backend:         strings.ToLower(v.GetString("CREDENTIALS_BACKEND")),
			ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("STORAGE_BACKEND")),
			VideoRoot: v.GetString("VIDEO_ROOT"),
			Minio: MinioConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
			GCS: GCSConfig{
				Bucket:          v.GetString("GCS_BUCKET"),
				ProjectID:       v.GetString("GCS_PROJECT_ID"),
				CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(v.GetString("MQ_BACKEND")),
			Channel: v.GetString("MQ_CHANNEL"),
			RabbitMQ: RabbitMQConfig{
				URL:             v.GetString("RABBITMQ_URL"),
				QueueDurable:    v.GetBool("RABBITMQ_QUEUE_DURABLE"),
				QueueAutoDelete: v.GetBool("RABBITMQ_QUEUE_AUTO_DELETE"),
				PrefetchCount:   v.GetInt("RABBITMQ_PREFETCH"),
			},
			PubSub: PubSubConfig{
				ProjectID:          v.GetString("PUBSUB_PROJECT_ID"),
				CredentialsFile:    v.GetString("PUBSUB_CREDENTIALS_FILE"),
				SubscriptionSuffix: v.GetString("PUBSUB_SUBSCRIPTION_SUFFIX"),
			},
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
	}
}

// newViper resolves keys from the environment first and then from the
// optional file named by CLASSROLL_CONFIG.
func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("EMAIL_TRANSPORT", "log")
	v.SetDefault("EMAIL_FROM", "no-reply@classroll.local")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("CREDENTIALS_BACKEND", "memory")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("VIDEO_ROOT", "videos")
	v.SetDefault("MQ_BACKEND", "none")
	v.SetDefault("MQ_CHANNEL", "notifications")
	v.SetDefault("RABBITMQ_QUEUE_DURABLE", true)
	v.SetDefault("RABBITMQ_PREFETCH", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	if path := strings.TrimSpace(os.Getenv("CLASSROLL_CONFIG")); path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
