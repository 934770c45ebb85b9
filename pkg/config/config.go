package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	AppName   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Credentials   CredentialsConfig
	Notifications NotificationsConfig
	Media         MediaConfig
	Stats         StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CredentialsConfig tunes generated account identifiers and passwords.
type CredentialsConfig struct {
	LecturerPrefix string
	AdminPrefix    string
	MaxAttempts    int
	PasswordLength int
	LoginURL       string
}

// NotificationsConfig configures outbound email/SMS delivery and the outbox relay.
type NotificationsConfig struct {
	SendGridKey   string
	FromEmail     string
	FromName      string
	SMSEnabled    bool
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	Workers       int
	BufferSize    int
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RelayInterval time.Duration
	RelayBatch    int
	RelayLease    time.Duration
}

// MediaConfig controls profile picture storage.
type MediaConfig struct {
	StorageDir    string
	MaxBytes      int64
	ThumbnailSize int
	URLSecret     string
	URLTTL        time.Duration
}

// StatsConfig controls account statistics caching.
type StatsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AppName = v.GetString("APP_NAME")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Credentials = CredentialsConfig{
		LecturerPrefix: strings.ToUpper(v.GetString("LECTURER_ID_PREFIX")),
		AdminPrefix:    strings.ToUpper(v.GetString("ADMIN_ID_PREFIX")),
		MaxAttempts:    v.GetInt("ID_MAX_ATTEMPTS"),
		PasswordLength: v.GetInt("GENERATED_PASSWORD_LENGTH"),
		LoginURL:       v.GetString("APP_LOGIN_URL"),
	}

	cfg.Notifications = NotificationsConfig{
		SendGridKey:   v.GetString("SENDGRID_API_KEY"),
		FromEmail:     v.GetString("EMAIL_FROM_ADDRESS"),
		FromName:      v.GetString("EMAIL_FROM_NAME"),
		SMSEnabled:    v.GetBool("ENABLE_SMS"),
		TwilioSID:     v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioToken:   v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    v.GetString("TWILIO_PHONE_NUMBER"),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		BufferSize:    v.GetInt("NOTIFY_BUFFER_SIZE"),
		MaxAttempts:   v.GetInt("NOTIFY_MAX_ATTEMPTS"),
		BaseBackoff:   parseDuration(v.GetString("NOTIFY_BASE_BACKOFF"), 5*time.Second),
		MaxBackoff:    parseDuration(v.GetString("NOTIFY_MAX_BACKOFF"), 10*time.Minute),
		RelayInterval: parseDuration(v.GetString("NOTIFY_RELAY_INTERVAL"), 2*time.Second),
		RelayBatch:    v.GetInt("NOTIFY_RELAY_BATCH"),
		RelayLease:    parseDuration(v.GetString("NOTIFY_RELAY_LEASE"), time.Minute),
	}

	maxPicture := v.GetInt64("MEDIA_MAX_BYTES")
	if maxPicture <= 0 {
		maxPicture = 5 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		StorageDir:    v.GetString("MEDIA_STORAGE_DIR"),
		MaxBytes:      maxPicture,
		ThumbnailSize: v.GetInt("MEDIA_THUMBNAIL_SIZE"),
		URLSecret:     v.GetString("MEDIA_URL_SECRET"),
		URLTTL:        parseDuration(v.GetString("MEDIA_URL_TTL"), time.Hour),
	}
	if cfg.Media.URLSecret == "" {
		cfg.Media.URLSecret = cfg.JWT.Secret
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_NAME", "The Genius Academy")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "genius_academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "genius-academy")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LECTURER_ID_PREFIX", "TGA")
	v.SetDefault("ADMIN_ID_PREFIX", "ADM")
	v.SetDefault("ID_MAX_ATTEMPTS", 20)
	v.SetDefault("GENERATED_PASSWORD_LENGTH", 10)

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@geniusacademy.local")
	v.SetDefault("EMAIL_FROM_NAME", "The Genius Academy")
	v.SetDefault("ENABLE_SMS", false)
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_PHONE_NUMBER", "")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 6)
	v.SetDefault("NOTIFY_BASE_BACKOFF", "5s")
	v.SetDefault("NOTIFY_MAX_BACKOFF", "10m")
	v.SetDefault("NOTIFY_RELAY_INTERVAL", "2s")
	v.SetDefault("NOTIFY_RELAY_BATCH", 25)
	v.SetDefault("NOTIFY_RELAY_LEASE", "1m")

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_MAX_BYTES", 5*1024*1024)
	v.SetDefault("MEDIA_THUMBNAIL_SIZE", 300)
	v.SetDefault("MEDIA_URL_SECRET", "")
	v.SetDefault("MEDIA_URL_TTL", "1h")

	v.SetDefault("STATS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
