package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Campus   CampusConfig
	Schedule ScheduleConfig
	Reports  ReportsConfig
	Exports  ExportsConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CampusConfig pins the geofence: reference coordinate, radius and the
// canonical timezone every submission is classified in. Comparing arrival
// instants against window boundaries in mixed timezones misclassifies
// every student, so the location is resolved once here and shared.
type CampusConfig struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Timezone  string
	Location  *time.Location
}

// ScheduleConfig holds the three time-of-day boundaries as seconds since
// midnight. Invariant: Start <= EndOnTime <= EndLate, same day.
type ScheduleConfig struct {
	Start     int
	EndOnTime int
	EndLate   int
}

// ReportsConfig tunes report caching.
type ReportsConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig controls asynchronous report export generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	RetentionTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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
		// A missing .env file is fine: defaults plus process env vars
		// fully configure the service. With SetConfigFile viper surfaces
		// the raw *fs.PathError, not ConfigFileNotFoundError.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	campusTZ := v.GetString("CAMPUS_TIMEZONE")
	location, err := time.LoadLocation(campusTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid CAMPUS_TIMEZONE %q: %w", campusTZ, err)
	}
	cfg.Campus = CampusConfig{
		Latitude:  v.GetFloat64("CAMPUS_LATITUDE"),
		Longitude: v.GetFloat64("CAMPUS_LONGITUDE"),
		RadiusKm:  v.GetFloat64("CAMPUS_RADIUS_KM"),
		Timezone:  campusTZ,
		Location:  location,
	}
	if cfg.Campus.RadiusKm <= 0 {
		return nil, fmt.Errorf("CAMPUS_RADIUS_KM must be positive, got %v", cfg.Campus.RadiusKm)
	}

	start, err := parseClock(v.GetString("ATTENDANCE_START"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_START: %w", err)
	}
	endOnTime, err := parseClock(v.GetString("ATTENDANCE_END_ON_TIME"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_END_ON_TIME: %w", err)
	}
	endLate, err := parseClock(v.GetString("ATTENDANCE_END_LATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_END_LATE: %w", err)
	}
	if start > endOnTime || endOnTime > endLate {
		return nil, fmt.Errorf("attendance windows must satisfy start <= end_on_time <= end_late")
	}
	cfg.Schedule = ScheduleConfig{Start: start, EndOnTime: endOnTime, EndLate: endLate}

	cfg.Reports = ReportsConfig{
		CacheTTL: parseDuration(v.GetString("REPORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		RetentionTTL:      parseDuration(v.GetString("EXPORTS_RETENTION_TTL"), 7*24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_presence")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "campus-presence-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CAMPUS_LATITUDE", -12.0432)
	v.SetDefault("CAMPUS_LONGITUDE", -77.0282)
	v.SetDefault("CAMPUS_RADIUS_KM", 0.5)
	v.SetDefault("CAMPUS_TIMEZONE", "UTC")

	v.SetDefault("ATTENDANCE_START", "18:00")
	v.SetDefault("ATTENDANCE_END_ON_TIME", "18:30")
	v.SetDefault("ATTENDANCE_END_LATE", "19:30")

	v.SetDefault("REPORT_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

// parseClock accepts "HH:MM" or "HH:MM:SS" and returns seconds since midnight.
func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM or HH:MM:SS, got %q", raw)
	}
	values := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("expected HH:MM or HH:MM:SS, got %q", raw)
		}
		values[i] = n
	}
	hour, minute, second := values[0], values[1], values[2]
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("clock value out of range: %q", raw)
	}
	return hour*3600 + minute*60 + second, nil
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
