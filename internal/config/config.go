package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	// Token issuing. Access and refresh tokens are signed with distinct secrets.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// Media storage (S3-compatible).
	MediaEndpoint      string
	MediaRegion        string
	MediaBucket        string
	MediaAccessKey     string
	MediaSecretKey     string
	MediaPublicBaseURL string
	MediaUploadTimeout time.Duration
	UploadTempDir      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string

	CookieDomain string

	OTLPEndpoint string

	AdminEmail    string
	AdminUsername string
	AdminName     string
	AdminPassword string
}

func Load() Config {
	// .env.local wins over .env; both are optional in deployed environments.
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", "dev-access-secret"),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		MediaEndpoint:      getEnv("MEDIA_S3_ENDPOINT", ""),
		MediaRegion:        getEnv("MEDIA_S3_REGION", "us-east-1"),
		MediaBucket:        getEnv("MEDIA_S3_BUCKET", "accounthub-media"),
		MediaAccessKey:     getEnv("MEDIA_S3_ACCESS_KEY", ""),
		MediaSecretKey:     getEnv("MEDIA_S3_SECRET_KEY", ""),
		MediaPublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		MediaUploadTimeout: getEnvDuration("MEDIA_UPLOAD_TIMEOUT", 20*time.Second),
		UploadTempDir:      getEnv("UPLOAD_TEMP_DIR", os.TempDir()),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		CookieDomain: getEnv("COOKIE_DOMAIN", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "accounthub")
	pass := getEnv("DB_PASSWORD", "accounthub")
	name := getEnv("DB_NAME", "accounthub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return d
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
