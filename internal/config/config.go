package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	MongoURI           string
	MongoDB            string
	ServerAddr         string
	FrontendOrigin     string
	RateLimitIntake    int
	RateLimitWindowSec int
	RedisURL           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheTTLSeconds    int
	AdminAPIKey        string
	JWTSecret          string
	AccessTTLMinutes   int
	RefreshTTLMinutes  int
	CookieSecure       bool
	Timezone           *time.Location
	ResendAPIKey       string
	EmailFrom          string
	EmailFromName      string
	NotifyEmail        string
	MongoChangeStreams bool
	NotifyTTLSeconds   int
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "Europe/Paris"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/fluxior")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "fluxior"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigin:     getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		RateLimitIntake:    getEnvInt("RATE_LIMIT_INTAKE", 5),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:   getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes:  getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		Timezone:           loc,
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		EmailFrom:          getEnv("EMAIL_FROM", "noreply@fluxior.fr"),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Fluxior"),
		NotifyEmail:        getEnv("NOTIFY_EMAIL", ""),
		MongoChangeStreams: getEnvBool("MONGO_CHANGE_STREAMS", false),
		NotifyTTLSeconds:   getEnvInt("NOTIFY_TTL_SECONDS", 4),
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) NotifyTTL() time.Duration {
	return time.Duration(c.NotifyTTLSeconds) * time.Second
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// Only the first path segment names the database.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
