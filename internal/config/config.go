package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	DBAutoMigrate         bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AMQPURL               string
	AuthSecret            string
	AccessTokenTTLMinutes int
	ReportCacheTTLSeconds int
	CartTTLMinutes        int
	VerifyTokenTTLHours   int
	StoreSettingsFile     string
	PublicBaseURL         string
	ResendAPIKey          string
	MailFrom              string
	StoreTimezone         string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	autoMigrate, _ := strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "false"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DBAutoMigrate:         autoMigrate,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AMQPURL:               strings.TrimSpace(os.Getenv("AMQP_URL")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		ReportCacheTTLSeconds: getPositiveInt("REPORT_CACHE_TTL_SECONDS", 20),
		CartTTLMinutes:        getPositiveInt("CART_TTL_MINUTES", 1440),
		VerifyTokenTTLHours:   getPositiveInt("VERIFY_TOKEN_TTL_HOURS", 24),
		StoreSettingsFile:     strings.TrimSpace(os.Getenv("STORE_SETTINGS_FILE")),
		PublicBaseURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"),
		ResendAPIKey:          strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailFrom:              getEnv("MAIL_FROM", "noreply@cookiecraze.com"),
		StoreTimezone:         getEnv("STORE_TIMEZONE", "Asia/Manila"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves StoreTimezone, falling back to UTC+8 when the tz
// database is unavailable.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StoreTimezone)
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
