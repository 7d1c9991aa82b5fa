package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. Values come from the environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	Addr       string
	DBPath     string
	JWTSecret  string
	BcryptCost int

	SMS SMS
}

// SMS holds the Naver Cloud SENS credentials. Leaving them empty switches
// the notifier to log-only mode, which is what dev and tests want.
type SMS struct {
	ServiceID string
	AccessKey string
	SecretKey string
	From      string
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:       getEnv("ADDR", ":9000"),
		DBPath:     getEnv("DB_PATH", "enroll.db"),
		JWTSecret:  must("JWT_SECRET"),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),
		SMS: SMS{
			ServiceID: os.Getenv("SENS_SERVICE_ID"),
			AccessKey: os.Getenv("SENS_ACCESS_KEY"),
			SecretKey: os.Getenv("SENS_SECRET_KEY"),
			From:      os.Getenv("SENS_SENDER_PHONE"),
		},
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
