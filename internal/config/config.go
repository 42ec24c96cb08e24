package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Repeat-hold policies applied when an actor who already holds seats on
// a showtime requests a hold again.
const (
	RepeatExtend = "extend" // same seat set: renew the existing hold
	RepeatReject = "reject" // always reject while a hold is active
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Engine knobs (hold TTL, max
// seats, pricing rates) are configuration rather than constants so
// operators can tune them per deployment.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret     string // secret used to verify access tokens
	WebhookSecret string // shared secret for the payment result webhook

	HoldTTL          time.Duration // exclusive hold window
	MaxSeatsPerHold  int           // upper bound on seats in one hold request
	HoldRepeatPolicy string        // extend or reject
	ReaperInterval   time.Duration // background expiry sweep period
	CountdownTick    time.Duration // hold-countdown broadcast period

	TaxPercent      int // tax applied to the discounted amount
	PointValueCents int // discount value of one loyalty point
	EarnPerCents    int // cents of confirmed spend per point earned; 0 disables earning
}

// Load reads configuration from environment variables.  Required
// variables are enforced by must() and missing values cause the
// program to exit with a fatal log message; engine knobs have defaults.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:     must("JWT_SECRET"),
		WebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),

		HoldTTL:          time.Duration(intOr("HOLD_TTL_SECONDS", 300)) * time.Second,
		MaxSeatsPerHold:  intOr("MAX_SEATS_PER_HOLD", 8),
		HoldRepeatPolicy: strOr("HOLD_REPEAT_POLICY", RepeatExtend),
		ReaperInterval:   time.Duration(intOr("REAPER_INTERVAL_SECONDS", 15)) * time.Second,
		CountdownTick:    time.Duration(intOr("COUNTDOWN_TICK_SECONDS", 10)) * time.Second,

		TaxPercent:      intOr("TAX_PERCENT", 0),
		PointValueCents: intOr("POINT_VALUE_CENTS", 100),
		EarnPerCents:    intOr("POINTS_EARN_PER_CENTS", 0),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// strOr returns the variable's value or the default when unset.
func strOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intOr returns the variable parsed as int or the default when unset.
// A malformed value is fatal rather than silently defaulted.
func intOr(key string, def int) int {
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
