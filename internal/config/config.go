package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures every tunable of the API process. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisURL           string
	RideUpdatesChannel string

	AMQPURL      string
	AMQPExchange string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string
	LogLevel  string

	SearchWindow         time.Duration
	RecurringHorizonDays int
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		ReadTimeout:          10 * time.Second,
		WriteTimeout:         0, // SSE streams stay open
		ShutdownTimeout:      15 * time.Second,
		CORSOrigins:          []string{"*"},
		DBPort:               "5432",
		DBSSLMode:            "disable",
		DBMaxOpenConns:       100,
		DBMaxIdleConns:       10,
		RideUpdatesChannel:   "ride:updates",
		AMQPExchange:         "ride.events",
		KafkaTopic:           "ride-events",
		LogLevel:             "info",
		SearchWindow:         30 * time.Minute,
		RecurringHorizonDays: 14,
	}
}

// Load reads .env if present, then the environment. All parse problems are
// returned together.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	var errs []error

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}

	cfg.DBHost = strings.TrimSpace(os.Getenv("DB_HOST"))
	setStringFromEnv(&cfg.DBPort, "DB_PORT")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	setStringFromEnv(&cfg.DBSSLMode, "DB_SSLMODE")
	setIntFromEnv(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS", &errs)
	setIntFromEnv(&cfg.DBMaxIdleConns, "DB_MAX_IDLE_CONNS", &errs)

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	setStringFromEnv(&cfg.RideUpdatesChannel, "RIDE_UPDATES_CHANNEL")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.AMQPExchange, "AMQP_EXCHANGE")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	setDurationFromEnv(&cfg.SearchWindow, "SEARCH_WINDOW", &errs)
	setIntFromEnv(&cfg.RecurringHorizonDays, "RECURRING_HORIZON_DAYS", &errs)

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.SearchWindow <= 0 {
		errs = append(errs, errors.New("SEARCH_WINDOW must be > 0"))
	}
	if cfg.RecurringHorizonDays <= 0 {
		errs = append(errs, errors.New("RECURRING_HORIZON_DAYS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// UseDatabase reports whether Postgres is configured. Without it the process
// runs on in-memory stores.
func (c Config) UseDatabase() bool {
	return c.DBHost != ""
}

// DSN is the gorm/pgx connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
