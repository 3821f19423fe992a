package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverPebble   = "pebble"
)

type Config struct {
	AppPort        string   `yaml:"app_port"`
	AppMode        string   `yaml:"app_mode"`
	LogMode        string   `yaml:"log_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	StoreDriver    string        `yaml:"store_driver"`
	StoreTimeout   time.Duration `yaml:"store_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	PageSize       int           `yaml:"page_size"`

	DBHost     string `yaml:"db_host"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPort     string `yaml:"db_port"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	PebblePath string `yaml:"pebble_path"`

	// BroadcastRedis fans room events out through Redis pub/sub so that every
	// instance's websocket hub receives them.
	BroadcastRedis bool `yaml:"broadcast_redis"`

	JWTSecret string `yaml:"jwt_secret"`

	SchedulerEnabled bool   `yaml:"scheduler_enabled"`
	SchedulerCron    string `yaml:"scheduler_cron"`

	WSEventsPerSecond float64 `yaml:"ws_events_per_second"`
	WSEventBurst      int     `yaml:"ws_event_burst"`
}

func defaults() *Config {
	return &Config{
		AppPort:           "8080",
		AppMode:           "debug",
		LogMode:           "development",
		AllowedOrigins:    []string{"http://localhost:3000"},
		StoreDriver:       StoreDriverRedis,
		StoreTimeout:      5 * time.Second,
		PublishTimeout:    2 * time.Second,
		PageSize:          50,
		DBHost:            "localhost",
		DBUser:            "postgres",
		DBPassword:        "postgres",
		DBName:            "chatify",
		DBPort:            "5432",
		RedisHost:         "localhost",
		RedisPort:         "6379",
		PebblePath:        "data/chatify",
		JWTSecret:         "change-me",
		SchedulerEnabled:  true,
		SchedulerCron:     "* * * * *",
		WSEventsPerSecond: 10,
		WSEventBurst:      20,
	}
}

// LoadConfig reads .env, an optional YAML file named by CONFIG_FILE, and finally
// the process environment. Later sources win.
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.AppMode = getEnv("APP_MODE", c.AppMode)
	c.LogMode = getEnv("LOG_MODE", c.LogMode)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.StoreTimeout = getEnvAsDuration("STORE_TIMEOUT", c.StoreTimeout)
	c.PublishTimeout = getEnvAsDuration("PUBLISH_TIMEOUT", c.PublishTimeout)
	c.PageSize = getEnvAsInt("PAGE_SIZE", c.PageSize)

	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBPort = getEnv("DB_PORT", c.DBPort)

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvAsInt("REDIS_DB", c.RedisDB)

	c.PebblePath = getEnv("PEBBLE_PATH", c.PebblePath)
	c.BroadcastRedis = getEnvAsBool("BROADCAST_REDIS", c.BroadcastRedis)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	c.SchedulerEnabled = getEnvAsBool("SCHEDULER_ENABLED", c.SchedulerEnabled)
	c.SchedulerCron = getEnv("SCHEDULER_CRON", c.SchedulerCron)

	c.WSEventsPerSecond = getEnvAsFloat("WS_EVENTS_PER_SECOND", c.WSEventsPerSecond)
	c.WSEventBurst = getEnvAsInt("WS_EVENT_BURST", c.WSEventBurst)
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// NeedsRedis reports whether any component has to talk to Redis.
func (c *Config) NeedsRedis() bool {
	return c.StoreDriver == StoreDriverRedis || c.BroadcastRedis
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
