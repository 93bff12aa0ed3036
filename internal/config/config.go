package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBDriver   string

	AppPort string
	AppEnv  string

	JWTSecret  string
	CORSOrigin string

	RateLimitRPS   float64
	RateLimitBurst int

	RabbitMQURL   string
	KitchenConfig string
}

// LoadConfig reads .env.<APP_ENV> or .env when present, then the process
// environment. It exits when the database host is missing.
func LoadConfig() *Config {
	if env := os.Getenv("APP_ENV"); env != "" {
		_ = godotenv.Load(".env." + env)
	}
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:         os.Getenv("DB_HOST"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		AppPort:        getEnv("APP_PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		KitchenConfig:  os.Getenv("KITCHEN_CONFIG"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// KitchenProfile overrides the default preparation capacity. Zero values
// keep the defaults.
type KitchenProfile struct {
	MaxSimultaneous int            `yaml:"max_simultaneous"`
	BaseTimes       map[string]int `yaml:"base_times"`
}

// LoadKitchenProfile reads a YAML profile such as
//
//	max_simultaneous: 4
//	base_times:
//	  sandwich: 270
//	  pizza: 780
//
// An empty path yields an empty profile.
func LoadKitchenProfile(path string) (*KitchenProfile, error) {
	p := &KitchenProfile{}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kitchen profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse kitchen profile: %w", err)
	}
	if p.MaxSimultaneous < 0 {
		return nil, fmt.Errorf("kitchen profile: max_simultaneous must not be negative")
	}
	return p, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}
