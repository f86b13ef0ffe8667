package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string         `env:"ENV" envDefault:"development" validate:"oneof=development staging production test"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Currency CurrencyConfig `envPrefix:"CURRENCY_"`
	Browser  BrowserConfig  `envPrefix:"BROWSER_"`
	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Journal  JournalConfig  `envPrefix:"JOURNAL_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Workers  WorkersConfig  `envPrefix:"WORKERS_"`
}

type StoreConfig struct {
	BaseURL string `env:"BASE_URL,required" validate:"required,url"`
	// CAFile or CAPEM pin the only certificate authority trusted for https.
	CAFile        string        `env:"CA_FILE"`
	CAPEM         string        `env:"CA_PEM"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s" validate:"gt=0"`
	RetryCount    int           `env:"RETRY_COUNT" envDefault:"3" validate:"gte=0,lte=10"`
	RatePerSecond float64       `env:"RATE" envDefault:"5" validate:"gt=0"`
	Burst         int           `env:"BURST" envDefault:"10" validate:"gte=1"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"100ms" validate:"gt=0"`
	ThumbnailSize int           `env:"THUMBNAIL_SIZE" envDefault:"40" validate:"gte=8,lte=512"`
	MaxBodyBytes  int           `env:"MAX_BODY_BYTES" envDefault:"8388608" validate:"gte=1024"`
	ImageRate     float64       `env:"IMAGE_RATE" envDefault:"5" validate:"gt=0"`
}

type SessionConfig struct {
	Username string `env:"USERNAME,required" validate:"required"`
	// Key is the base64 encoded session key.
	Key string `env:"KEY,required" validate:"required,base64"`
}

func (c SessionConfig) SessionKey() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.Key)
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:"127.0.0.1:8080" validate:"required,hostname_port"`
	// CORSOrigin is a regular expression matched against the Origin header.
	CORSOrigin string `env:"CORS_ORIGIN"`
	Pprof      bool   `env:"PPROF" envDefault:"false"`
}

type CurrencyConfig struct {
	File string `env:"FILE"`
}

type BrowserConfig struct {
	Mode       string        `env:"MODE" envDefault:"chrome" validate:"oneof=chrome none"`
	ChromePath string        `env:"CHROME_PATH"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s" validate:"gt=0"`
}

type MongoConfig struct {
	Enabled  bool     `env:"ENABLED" envDefault:"false"`
	Hosts    []string `env:"HOSTS" envDefault:"localhost:27017" envSeparator:","`
	Username string   `env:"USERNAME"`
	Password string   `env:"PASSWORD"`
	AuthDB   string   `env:"AUTH_DB" envDefault:"admin"`
	Database string   `env:"DATABASE" envDefault:"storefront"`
	Direct   bool     `env:"DIRECT" envDefault:"true"`
}

type KafkaConfig struct {
	Enabled  bool     `env:"ENABLED" envDefault:"false"`
	Brokers  []string `env:"BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic    string   `env:"TOPIC" envDefault:"storefront.checkouts"`
	ClientID string   `env:"CLIENT_ID" envDefault:"storefront"`
}

type JournalConfig struct {
	// TokenKey is a base64 encoded 256 bit key used to seal credit
	// transaction tokens before they are journaled.
	TokenKey string `env:"TOKEN_KEY"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

type WorkersConfig struct {
	PoolSize      int `env:"POOL_SIZE" envDefault:"4" validate:"gte=1,lte=64"`
	ImagePoolSize int `env:"IMAGE_POOL_SIZE" envDefault:"2" validate:"gte=1,lte=64"`
}

// Load reads the configuration from the environment. Outside production a
// .env file in the working directory overrides the environment.
func Load() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Overload()
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	base, err := url.Parse(c.Store.BaseURL)
	if err != nil {
		return fmt.Errorf("store base url: %w", err)
	}
	if base.Scheme == "https" && c.Store.CAFile == "" && c.Store.CAPEM == "" {
		return errors.New("store base url is https but no pinned CA is configured")
	}
	if c.Server.CORSOrigin != "" {
		if _, err := regexp.Compile(c.Server.CORSOrigin); err != nil {
			return fmt.Errorf("server cors origin: %w", err)
		}
	}
	if c.Mongo.Enabled && c.Journal.TokenKey == "" {
		return errors.New("journal token key is required when mongo is enabled")
	}
	return nil
}
