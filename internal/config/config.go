package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	StorageDriver   string        `env:"STORAGE_DRIVER" envDefault:"mongo"`
	MongoURI        string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase   string        `env:"MONGODB_DATABASE" envDefault:"taxvault"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	EncryptionKey   string        `env:"ENCRYPTION_KEY,required,notEmpty"`
	AdminAPIToken   string        `env:"ADMIN_API_TOKEN"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	SwaggerFile     string        `env:"SWAGGER_FILE" envDefault:"./docs/swagger.json"`
	HealthSchedule  string        `env:"HEALTHCHECK_SCHEDULE" envDefault:"*/15 * * * *"`
	PlatformTimeout time.Duration `env:"PLATFORM_TIMEOUT" envDefault:"30s"`

	Shopify Shopify `envPrefix:"SHOPIFY_"`
}

type Shopify struct {
	APIKey     string `env:"API_KEY"`
	APISecret  string `env:"API_SECRET"`
	APIVersion string `env:"API_VERSION" envDefault:"2024-10"`
}

func Read() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMongo:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.PlatformTimeout <= 0 {
		return errors.New("PLATFORM_TIMEOUT must be positive")
	}
	return nil
}
