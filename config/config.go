package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP    HTTP
		DB      DB
		Auth    Auth
		Storage Storage
		Seed    Seed
	}

	HTTP struct {
		Port       string `env:"PORT" envDefault:"8080"`
		CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
	}

	DB struct {
		Driver string `env:"DB_DRIVER" envDefault:"postgres"` // postgres or sqlite
		DSN    string `env:"DB_DSN,required,notEmpty"`
	}

	Auth struct {
		JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
		TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
	}

	Storage struct {
		Backend         string `env:"STORAGE_BACKEND" envDefault:"local"` // local or gcs
		UploadDir       string `env:"UPLOAD_DIR" envDefault:"./uploads"`
		PublicPrefix    string `env:"UPLOAD_PUBLIC_PREFIX" envDefault:"/uploads"`
		GCSBucket       string `env:"GCS_BUCKET"`
		GCSObjectPrefix string `env:"GCS_OBJECT_PREFIX" envDefault:"potholes"`
		GCSCredentials  string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
		MaxImageBytes   int64  `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	}

	// Seed creates a bootstrap administrator when AdminEmail is set.
	Seed struct {
		AdminName     string `env:"SEED_ADMIN_NAME" envDefault:"Administrator"`
		AdminEmail    string `env:"SEED_ADMIN_EMAIL"`
		AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
	}
)

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.Storage.Backend == "gcs" && cfg.Storage.GCSBucket == "" {
		return nil, fmt.Errorf("config error: GCS_BUCKET is required when STORAGE_BACKEND=gcs")
	}
	return cfg, nil
}
