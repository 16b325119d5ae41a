package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// Storage
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// Provider (the single approver)
	ProviderUserID       int64  `envconfig:"PROVIDER_USER_ID" required:"true"`
	ProviderPasswordHash string `envconfig:"PROVIDER_PASSWORD_HASH" required:"true"`
	JWTSecret            string `envconfig:"JWT_SECRET" required:"true"`
	// Network
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	// Scheduling
	Timezone  string `envconfig:"TIMEZONE" default:"Asia/Tashkent"`
	DaysAhead int    `envconfig:"DAYS_AHEAD" default:"14"`
	// Files
	CatalogPath string `envconfig:"CATALOG_PATH" default:"services.json"`
	LogFile     string `envconfig:"LOG_FILE" default:"barberbook.log"`
}

// Load reads .env if present, then the environment.
func Load() (App, error) {
	_ = godotenv.Load()
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, err
	}
	return c, nil
}

func (c App) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
