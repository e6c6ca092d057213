package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration settings for the active calls service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - HTTP: Address the API server listens on.
// - Feed: Where and how often the raw active calls are fetched.
// - Geocoder: Provider selection, credentials and pacing.
// - Cache: Backend and location of the geocode cache.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env      string         `yaml:"env"`      // Env is the current environment: local, development, production.
	HTTP     HTTPConfig     `yaml:"http"`     // HTTP holds the API listener settings.
	Feed     FeedConfig     `yaml:"feed"`     // Feed holds the raw calls feed settings.
	Geocoder GeocoderConfig `yaml:"geocoder"` // Geocoder holds the geocoding provider settings.
	Cache    CacheConfig    `yaml:"cache"`    // Cache holds the geocode cache settings.
	Database PostgresConfig `yaml:"postgres"` // Database holds the postgres database configuration.
}

// HTTPConfig holds the listener of the API server.
type HTTPConfig struct {
	Host string `yaml:"host"` // Host is the interface to bind.
	Port int    `yaml:"port"` // Port is the API server port.
}

// FeedConfig holds the raw active calls feed settings.
type FeedConfig struct {
	URL             string        `yaml:"url"`              // URL of the Dallas Open Data endpoint.
	RefreshInterval time.Duration `yaml:"refresh_interval"` // RefreshInterval is the time between two full refreshes.
}

// GeocoderConfig holds the provider and the pacing of the enrichment worker.
type GeocoderConfig struct {
	ProviderType  string        `yaml:"provider.type"`    // ProviderType specifies which geocoding provider to use.
	APIKey        string        `yaml:"provider.api_key"` // APIKey for providers that need one.
	UserAgent     string        `yaml:"user_agent"`       // UserAgent identifies the service to the geocoder.
	QueryDelay    time.Duration `yaml:"query_delay"`      // QueryDelay is the pause between queries of one cascade.
	WorkerDelay   time.Duration `yaml:"worker_delay"`     // WorkerDelay is the pause after every processed address.
	IdleDelay     time.Duration `yaml:"idle_delay"`       // IdleDelay is the pause when nothing is eligible.
	RetryInterval time.Duration `yaml:"failed_retry"`     // RetryInterval is the wait before a failed address is retried.
	MaxPerCycle   int           `yaml:"max_per_refresh"`  // MaxPerCycle caps attempts between refreshes, 0 disables.
}

// CacheConfig selects the durable backend of the geocode cache.
type CacheConfig struct {
	Backend string `yaml:"backend"` // Backend is "file" or "postgres".
	File    string `yaml:"file"`    // File is the JSON cache location for the file backend.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`                        // Host is the database server address.
	Port     string `yaml:"port"     env-default:"5432"` // Port is the database server port.
	User     string `yaml:"user"`                        // User is the database user.
	Password string `yaml:"password"`                    // Password is the database user's password.
	Name     string `yaml:"db_name"`                     // Name is the name of the database.
}

// MustLoad reads the configuration from the environment (and an optional .env file)
// and panics on values that cannot be parsed.
func MustLoad() *Config {
	_ = godotenv.Load()

	port, err := strconv.Atoi(setDefaultEnv("PATROL_HTTP_PORT", "3000"))
	if err != nil {
		panic("failed to parse port for http server from configuration")
	}

	maxPerCycle, err := strconv.Atoi(setDefaultEnv("PATROL_MAX_GEOCODES_PER_REFRESH", "0"))
	if err != nil {
		panic("failed to parse max geocodes per refresh from configuration, must be an integer types")
	}

	return &Config{
		Env: setDefaultEnv("PATROL_ENV", "production"),
		HTTP: HTTPConfig{
			Host: setDefaultEnv("PATROL_HTTP_HOST", "0.0.0.0"),
			Port: port,
		},
		Feed: FeedConfig{
			URL:             setDefaultEnv("PATROL_CALLS_URL", ""),
			RefreshInterval: mustDuration("PATROL_REFRESH_INTERVAL", "2m", "refresh interval"),
		},
		Geocoder: GeocoderConfig{
			ProviderType:  setDefaultEnv("PATROL_PROVIDER_TYPE", "nominatim"),
			APIKey:        os.Getenv("PATROL_PROVIDER_KEY"),
			UserAgent:     setDefaultEnv("PATROL_USER_AGENT", "DallasPDActiveCalls/2.0 (contact: local-app)"),
			QueryDelay:    mustDuration("PATROL_GEOCODE_DELAY", "1100ms", "geocode delay"),
			WorkerDelay:   mustDuration("PATROL_WORKER_DELAY", "1100ms", "worker delay"),
			IdleDelay:     mustDuration("PATROL_IDLE_DELAY", "2s", "idle delay"),
			RetryInterval: mustDuration("PATROL_FAILED_RETRY_INTERVAL", "6h", "failed retry interval"),
			MaxPerCycle:   maxPerCycle,
		},
		Cache: CacheConfig{
			Backend: setDefaultEnv("PATROL_CACHE_BACKEND", "file"),
			File:    setDefaultEnv("PATROL_CACHE_FILE", "data/geocode-cache.json"),
		},
		Database: PostgresConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     setDefaultEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
	}
}

func mustDuration(key, fallback, name string) time.Duration {
	value, err := time.ParseDuration(setDefaultEnv(key, fallback))
	if err != nil {
		panic("failed to parse " + name + " from configuration")
	}

	return value
}

func setDefaultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
