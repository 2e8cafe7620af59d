package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "SAFEROUTE"

type Config struct {
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:":5000"`
	MapFile       string `envconfig:"MAP_FILE" default:"nyc_drive.osm.pbf"`
	CacheDir      string `envconfig:"CACHE_DIR" default:"saferouteDB"`
	IncidentsFile string `envconfig:"INCIDENTS_FILE" default:"data/NYC_crashes.csv"`
	ForceReload   bool   `envconfig:"FORCE_RELOAD" default:"false"`

	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	ShowProgress bool   `envconfig:"SHOW_PROGRESS" default:"true"`

	Workers         int     `envconfig:"WORKERS" default:"4"`
	BufferMeters    float64 `envconfig:"BUFFER_METERS" default:"25"`
	MaxSettledNodes int     `envconfig:"MAX_SETTLED_NODES" default:"0"`

	SourceRetries int           `envconfig:"SOURCE_RETRIES" default:"3"`
	SourceBackoff time.Duration `envconfig:"SOURCE_BACKOFF" default:"2s"`

	GeocoderURL     string        `envconfig:"GEOCODER_URL" default:"https://nominatim.openstreetmap.org"`
	GeocoderRetries int           `envconfig:"GEOCODER_RETRIES" default:"5"`
	GeocoderTimeout time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"10s"`
	ServiceArea     string        `envconfig:"SERVICE_AREA" default:"New York"`
}

// Load reads an optional .env file, then the SAFEROUTE_* environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.BufferMeters < 0 {
		errs = append(errs, fmt.Errorf("buffer meters must not be negative, got %v", c.BufferMeters))
	}
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache dir is required"))
	}
	if c.MaxSettledNodes < 0 {
		errs = append(errs, fmt.Errorf("max settled nodes must not be negative, got %d", c.MaxSettledNodes))
	}
	if c.SourceRetries < 0 || c.GeocoderRetries < 0 {
		errs = append(errs, errors.New("retry counts must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat ("json" or "text").
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
