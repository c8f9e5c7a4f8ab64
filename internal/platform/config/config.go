package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DefaultABSCHURL is the ABS Clearing-House country listing.
const DefaultABSCHURL = "https://api.cbd.int/api/v2013/countries/"

// Config captures process-level configuration.
type Config struct {
	Server    Server
	Registry  Registry
	Geocoder  Geocoder
	Cache     Cache
	LogLevel  string
	LogFormat string
}

// Server captures HTTP server level configuration.
type Server struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Registry configures the treaty registry client.
type Registry struct {
	URL     string
	Timeout time.Duration
}

// Geocoder configures the Nominatim reverse geocoder.
type Geocoder struct {
	Host      string
	UserAgent string
	RateLimit float64
	Timeout   time.Duration
}

// Cache configures the implementing-country cache.
type Cache struct {
	TTL time.Duration
	// MaxStaleness bounds how long stale data is served after failed refreshes.
	// Zero means stale data is served indefinitely.
	MaxStaleness time.Duration
}

// FromEnv builds a Config from environment variables. All problems are
// reported together.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	var errs error
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	seconds := func(key, def string) time.Duration {
		raw := get(key, def)
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be a non-negative number of seconds, got %q", key, raw))
			return 0
		}
		return time.Duration(n) * time.Second
	}

	cfg := Config{
		Server: Server{Host: get("SERVER_HOST", "0.0.0.0")},
		Registry: Registry{
			URL: get("ABSCH_URL", DefaultABSCHURL),
		},
		Geocoder: Geocoder{
			Host:      strings.TrimRight(get("NOMINATIM_HOST", ""), "/"),
			UserAgent: get("NOMINATIM_USER_AGENT", "nagoya-api"),
		},
		LogLevel:  strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(get("LOG_FORMAT", "json")),
	}

	portRaw := get("SERVER_PORT", "3125")
	port, err := strconv.Atoi(portRaw)
	if err != nil || port < 1 || port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %q", portRaw))
	}
	cfg.Server.Port = port

	rateRaw := get("NOMINATIM_RATE_LIMIT", "1")
	rate, err := strconv.ParseFloat(rateRaw, 64)
	if err != nil || rate <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("NOMINATIM_RATE_LIMIT must be a positive number, got %q", rateRaw))
	}
	cfg.Geocoder.RateLimit = rate

	cfg.Cache.TTL = seconds("CACHE_TTL", "86400")
	if cfg.Cache.TTL == 0 {
		errs = multierror.Append(errs, fmt.Errorf("CACHE_TTL must be positive"))
	}
	cfg.Cache.MaxStaleness = seconds("CACHE_MAX_STALENESS", "0")

	timeout := seconds("UPSTREAM_TIMEOUT", "10")
	if timeout == 0 {
		errs = multierror.Append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be positive"))
	}
	cfg.Registry.Timeout = timeout
	cfg.Geocoder.Timeout = timeout

	if cfg.Geocoder.Host == "" {
		// A custom host keeps load off the public OSM instance.
		errs = multierror.Append(errs, fmt.Errorf("NOMINATIM_HOST is required"))
	} else if err := validateURL(cfg.Geocoder.Host); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("NOMINATIM_HOST: %w", err))
	}
	if err := validateURL(cfg.Registry.URL); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("ABSCH_URL: %w", err))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = multierror.Append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat))
	}

	return cfg, errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}
