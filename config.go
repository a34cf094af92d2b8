package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the core needs to reach one printer. It is a
// read-only value object: loaded once at startup (or rebuilt wholesale for a
// backend hot-swap), never mutated in place.
type Config struct {
	PrinterBaseURL string
	PollIntervalS  float64
	Backend        string // demo, prusaconnect, prusalink, octoprint
	OpenUIPath     string // appended to the base URL for "open printer UI"

	// Authentication
	Username    string
	AuthMode    string // none, digest, apikey
	PasswordKey string // keyring reference, e.g. "prusalink:mk4-office"

	// PrusaConnect specific
	BearerToken string
	PrinterID   string
	StatusPath  string // custom status endpoint, defaults to /api/v1/status

	WebPort string
}

// LoadConfig builds a Config from environment variables. Malformed values
// fall back to defaults rather than failing; validation of the result is a
// separate step so callers can decide whether a bad config is fatal.
func LoadConfig() *Config {
	cfg := &Config{
		PrinterBaseURL: os.Getenv(EnvPrinterURL),
		PollIntervalS:  DefaultPollInterval,
		Backend:        DefaultBackend,
		OpenUIPath:     DefaultOpenUIPath,
		Username:       os.Getenv(EnvUsername),
		AuthMode:       AuthModeNone,
		PasswordKey:    os.Getenv(EnvPasswordKey),
		BearerToken:    os.Getenv(EnvBearerToken),
		PrinterID:      os.Getenv(EnvPrinterID),
		StatusPath:     os.Getenv(EnvStatusPath),
		WebPort:        DefaultWebPort,
	}

	if backend := os.Getenv(EnvBackend); backend != "" {
		cfg.Backend = strings.ToLower(backend)
	}
	if mode := os.Getenv(EnvAuthMode); mode != "" {
		cfg.AuthMode = strings.ToLower(mode)
	}
	if path := os.Getenv(EnvOpenUIPath); path != "" {
		cfg.OpenUIPath = path
	}
	if port := os.Getenv(EnvWebPort); port != "" {
		cfg.WebPort = port
	}

	if raw := os.Getenv(EnvPollInterval); raw != "" {
		if interval, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.PollIntervalS = interval
		}
	}
	if cfg.PollIntervalS < MinPollInterval {
		cfg.PollIntervalS = MinPollInterval
	}

	return cfg
}

// validateURL reports whether raw is a well-formed http(s) URL with a host.
func validateURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateConfig checks backend-appropriate completeness. The demo backend
// needs no URL; every network backend needs a valid http(s) base URL. The
// auth mode must be one of the closed set; an empty value reads as none.
func ValidateConfig(cfg *Config) error {
	switch cfg.AuthMode {
	case "", AuthModeNone, AuthModeDigest, AuthModeAPIKey:
	default:
		return fmt.Errorf("unknown auth mode: %q (valid: none, digest, apikey)", cfg.AuthMode)
	}

	switch cfg.Backend {
	case BackendDemo:
		return nil
	case BackendPrusaConnect, BackendPrusaLink, BackendOctoPrint:
		if cfg.PrinterBaseURL == "" {
			return fmt.Errorf("backend %q requires a printer base URL", cfg.Backend)
		}
		if !validateURL(cfg.PrinterBaseURL) {
			return fmt.Errorf("printer base URL must be http:// or https:// with a host, got %q", cfg.PrinterBaseURL)
		}
		return nil
	default:
		return fmt.Errorf("unknown backend: %q (valid: demo, prusaconnect, prusalink, octoprint)", cfg.Backend)
	}
}

// PrinterUIURL is the address a browser should open to reach the printer's
// own web interface.
func (c *Config) PrinterUIURL() string {
	if c.PrinterBaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.PrinterBaseURL, "/") + c.OpenUIPath
}
