package main

import "time"

// Backend names
const (
	BackendDemo         = "demo"
	BackendPrusaConnect = "prusaconnect"
	BackendPrusaLink    = "prusalink"
	BackendOctoPrint    = "octoprint"
)

// Auth modes
const (
	AuthModeNone   = "none"
	AuthModeDigest = "digest"
	AuthModeAPIKey = "apikey"
)

// Default configuration values
const (
	DefaultBackend      = BackendDemo
	DefaultPollInterval = 3.0 // seconds
	MinPollInterval     = 1.0 // seconds
	DefaultOpenUIPath   = "/"
	DefaultWebPort      = "5000"
)

// API endpoint paths
const (
	PrusaLinkStatusPath    = "/api/v1/status"
	PrusaLinkLegacyPath    = "/api/job"
	OctoPrintJobPath       = "/api/job"
	PrusaConnectStatusPath = "/api/v1/status"
)

// HTTP behavior
const (
	FetchTimeout = 5 * time.Second // fail fast so the poller stays responsive
)

// Poller backoff
const (
	MinBackoff    = 3 * time.Second
	MaxBackoff    = 30 * time.Second
	BackoffJitter = 0.2 // fraction of the base delay added as random jitter
)

// Credential storage
const (
	KeyringService  = "PrintWatch"
	EnvSecretPrefix = "PRINTWATCH_PASSWORD_"
)

// Error text is truncated to this many characters before it ends up in a
// state snapshot or a websocket payload.
const MaxErrorLen = 100

// Environment variable names for configuration
const (
	EnvBackend      = "PRINTWATCH_BACKEND"
	EnvPrinterURL   = "PRINTWATCH_PRINTER_URL"
	EnvPollInterval = "PRINTWATCH_POLL_INTERVAL"
	EnvUsername     = "PRINTWATCH_USERNAME"
	EnvAuthMode     = "PRINTWATCH_AUTH_MODE"
	EnvPasswordKey  = "PRINTWATCH_PASSWORD_KEY"
	EnvBearerToken  = "PRINTWATCH_BEARER_TOKEN"
	EnvPrinterID    = "PRINTWATCH_PRINTER_ID"
	EnvStatusPath   = "PRINTWATCH_STATUS_PATH"
	EnvOpenUIPath   = "PRINTWATCH_OPEN_UI_PATH"
	EnvWebPort      = "PRINTWATCH_WEB_PORT"
)

// Demo adapter cycle timing
const (
	DemoPrintDuration = 120 * time.Second
	DemoPauseDuration = 10 * time.Second
	DemoIdleDuration  = 20 * time.Second
)
