package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Adapter is the uniform fetch capability every backend exposes. Fetch
// returns the canonical snapshot; a non-nil error marks a transport or
// protocol failure the poller should back off from. Parse-level problems
// never surface as errors: the parser degrades the state instead.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) (PrinterState, error)
}

// fetchError is a classified, human-readable fetch failure. The category is
// stable text ("Timeout", "Connection refused"); the detail is bounded.
type fetchError struct {
	category string
	detail   string
}

func (e *fetchError) Error() string {
	if e.detail == "" {
		return e.category
	}
	return fmt.Sprintf("%s: %s", e.category, e.detail)
}

func newFetchError(category, detail string) *fetchError {
	return &fetchError{category: category, detail: truncateErr(detail)}
}

// httpFetcher is the network plumbing shared by every HTTP-backed adapter:
// request construction, auth headers, timeout, body decoding, and failure
// classification. Adapters embed it and supply their endpoint and parser.
type httpFetcher struct {
	baseURL string
	cfg     *Config
	client  *http.Client
}

func newHTTPFetcher(baseURL string, cfg *Config) httpFetcher {
	return httpFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		client: &http.Client{
			Timeout: FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// getJSON fetches path and decodes the body into a generic JSON object.
// The returned status code is 0 when no HTTP response was received. All
// failure modes come back as a *fetchError.
func (f *httpFetcher) getJSON(ctx context.Context, path string, extraHeaders map[string]string) (map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, 0, newFetchError("Invalid request", err.Error())
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range buildAuthHeaders(f.cfg) {
		req.Header.Set(name, value)
	}
	for name, value := range extraHeaders {
		req.Header.Set(name, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, classifyHTTPStatus(resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, newFetchError("Network error", err.Error())
	}
	if !utf8.Valid(body) {
		return nil, resp.StatusCode, newFetchError("Invalid response encoding", "server returned non-UTF8 data")
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, resp.StatusCode, newFetchError("Invalid JSON response", err.Error())
	}

	return data, resp.StatusCode, nil
}

// classifyTransportError turns a transport-level failure into a stable
// human-readable category instead of a raw net error chain.
func classifyTransportError(err error) *fetchError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFetchError("Timeout", fmt.Sprintf("printer did not respond within %s", FetchTimeout))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newFetchError("Timeout", fmt.Sprintf("printer did not respond within %s", FetchTimeout))
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newFetchError("Host not found", "could not resolve printer hostname/IP")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return newFetchError("Connection refused", "printer refused connection - is it powered on?")
	}

	return newFetchError("Network error", err.Error())
}

// classifyHTTPStatus maps a non-2xx response to a failure category.
func classifyHTTPStatus(code int, path string) *fetchError {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newFetchError("Authentication failed", "check credentials in configuration")
	case code == http.StatusNotFound:
		return newFetchError("Endpoint not found", fmt.Sprintf("API endpoint %s does not exist", path))
	case code >= 500 && code < 600:
		return newFetchError("Server error", fmt.Sprintf("printer returned HTTP %d", code))
	default:
		return newFetchError("Unexpected response", fmt.Sprintf("HTTP %d from %s", code, path))
	}
}

// safeParse runs a parser and converts any panic into a degraded state with
// the given fallback status, so a malformed body can never take the poller
// down. Every dialect degrades to ERROR except OctoPrint, whose unparseable
// responses historically meant a dead connection and report OFFLINE.
func safeParse(parse func(map[string]any) PrinterState, data map[string]any, fallback Status) (state PrinterState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Parser panic: %v", r)
			state = errorState(fallback, "Parse error", fmt.Sprintf("could not parse printer state: %v", r))
		}
	}()
	return parse(data)
}

// CreateAdapter is the only place backend selection lives. Swapping
// backends is just a config change plus a new adapter instance; the old
// one is discarded wholesale.
func CreateAdapter(cfg *Config) (Adapter, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("Creating adapter for backend: %s", cfg.Backend)

	switch cfg.Backend {
	case BackendDemo:
		return NewDemoAdapter(), nil
	case BackendPrusaConnect:
		return NewPrusaConnectAdapter(cfg)
	case BackendPrusaLink:
		return NewPrusaLinkAdapter(cfg), nil
	case BackendOctoPrint:
		return NewOctoPrintAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", cfg.Backend)
	}
}
