package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) *StatusServer {
	t.Helper()
	p := newTestPoller(NewDemoAdapter(), time.Hour, func(PrinterState) {})
	p.Start()
	t.Cleanup(p.Stop)
	return NewStatusServer(cfg, p)
}

func serveJSON(t *testing.T, s *StatusServer, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w.Code, parsed
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, &Config{Backend: BackendDemo})

	t.Run("before any fetch", func(t *testing.T) {
		code, body := serveJSON(t, s, http.MethodGet, "/api/status", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "demo", body["backend"])

		state := body["state"].(map[string]any)
		assert.Equal(t, "unknown", state["status"])
	})

	t.Run("after a published state", func(t *testing.T) {
		s.OnState(PrinterState{
			Status:   StatusPrinting,
			JobName:  "bracket.gcode",
			Progress: floatPtr(0.42),
		})

		code, body := serveJSON(t, s, http.MethodGet, "/api/status", "")
		require.Equal(t, http.StatusOK, code)

		state := body["state"].(map[string]any)
		assert.Equal(t, "printing", state["status"])
		assert.Equal(t, "bracket.gcode", state["job_name"])
		assert.InDelta(t, 0.42, state["progress"].(float64), 0.001)
		assert.Contains(t, body["summary"], "bracket.gcode")
	})
}

func TestPrinterURLEndpoint(t *testing.T) {
	t.Run("no printer url configured", func(t *testing.T) {
		s := newTestServer(t, &Config{Backend: BackendDemo})
		code, body := serveJSON(t, s, http.MethodGet, "/api/printer_url", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "No printer URL configured", body["error"])
	})

	t.Run("url with qr code", func(t *testing.T) {
		s := newTestServer(t, &Config{
			Backend:        BackendPrusaLink,
			PrinterBaseURL: "http://192.168.1.50",
			OpenUIPath:     "/dashboard",
		})
		code, body := serveJSON(t, s, http.MethodGet, "/api/printer_url", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "http://192.168.1.50/dashboard", body["url"])
		assert.NotEmpty(t, body["qr_code_base64"])
	})
}

func TestSwitchBackendEndpoint(t *testing.T) {
	t.Run("switch to prusalink", func(t *testing.T) {
		s := newTestServer(t, &Config{Backend: BackendDemo, AuthMode: AuthModeNone})

		code, body := serveJSON(t, s, http.MethodPost, "/api/backend",
			`{"backend": "prusalink", "printer_url": "http://192.168.1.50"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "prusalink", body["backend"])
		assert.Equal(t, "prusalink", s.currentBackend())
	})

	t.Run("unknown backend rejected", func(t *testing.T) {
		s := newTestServer(t, &Config{Backend: BackendDemo})

		code, _ := serveJSON(t, s, http.MethodPost, "/api/backend", `{"backend": "duet"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "demo", s.currentBackend(), "config keeps the old backend on failure")
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		s := newTestServer(t, &Config{Backend: BackendDemo})
		code, body := serveJSON(t, s, http.MethodPost, "/api/backend", `{"backend":`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid JSON", body["error"])
	})
}

func TestHubDeliversEveryState(t *testing.T) {
	s := newTestServer(t, &Config{Backend: BackendDemo})

	subscriber := &StateClient{hub: s.hub, send: make(chan []byte, 64)}
	s.hub.register <- subscriber

	jobs := []string{"first.gcode", "second.gcode", "third.gcode"}
	for _, job := range jobs {
		s.OnState(PrinterState{Status: StatusPrinting, JobName: job})
	}

	// Every snapshot the sink received must reach the subscriber, in order.
	for _, want := range jobs {
		select {
		case payload := <-subscriber.send:
			var msg StateMessage
			require.NoError(t, json.Unmarshal(payload, &msg))
			assert.Equal(t, "state_update", msg.Type)
			assert.Equal(t, want, msg.State.JobName)
		case <-time.After(2 * time.Second):
			t.Fatalf("state for %s was never pushed", want)
		}
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, &Config{Backend: BackendDemo})
	s.OnState(PrinterState{Status: StatusIdle})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "idle")
}