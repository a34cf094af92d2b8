package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOctoPrintState(t *testing.T) {
	t.Run("printing", func(t *testing.T) {
		data := decode(t, `{
			"state": "Printing",
			"job": {"file": {"name": "model.gcode"}, "estimatedPrintTime": 3600},
			"progress": {"completion": 42.5, "printTime": 1200, "printTimeLeft": 1800}
		}`)

		state := parseOctoPrintState(data)

		assert.Equal(t, StatusPrinting, state.Status)
		require.NotNil(t, state.Progress)
		assert.InDelta(t, 0.425, *state.Progress, 0.001)
		assert.Equal(t, 1800, *state.ETASeconds)
		assert.Equal(t, "model.gcode", state.JobName)
	})

	t.Run("state as object with text", func(t *testing.T) {
		data := decode(t, `{
			"state": {"text": "Printing", "flags": {"printing": true}},
			"progress": {"completion": 10.0}
		}`)

		state := parseOctoPrintState(data)
		assert.Equal(t, StatusPrinting, state.Status)
	})

	t.Run("operational idle", func(t *testing.T) {
		data := decode(t, `{"state": "Operational", "job": {"file": {"name": null}}, "progress": {"completion": null}}`)

		state := parseOctoPrintState(data)
		assert.Equal(t, StatusIdle, state.Status)
		assert.Nil(t, state.Progress)
		assert.Empty(t, state.JobName)
	})

	t.Run("offline state string", func(t *testing.T) {
		data := decode(t, `{"state": "Offline"}`)
		state := parseOctoPrintState(data)
		assert.Equal(t, StatusOffline, state.Status)
	})

	t.Run("temperature data", func(t *testing.T) {
		data := decode(t, `{
			"state": "Printing",
			"temperature": {
				"tool0": {"actual": 214.8, "target": 215.0},
				"bed": {"actual": 59.9, "target": 60.0}
			}
		}`)

		state := parseOctoPrintState(data)
		assert.Equal(t, 214.8, *state.NozzleTemp)
		assert.Equal(t, 59.9, *state.BedTemp)
	})

	t.Run("completion of exactly 100", func(t *testing.T) {
		data := decode(t, `{"state": "Operational", "progress": {"completion": 100.0}}`)
		state := parseOctoPrintState(data)
		assert.Equal(t, 1.0, *state.Progress)
	})

	t.Run("empty object", func(t *testing.T) {
		state := parseOctoPrintState(map[string]any{})
		assert.Equal(t, StatusUnknown, state.Status)
		assert.Nil(t, state.Progress)
		assert.Nil(t, state.ETASeconds)
	})

	t.Run("state of invalid type", func(t *testing.T) {
		data := decode(t, `{"state": 42}`)
		state := parseOctoPrintState(data)
		assert.Equal(t, StatusUnknown, state.Status)
	})

	t.Run("malformed file info", func(t *testing.T) {
		data := decode(t, `{"state": "Printing", "job": {"file": "oops"}}`)
		state := parseOctoPrintState(data)
		assert.Equal(t, StatusPrinting, state.Status)
		assert.Empty(t, state.JobName)
	})
}

func TestOctoPrintAdapter(t *testing.T) {
	t.Run("fetch and parse", func(t *testing.T) {
		var gotAPIKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, OctoPrintJobPath, r.URL.Path)
			gotAPIKey = r.Header.Get("X-Api-Key")
			w.Write([]byte(`{"state": "Printing", "progress": {"completion": 50.0}}`))
		}))
		defer server.Close()

		stubKeyring(t, keyringWith(map[string]string{"octo:key": "abc123"}))
		cfg := &Config{
			PrinterBaseURL: server.URL,
			AuthMode:       AuthModeAPIKey,
			PasswordKey:    "octo:key",
		}

		adapter := NewOctoPrintAdapter(cfg)
		state, err := adapter.Fetch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, StatusPrinting, state.Status)
		assert.Equal(t, 0.5, *state.Progress)
		assert.Equal(t, "abc123", gotAPIKey)
	})

	t.Run("unreachable host reports offline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		adapter := NewOctoPrintAdapter(&Config{PrinterBaseURL: server.URL, AuthMode: AuthModeNone})
		state, err := adapter.Fetch(context.Background())

		require.Error(t, err)
		assert.Equal(t, StatusOffline, state.Status)
		assert.NotEmpty(t, state.ErrorMessage)
	})
}
