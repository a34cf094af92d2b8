package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the normalized printer status vocabulary. Every backend dialect
// collapses into one of these values.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusPrinting Status = "printing"
	StatusPaused   Status = "paused"
	StatusError    Status = "error"
	StatusOffline  Status = "offline"
	StatusUnknown  Status = "unknown"
)

// PrinterState is a complete snapshot of the printer as of one fetch cycle.
// Optional fields use pointers so "absent" and "zero" stay distinct. A state
// is never mutated after construction; the next cycle produces a new one.
type PrinterState struct {
	Status       Status     `json:"status"`
	Progress     *float64   `json:"progress,omitempty"` // normalized 0.0-1.0
	ETASeconds   *int       `json:"eta_seconds,omitempty"`
	JobName      string     `json:"job_name,omitempty"`
	NozzleTemp   *float64   `json:"nozzle_temp,omitempty"` // degrees C
	BedTemp      *float64   `json:"bed_temp,omitempty"`    // degrees C
	Message      string     `json:"message,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastOK       *time.Time `json:"last_ok_timestamp,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// normalizeStatus maps a raw status token from any backend to the closed
// Status vocabulary. Comparison is case-insensitive; empty or unrecognized
// input yields StatusUnknown. Total over its input domain.
func normalizeStatus(raw string) Status {
	switch strings.ToUpper(raw) {
	case "IDLE", "READY", "OPERATIONAL":
		return StatusIdle
	case "PRINTING", "BUSY", "WORKING":
		return StatusPrinting
	case "PAUSED", "PAUSING":
		return StatusPaused
	case "ERROR", "STOPPED", "FAILED":
		return StatusError
	case "OFFLINE":
		return StatusOffline
	default:
		return StatusUnknown
	}
}

// clamp restricts v to [lo, hi]. A nil input stays nil.
func clamp(v *float64, lo, hi float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < lo {
		c = lo
	}
	if c > hi {
		c = hi
	}
	return &c
}

// truncateErr bounds free-form error text before it lands in a snapshot.
func truncateErr(s string) string {
	return truncateAt(s, MaxErrorLen)
}

// truncateAt cuts s to at most n bytes without splitting a UTF-8 rune.
// Printer error strings are not guaranteed ASCII.
func truncateAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// errorState builds the canonical "I failed, here is why" snapshot used by
// parsers and adapters. The state itself is the error channel.
func errorState(status Status, errMsg, detail string) PrinterState {
	now := time.Now()
	return PrinterState{
		Status:       status,
		ErrorMessage: truncateErr(errMsg),
		Message:      truncateErr(detail),
		LastOK:       &now,
	}
}

// Summary renders a multi-line human-readable description of the state,
// used by the dashboard and /api/status.
func (s PrinterState) Summary() string {
	lines := []string{fmt.Sprintf("Status: %s", s.Status)}

	if s.Progress != nil {
		lines = append(lines, fmt.Sprintf("Progress: %.1f%%", *s.Progress*100))
	}
	if s.ETASeconds != nil {
		eta := *s.ETASeconds
		hours := eta / 3600
		minutes := (eta % 3600) / 60
		seconds := eta % 60
		if hours > 0 {
			lines = append(lines, fmt.Sprintf("ETA: %dh %dm", hours, minutes))
		} else {
			lines = append(lines, fmt.Sprintf("ETA: %dm %ds", minutes, seconds))
		}
	}
	if s.JobName != "" {
		lines = append(lines, fmt.Sprintf("Job: %s", s.JobName))
	}
	if s.NozzleTemp != nil {
		lines = append(lines, fmt.Sprintf("Nozzle: %.1f°C", *s.NozzleTemp))
	}
	if s.BedTemp != nil {
		lines = append(lines, fmt.Sprintf("Bed: %.1f°C", *s.BedTemp))
	}
	if s.Message != "" {
		lines = append(lines, fmt.Sprintf("Info: %s", s.Message))
	}
	if s.ErrorMessage != "" {
		lines = append(lines, fmt.Sprintf("Error: %s", s.ErrorMessage))
	}
	if s.Status == StatusOffline && s.LastError != "" {
		short := truncateAt(strings.SplitN(s.LastError, "\n", 2)[0], 60)
		lines = append(lines, fmt.Sprintf("Last error: %s", short))
	}
	if s.LastOK != nil {
		elapsed := time.Since(*s.LastOK)
		switch {
		case elapsed < time.Minute:
			lines = append(lines, fmt.Sprintf("Last OK: %ds ago", int(elapsed.Seconds())))
		case elapsed < time.Hour:
			lines = append(lines, fmt.Sprintf("Last OK: %dm ago", int(elapsed.Minutes())))
		}
	}

	return strings.Join(lines, "\n")
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
