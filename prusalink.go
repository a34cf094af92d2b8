package main

import (
	"context"
	"log"
	"net/http"
	"time"
)

// PrusaLink speaks two wire formats depending on firmware age:
//
// v1 (/api/v1/status):
//
//	{"printer": {"state": "PRINTING", "temp_nozzle": 215.0, "temp_bed": 60.0},
//	 "job": {"progress": 45.5, "time_remaining": 1800, "file": {"name": "model.gcode"}}}
//
// legacy (/api/job):
//
//	{"state": "Printing",
//	 "job": {"file": {"name": "model.gcode"}},
//	 "progress": {"completion": 0.88, "printTimeLeft": 960},
//	 "temperature": {"tool0": {"actual": 215}, "bed": {"actual": 60}}}

// parsePrusaLinkState handles both formats, detecting v1 by the presence of
// a "printer" object at the root.
func parsePrusaLinkState(data map[string]any) PrinterState {
	if _, ok := data["printer"]; ok {
		return parsePrusaLinkV1(data)
	}
	return parsePrusaLinkLegacy(data)
}

// parsePrusaLinkV1 parses the structured v1 response. A null or empty job
// object means no active print: progress, ETA, and job name stay absent no
// matter what the printer state claims.
func parsePrusaLinkV1(data map[string]any) PrinterState {
	now := time.Now()
	printer := getMap(data, "printer")

	state := PrinterState{
		Status:     normalizeStatus(getString(printer, "state")),
		NozzleTemp: getFloat(printer, "temp_nozzle"),
		BedTemp:    getFloat(printer, "temp_bed"),
		LastOK:     &now,
	}

	job := getMap(data, "job")
	if len(job) > 0 {
		// v1 delivers progress as a 0-100 percentage.
		state.Progress = percentProgress(getFloat(job, "progress"))
		state.ETASeconds = getInt(job, "time_remaining")
		state.JobName = getString(getMap(job, "file"), "name")
	}

	return state
}

// parsePrusaLinkLegacy parses the flat/nested hybrid. The "completion"
// field may be a 0-1 fraction or a 0-100 percentage; normalizeProgress
// disambiguates by value.
func parsePrusaLinkLegacy(data map[string]any) PrinterState {
	now := time.Now()

	state := PrinterState{
		Status: normalizeStatus(getString(data, "state")),
		LastOK: &now,
	}

	temps := getMap(data, "temperature")
	state.NozzleTemp = actualTemp(temps["tool0"])
	state.BedTemp = actualTemp(temps["bed"])

	progressData := getMap(data, "progress")
	if progressData != nil {
		state.Progress = normalizeProgress(getFloat(progressData, "completion"))
		state.ETASeconds = getInt(progressData, "printTimeLeft")
	}

	if job := getMap(data, "job"); job != nil {
		state.JobName = getString(getMap(job, "file"), "name")
	}

	// "Operational" with no job and no progress object is a printer at
	// rest, not a zero-progress print.
	if state.Status == StatusIdle && getMap(data, "job") == nil && progressData == nil {
		state.Progress = nil
	}

	return state
}

// PrusaLinkAdapter fetches from a PrusaLink printer, probing the v1
// endpoint first and permanently dropping to the legacy endpoint when the
// firmware does not serve it. The choice is pinned for the adapter's
// lifetime once either endpoint answers successfully.
type PrusaLinkAdapter struct {
	httpFetcher
	useLegacy bool
	pinned    bool
}

func NewPrusaLinkAdapter(cfg *Config) *PrusaLinkAdapter {
	return &PrusaLinkAdapter{httpFetcher: newHTTPFetcher(cfg.PrinterBaseURL, cfg)}
}

func (a *PrusaLinkAdapter) Name() string { return "prusalink" }

func (a *PrusaLinkAdapter) endpoint() string {
	if a.useLegacy {
		return PrusaLinkLegacyPath
	}
	return PrusaLinkStatusPath
}

func (a *PrusaLinkAdapter) Fetch(ctx context.Context) (PrinterState, error) {
	data, status, err := a.getJSON(ctx, a.endpoint(), nil)
	if err == nil {
		a.pinned = true
		return safeParse(parsePrusaLinkState, data, StatusError), nil
	}

	// Before the endpoint choice is pinned, a 404 (or anything other than
	// an auth rejection) from v1 means the firmware likely predates it:
	// switch to /api/job and retry in the same cycle. Transport failures
	// (no HTTP response at all) pin nothing.
	if !a.pinned && !a.useLegacy && status != 0 &&
		status != http.StatusUnauthorized && status != http.StatusForbidden {
		log.Printf("PrusaLink v1 endpoint unavailable (HTTP %d), falling back to %s", status, PrusaLinkLegacyPath)
		a.useLegacy = true

		data, _, err = a.getJSON(ctx, a.endpoint(), nil)
		if err == nil {
			a.pinned = true
			return safeParse(parsePrusaLinkState, data, StatusError), nil
		}
	}

	return errorState(StatusError, categoryOf(err), err.Error()), err
}

// categoryOf extracts the stable category from a classified fetch error.
func categoryOf(err error) string {
	if fe, ok := err.(*fetchError); ok {
		return fe.category
	}
	return "Network error"
}
