package main

import (
	"context"
	"time"
)

// OctoPrint's /api/job response:
//
//	{"state": "Printing",                     // or {"text": "Printing", "flags": {...}}
//	 "job": {"file": {"name": "model.gcode"}, "estimatedPrintTime": 3600},
//	 "progress": {"completion": 42.5, "printTime": 1200, "printTimeLeft": 1800}}
//
// A merged /api/printer response with a "temperature" object is handled too.

// parseOctoPrintState parses an OctoPrint job response. The state field may
// be a bare string or an object carrying the text under "text"; both forms
// resolve identically.
func parseOctoPrintState(data map[string]any) PrinterState {
	now := time.Now()

	var statusStr string
	switch v := data["state"].(type) {
	case string:
		statusStr = v
	case map[string]any:
		statusStr = getString(v, "text")
	}

	state := PrinterState{
		Status: normalizeStatus(statusStr),
		LastOK: &now,
	}

	if progress := getMap(data, "progress"); progress != nil {
		// OctoPrint reports completion as a 0-100 percentage.
		state.Progress = percentProgress(getFloat(progress, "completion"))
		state.ETASeconds = getInt(progress, "printTimeLeft")
	}

	if job := getMap(data, "job"); job != nil {
		state.JobName = getString(getMap(job, "file"), "name")
	}

	if temps := getMap(data, "temperature"); temps != nil {
		state.NozzleTemp = actualTemp(temps["tool0"])
		state.BedTemp = actualTemp(temps["bed"])
	}

	return state
}

// OctoPrintAdapter fetches /api/job from an OctoPrint server. Auth is the
// X-Api-Key header via the configured credential.
type OctoPrintAdapter struct {
	httpFetcher
}

func NewOctoPrintAdapter(cfg *Config) *OctoPrintAdapter {
	return &OctoPrintAdapter{httpFetcher: newHTTPFetcher(cfg.PrinterBaseURL, cfg)}
}

func (a *OctoPrintAdapter) Name() string { return "octoprint" }

func (a *OctoPrintAdapter) Fetch(ctx context.Context) (PrinterState, error) {
	data, _, err := a.getJSON(ctx, OctoPrintJobPath, nil)
	if err != nil {
		// OctoPrint going unreachable usually means the whole host is
		// down, so its failure path reports OFFLINE rather than ERROR.
		return errorState(StatusOffline, categoryOf(err), err.Error()), err
	}
	return safeParse(parseOctoPrintState, data, StatusOffline), nil
}
