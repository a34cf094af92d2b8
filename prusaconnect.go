package main

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PrusaConnect's cloud schema is the loosest of the four dialects: every
// logical field may sit at the root, under a "printer"/"job" pair, or under
// a synonymous name. Flat form:
//
//	{"state": "PRINTING", "progress": 45.5, "time_remaining": 1800,
//	 "temp_nozzle": 215.0, "temp_bed": 60.0, "file_name": "model.gcode"}
//
// Nested form:
//
//	{"printer": {"state": "PRINTING", "temp_nozzle": 215, "temp_bed": 60},
//	 "job": {"progress": 45.5, "time_remaining": 1800, "file_name": "model.gcode"}}

// prusaConnectKnownFields are the top-level keys the parser consumes;
// anything else is tolerated and logged once per response at most.
var prusaConnectKnownFields = map[string]bool{
	"state": true, "status": true, "progress": true, "time_remaining": true,
	"temp_nozzle": true, "temp_bed": true, "nozzle_temp": true, "bed_temp": true,
	"file_name": true, "filename": true, "printer": true, "job": true,
	"temperature": true,
}

// parsePrusaConnectState extracts what it can from whichever shape arrived.
// Missing or wrong-typed candidates are skipped, never fatal.
func parsePrusaConnectState(data map[string]any) PrinterState {
	now := time.Now()
	printer := getMap(data, "printer")
	job := getMap(data, "job")

	statusStr := getString(data, "state", "status")
	if statusStr == "" {
		statusStr = getString(printer, "state", "status")
	}

	state := PrinterState{
		Status: normalizeStatus(statusStr),
		LastOK: &now,
	}

	progress := getFloat(data, "progress", "completion")
	if progress == nil {
		progress = getFloat(job, "progress", "completion")
	}
	state.Progress = normalizeProgress(progress)

	eta := getInt(data, "time_remaining")
	if eta == nil {
		eta = getInt(job, "time_remaining", "printTimeLeft")
	}
	state.ETASeconds = eta

	state.NozzleTemp, state.BedTemp = prusaConnectTemps(data, printer)

	jobName := getString(data, "file_name", "filename")
	if jobName == "" {
		jobName = getString(job, "file_name", "filename")
	}
	if jobName == "" {
		jobName = getString(getMap(job, "file"), "name")
	}
	state.JobName = jobName

	for key := range data {
		if !prusaConnectKnownFields[key] {
			log.Printf("PrusaConnect response contains unknown field %q (ignored)", key)
		}
	}

	return state
}

// prusaConnectTemps tries the three temperature shapes in priority order:
// flat fields at the root, flat fields under "printer", then an
// OctoPrint-style "temperature" object with {nozzle,bed} or
// {tool0:{actual},bed:{actual}} entries.
func prusaConnectTemps(data, printer map[string]any) (nozzle, bed *float64) {
	nozzle = getFloat(data, "temp_nozzle", "nozzle_temp")
	bed = getFloat(data, "temp_bed", "bed_temp")

	if nozzle == nil && printer != nil {
		nozzle = getFloat(printer, "temp_nozzle", "nozzle_temp")
		bed = getFloat(printer, "temp_bed", "bed_temp")
	}

	if nozzle == nil {
		if temps := getMap(data, "temperature"); temps != nil {
			nozzle = getFloat(temps, "nozzle")
			if nozzle == nil {
				nozzle = actualTemp(temps["tool0"])
			}
			if b := getFloat(temps, "bed"); b != nil {
				bed = b
			} else if b := actualTemp(temps["bed"]); b != nil {
				bed = b
			}
		}
	}

	return nozzle, bed
}

// PrusaConnectAdapter fetches from the Prusa Connect cloud API with bearer
// token auth. No automatic login: the user generates a token in their
// account and provides it via config.
type PrusaConnectAdapter struct {
	httpFetcher
	statusPath  string
	bearerToken string
}

func NewPrusaConnectAdapter(cfg *Config) (*PrusaConnectAdapter, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("prusaconnect backend requires a bearer token")
	}
	if cfg.PrinterID == "" {
		return nil, fmt.Errorf("prusaconnect backend requires a printer id")
	}

	statusPath := cfg.StatusPath
	if statusPath == "" {
		statusPath = PrusaConnectStatusPath
	}

	return &PrusaConnectAdapter{
		httpFetcher: newHTTPFetcher(cfg.PrinterBaseURL, cfg),
		statusPath:  statusPath,
		bearerToken: cfg.BearerToken,
	}, nil
}

func (a *PrusaConnectAdapter) Name() string { return "prusaconnect" }

func (a *PrusaConnectAdapter) Fetch(ctx context.Context) (PrinterState, error) {
	headers := map[string]string{"Authorization": "Bearer " + a.bearerToken}
	data, _, err := a.getJSON(ctx, a.statusPath, headers)
	if err != nil {
		return errorState(StatusError, categoryOf(err), err.Error()), err
	}
	return safeParse(parsePrusaConnectState, data, StatusError), nil
}
