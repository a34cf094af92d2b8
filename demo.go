package main

import (
	"context"
	"time"
)

// DemoAdapter simulates a print job from wall-clock time alone: a printing
// phase with linearly increasing progress, a short pause, then idle, on
// repeat. No network I/O, never fails. Useful for development and for
// running the dashboard without a printer.
type DemoAdapter struct {
	start time.Time
	now   func() time.Time // swappable clock for tests
}

func NewDemoAdapter() *DemoAdapter {
	return &DemoAdapter{
		start: time.Now(),
		now:   time.Now,
	}
}

func (a *DemoAdapter) Name() string { return "demo" }

// Fetch computes the state for the current point in the simulated cycle.
// Synchronous and deterministic given the clock.
func (a *DemoAdapter) Fetch(_ context.Context) (PrinterState, error) {
	elapsed := a.now().Sub(a.start)
	cycle := elapsed % (DemoPrintDuration + DemoPauseDuration + DemoIdleDuration)

	switch {
	case cycle < DemoPrintDuration:
		progress := cycle.Seconds() / DemoPrintDuration.Seconds()
		remaining := int((DemoPrintDuration - cycle).Seconds())
		return demoState(StatusPrinting, floatPtr(progress), intPtr(remaining), "demo_model.gcode"), nil
	case cycle < DemoPrintDuration+DemoPauseDuration:
		return demoState(StatusPaused, floatPtr(0.75), intPtr(30), "demo_model.gcode"), nil
	default:
		return demoState(StatusIdle, nil, nil, ""), nil
	}
}

// demoState assembles a simulated snapshot. Temperatures are only reported
// while printing, mirroring a real printer at rest.
func demoState(status Status, progress *float64, eta *int, jobName string) PrinterState {
	now := time.Now()
	state := PrinterState{
		Status:     status,
		Progress:   clamp(progress, 0.0, 1.0),
		ETASeconds: eta,
		JobName:    jobName,
		LastOK:     &now,
	}
	if status == StatusPrinting {
		state.NozzleTemp = floatPtr(215.0)
		state.BedTemp = floatPtr(60.0)
	}
	return state
}
