package tracking

import (
	"context"
	"time"

	"dronefood-storefront/internal/domain"
)

// Ticker is the part of time.Ticker the simulation uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the default TickerFunc.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// stepSample is the marker state after step s of a plan with N points. Progress is
// s/N by point index, not by elapsed time relative to TotalTimeSeconds.
type stepSample struct {
	position          domain.LatLng
	remainingDistance float64
	remainingTime     float64
	arrived           bool
}

func sampleStep(plan domain.RoutePlan, destination domain.LatLng, s int) stepSample {
	n := plan.Len()
	if s >= n {
		return stepSample{position: destination, arrived: true}
	}
	progress := float64(s) / float64(n)
	return stepSample{
		position:          plan.Coordinates[s],
		remainingDistance: plan.TotalDistanceMeters * (1 - progress),
		remainingTime:     plan.TotalTimeSeconds * (1 - progress),
	}
}

// simulate walks plan one point per tick until it reaches the destination or ctx
// is cancelled. apply returns false when the run has been superseded.
func simulate(ctx context.Context, ticker Ticker, plan domain.RoutePlan, destination domain.LatLng, apply func(stepSample) bool) {
	defer ticker.Stop()
	for s := 0; ; s++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if ctx.Err() != nil {
			return
		}
		sample := sampleStep(plan, destination, s)
		if !apply(sample) || sample.arrived {
			return
		}
	}
}
