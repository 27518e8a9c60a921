// Package tick implements the fixed-rate scheduler that drives the world
// simulator: a time.Ticker loop producing strictly ordered tick-ids at
// TICK_RATE Hz, with rolling TPS measurement and an operator warning when
// the achieved rate falls too far behind target.
//
// Grounded on dragonfly's server/world/tick.go ticker.tickLoop: the
// rolling-average TPS sample window, the warn-once-until-recovered
// threshold logic, and the "tick callback invoked once per interval"
// shape. The callback itself is supplied by the caller (package world)
// rather than being a method on this type, since this package must not
// import world (world imports tick).
package tick

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"worldcore/logging"
)

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 0.95 // fraction of target rate
)

// Func is invoked once per tick, receiving the elapsed wall time since the
// previous invocation (the nominal interval is used if the measured value
// is not positive).
type Func func(tickID uint64, dt time.Duration)

// Clock drives a fixed-rate tick loop and exposes the current tick-id and
// a rolling ticks-per-second estimate.
type Clock struct {
	interval time.Duration
	targetHz float64

	current atomic.Uint64
	tpsBits atomic.Uint64 // math.Float64bits(tps)

	log *logging.Logger
}

// New creates a Clock targeting rate Hz (20 by default per spec's
// TICK_RATE). log may be nil, in which case logging.Default() is used.
func New(rateHz float64, log *logging.Logger) *Clock {
	if rateHz <= 0 {
		rateHz = 20
	}
	if log == nil {
		log = logging.Default()
	}
	return &Clock{
		interval: time.Duration(float64(time.Second) / rateHz),
		targetHz: rateHz,
		log:      log,
	}
}

// Current returns the most recently completed tick-id (0 before the first
// tick runs).
func (c *Clock) Current() uint64 { return c.current.Load() }

// TPS returns the rolling-average ticks-per-second estimate, or 0 before
// the first full sample window completes.
func (c *Clock) TPS() float64 {
	return math.Float64frombits(c.tpsBits.Load())
}

// Run blocks, invoking fn once per tick at the configured rate, until ctx
// is cancelled. Mirrors dragonfly's tickLoop structure: a time.Ticker
// select loop with a rolling duration-sum/count sample window.
func (c *Clock) Run(ctx context.Context, fn Func) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	lastTick := time.Now()
	var durationSum time.Duration
	var sampleCount int
	warned := false

	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			if dt <= 0 {
				dt = c.interval
			}

			durationSum += dt
			sampleCount++
			if sampleCount >= tpsSampleSize {
				avg := durationSum / time.Duration(sampleCount)
				if avg > 0 {
					tps := 1.0 / avg.Seconds()
					c.tpsBits.Store(math.Float64bits(tps))
					if tps < c.targetHz*tpsWarningThreshold {
						if !warned {
							c.log.Warn("tick rate dropped below threshold", map[string]interface{}{
								"tps":    tps,
								"target": c.targetHz,
							})
							warned = true
						}
					} else {
						warned = false
					}
				}
				durationSum = 0
				sampleCount = 0
			}

			id := c.current.Add(1)
			fn(id, dt)
		case <-ctx.Done():
			return
		}
	}
}
