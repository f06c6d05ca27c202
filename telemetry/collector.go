package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/okulo/brine/sim"
)

// Collector accumulates per-step solver results within step windows and
// produces WindowStats.
type Collector struct {
	windowSteps     int
	windowStartStep int

	densities   []float64
	iterations  []float64
	lastError   float64
	unconverged int
}

// NewCollector creates a stats collector flushing every windowSteps
// steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: windowSteps}
}

// RecordStep records one step's aggregate diagnostics and solve result.
func (c *Collector) RecordStep(stats sim.Stats, solve sim.SolveResult) {
	c.densities = append(c.densities, stats.MeanDensity)
	c.iterations = append(c.iterations, float64(solve.Iterations))
	c.lastError = solve.Error
	if !solve.Converged {
		c.unconverged++
	}
}

// ShouldFlush reports whether the window ending at currentStep is full.
func (c *Collector) ShouldFlush(currentStep int) bool {
	return currentStep-c.windowStartStep >= c.windowSteps
}

// Flush produces a WindowStats from the accumulated steps plus the
// caller-sampled field values, and resets for the next window.
func (c *Collector) Flush(
	currentStep int,
	simTime float64,
	particles int,
	current sim.Stats,
	pressures, speeds []float64,
) WindowStats {
	iterMax := 0
	for _, it := range c.iterations {
		if int(it) > iterMax {
			iterMax = int(it)
		}
	}
	var densityStd float64
	if len(c.densities) > 1 {
		densityStd = math.Sqrt(stat.Variance(c.densities, nil))
	}

	pStats := ComputeFieldStats(pressures)
	vStats := ComputeFieldStats(speeds)

	out := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      simTime,

		Particles: particles,

		MeanDensity:        stat.Mean(c.densities, nil),
		DensityStd:         densityStd,
		DensityFluctuation: current.DensityFluctuation,
		RealVolume:         current.RealVolume,

		SolverIterMean:   stat.Mean(c.iterations, nil),
		SolverIterMax:    iterMax,
		SolverError:      c.lastError,
		UnconvergedSteps: c.unconverged,

		PressureMean: pStats.Mean,
		PressureP50:  pStats.P50,
		PressureP90:  pStats.P90,
		PressureMax:  pStats.Max,

		SpeedMean: vStats.Mean,
		SpeedMax:  vStats.Max,
	}

	c.windowStartStep = currentStep
	c.densities = c.densities[:0]
	c.iterations = c.iterations[:0]
	c.unconverged = 0

	return out
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() int {
	return c.windowSteps
}
