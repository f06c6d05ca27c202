package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated solver statistics for a step window.
type WindowStats struct {
	WindowStartStep int     `csv:"-"`
	WindowEndStep   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Particle population at window end
	Particles int `csv:"particles"`

	// Density (window means over per-step aggregates)
	MeanDensity        float64 `csv:"mean_density"`
	DensityStd         float64 `csv:"density_std"`
	DensityFluctuation float64 `csv:"density_fluct"`
	RealVolume         float64 `csv:"real_volume"`

	// Pressure solve
	SolverIterMean   float64 `csv:"solver_iter_mean"`
	SolverIterMax    int     `csv:"solver_iter_max"`
	SolverError      float64 `csv:"solver_error"`
	UnconvergedSteps int     `csv:"unconverged_steps"`

	// Field distributions (sampled at window end)
	PressureMean float64 `csv:"pressure_mean"`
	PressureP50  float64 `csv:"pressure_p50"`
	PressureP90  float64 `csv:"pressure_p90"`
	PressureMax  float64 `csv:"pressure_max"`

	SpeedMean float64 `csv:"speed_mean"`
	SpeedMax  float64 `csv:"speed_max"`
}

// FieldStats summarizes a per-particle scalar field.
type FieldStats struct {
	Mean float64
	P50  float64
	P90  float64
	Max  float64
}

// ComputeFieldStats calculates mean, percentiles, and max of a field.
func ComputeFieldStats(values []float64) FieldStats {
	n := len(values)
	if n == 0 {
		return FieldStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return FieldStats{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
		Max:  sorted[n-1],
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartStep),
		slog.Int("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Float64("mean_density", s.MeanDensity),
		slog.Float64("density_std", s.DensityStd),
		slog.Float64("density_fluct", s.DensityFluctuation),
		slog.Float64("real_volume", s.RealVolume),
		slog.Float64("solver_iter_mean", s.SolverIterMean),
		slog.Int("solver_iter_max", s.SolverIterMax),
		slog.Float64("solver_error", s.SolverError),
		slog.Int("unconverged_steps", s.UnconvergedSteps),
		slog.Float64("pressure_mean", s.PressureMean),
		slog.Float64("pressure_p50", s.PressureP50),
		slog.Float64("pressure_p90", s.PressureP90),
		slog.Float64("pressure_max", s.PressureMax),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_max", s.SpeedMax),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndStep,
		"sim_time", s.SimTimeSec,
		"particles", s.Particles,
		"mean_density", s.MeanDensity,
		"density_fluct", s.DensityFluctuation,
		"real_volume", s.RealVolume,
		"solver_iter_mean", s.SolverIterMean,
		"solver_iter_max", s.SolverIterMax,
		"solver_error", s.SolverError,
		"unconverged_steps", s.UnconvergedSteps,
		"pressure_max", s.PressureMax,
		"speed_max", s.SpeedMax,
	)
}
