package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/okulo/brine/config"
	"github.com/okulo/brine/export"
	"github.com/okulo/brine/sim"
	"github.com/okulo/brine/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	exportDir := flag.String("export-dir", "", "Directory for per-frame particle field dumps")
	duration := flag.Float64("duration", 0, "Simulated seconds to run (0 = use config)")
	logPerf := flag.Bool("log-perf", false, "Output performance stats via slog")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	params := cfg.Derived.Params
	steps := cfg.Derived.Steps
	if *duration > 0 {
		steps = int(*duration / params.Solver.Dt)
	}

	system, err := buildScene(cfg, params)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}
	defer system.Close()

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	// Export when a directory is given, or into the output directory
	// when enabled by config.
	exDir := *exportDir
	if exDir == "" && cfg.Export.Enabled && *outputDir != "" {
		exDir = filepath.Join(*outputDir, "frames")
	}
	exporter, err := export.New(exDir)
	if err != nil {
		slog.Error("failed to create exporter", "error", err)
		os.Exit(1)
	}

	collector := telemetry.NewCollector(cfg.Telemetry.Interval)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	system.SetPhaseHook(perf.RecordPhase)

	slog.Info("starting simulation",
		"method", params.Solver.Method,
		"particles", system.ParticleCount(),
		"boundaries", system.BoundaryCount(),
		"smoothing_radius", params.Fluid.SmoothingRadius,
		"dt", params.Solver.Dt,
		"steps", steps,
	)

	exportInterval := cfg.Export.Interval
	exportEnabled := exporter != nil
	if exportEnabled && exportInterval <= 0 {
		slog.Error("export enabled with non-positive interval", "interval", exportInterval)
		os.Exit(1)
	}
	nextExport := 0.0
	if exportEnabled {
		if err := exporter.WriteFrame(system.Snapshot()); err != nil {
			slog.Error("frame export failed", "error", err)
			os.Exit(1)
		}
		nextExport = exportInterval
	}

	for step := 1; step <= steps; step++ {
		perf.StartStep()
		if err := system.Step(); err != nil {
			slog.Error("step failed", "step", step, "error", err)
			os.Exit(1)
		}
		perf.EndStep()
		collector.RecordStep(system.Stats(), system.LastSolve())

		if exportEnabled && system.Time() >= nextExport {
			if err := exporter.WriteFrame(system.Snapshot()); err != nil {
				slog.Error("frame export failed", "frame", exporter.Frame(), "error", err)
				os.Exit(1)
			}
			nextExport += exportInterval
		}

		if collector.ShouldFlush(step) {
			stats := collector.Flush(step, system.Time(), system.ParticleCount(),
				system.Stats(), system.Pressures(), system.Speeds())
			stats.LogStats()
			if err := om.WriteTelemetry(stats); err != nil {
				slog.Error("telemetry write failed", "error", err)
				os.Exit(1)
			}
			perfStats := perf.Stats()
			if *logPerf {
				perfStats.LogStats()
			}
			if err := om.WritePerf(perfStats, step); err != nil {
				slog.Error("perf write failed", "error", err)
				os.Exit(1)
			}
		}
	}

	slog.Info("simulation finished",
		"steps", system.Steps(),
		"sim_time", system.Time(),
		"particles", system.ParticleCount(),
		"frames", exporter.Frame(),
	)
}

// buildScene assembles the configured scene: a sealed boundary
// container, a block of fluid, and an optional inlet source.
func buildScene(cfg *config.Config, params sim.Params) (*sim.System, error) {
	system, err := sim.New(params)
	if err != nil {
		return nil, err
	}

	scene := cfg.Scene
	system.AddBoundaryBox(scene.Container.Offset.Vec(), scene.Container.Size.Vec())
	system.AddParticleBox(scene.FluidBox.Offset.Vec(), scene.FluidBox.Size.Vec())

	if scene.Source.Enabled {
		src, err := sim.NewSource(
			scene.Source.Center.Vec(),
			scene.Source.Radius,
			scene.Source.Spacing,
			scene.Source.Velocity.Vec(),
			scene.Source.Start,
			scene.Source.End,
		)
		if err != nil {
			system.Close()
			return nil, err
		}
		system.AddSource(src)
	}

	if err := system.Init(); err != nil {
		system.Close()
		return nil, err
	}
	return system, nil
}
