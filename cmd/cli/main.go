// Command roadsim runs a macroscopic road-traffic simulation.
//
// With -scenario (JSON or YAML) or -sumocfg it loads the network and demand,
// runs the simulation to the end and writes the selected outputs. With -serve
// it instead exposes the simulation over HTTP and lets a client drive it.
//
// Without either input flag it keeps the plain pipe mode: a SimulationInput
// JSON is read from the file argument (or stdin) and the SimulationLog JSON is
// written to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cxd309/roadsim/internal/config"
	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/loader"
	"github.com/cxd309/roadsim/internal/logger"
	"github.com/cxd309/roadsim/internal/output"
	"github.com/cxd309/roadsim/internal/server"
	"github.com/cxd309/roadsim/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		logger.Error("CLI", err.Error())
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML configuration file")
	name := flag.String("name", "", "simulation name, used for the run directory and output file names")
	scenario := flag.String("scenario", "", "scenario file (.json, .yaml)")
	sumocfg := flag.String("sumocfg", "", "SUMO configuration file (.sumocfg)")
	vTypes := flag.String("vehiclesTypesFile", "", "SUMO routes file holding the vehicle types")
	outDir := flag.String("outputs", "", "parent directory of the run output directories")
	lightLM := flag.Bool("lightLoadsMatrix", false, "write the light loads matrix of every step")
	loadsM := flag.Bool("loadsMatrix", false, "write the loads matrix of every step")
	edgeData := flag.Bool("edgeData", false, "write per-edge statistics at the end")
	tripInfos := flag.Bool("tripInfos", false, "write trip information at the end")
	overwrite := flag.Bool("overwrite", false, "overwrite existing outputs")
	dbPath := flag.String("db", "", "SQLite database recording the run")
	step := flag.Float64("step", 0, "step length override (seconds)")
	end := flag.Float64("end", 0, "end time override (seconds)")
	profiling := flag.Bool("profilingTime", false, "log per-phase timings")
	samples := flag.Int("avgProfilingTime", 0, "number of runs averaged for profiling")
	serve := flag.Bool("serve", false, "let a client drive the simulation over HTTP")
	port := flag.Int("port", 0, "HTTP port of the remote-control server")
	export := flag.String("export", "", "write the loaded scenario to this file (.json, .yaml) and exit")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (text, json)")
	flag.Parse()

	if err := config.LoadEnvFile(); err != nil {
		logger.Debug("CLI", "no .env file found, using environment")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(flagName string, apply func()) {
		if set[flagName] {
			apply()
		}
	}
	override("name", func() { cfg.Name = *name })
	override("scenario", func() { cfg.Scenario = *scenario })
	override("sumocfg", func() { cfg.SumoConfig = *sumocfg })
	override("vehiclesTypesFile", func() { cfg.VehicleTypes = *vTypes })
	override("outputs", func() { cfg.OutputDir = *outDir })
	override("lightLoadsMatrix", func() { cfg.Outputs.LightLoadsMatrix = *lightLM })
	override("loadsMatrix", func() { cfg.Outputs.LoadsMatrix = *loadsM })
	override("edgeData", func() { cfg.Outputs.EdgeData = *edgeData })
	override("tripInfos", func() { cfg.Outputs.TripInfos = *tripInfos })
	override("overwrite", func() { cfg.Overwrite = *overwrite })
	override("db", func() { cfg.Database = *dbPath })
	override("step", func() { cfg.StepLength = *step })
	override("end", func() { cfg.EndTime = end })
	override("profilingTime", func() { cfg.Profiling = *profiling })
	override("avgProfilingTime", func() { cfg.Profiling = true; cfg.ProfilingSamples = *samples })
	override("serve", func() { cfg.Serve = *serve })
	override("port", func() { cfg.Port = *port })
	override("log-level", func() { cfg.LogLevel = *logLevel })
	override("log-format", func() { cfg.LogFormat = *logFormat })

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}

	if cfg.Scenario == "" && cfg.SumoConfig == "" {
		return pipe(flag.Args())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	input, remotePort, err := load(cfg)
	if err != nil {
		return err
	}
	if *export != "" {
		return loader.WriteScenario(*export, input)
	}
	if remotePort > 0 && !set["port"] && os.Getenv("ROADSIM_PORT") == "" {
		cfg.Port = remotePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Banner(version)
	if cfg.Serve {
		return serveSimulation(ctx, cfg, input)
	}
	return runStandalone(ctx, cfg, input)
}

// pipe is the plain JSON-in, JSON-out mode.
func pipe(args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	result, err := engine.RunJSON(string(data))
	if err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}
	fmt.Println(result)
	return nil
}

// load reads the scenario and applies the timing overrides of cfg. The second
// result is the remote-control port declared by a SUMO configuration.
func load(cfg *config.Config) (engine.SimulationInput, int, error) {
	var (
		input engine.SimulationInput
		port  int
		err   error
	)
	logger.Section("Loading")
	if cfg.SumoConfig != "" {
		var sc *loader.SumoConfig
		input, sc, err = loader.ReadSumo(cfg.SumoConfig, cfg.VehicleTypes)
		if err != nil {
			return input, 0, err
		}
		port = sc.RemotePort
	} else {
		if input, err = loader.ReadScenario(cfg.Scenario); err != nil {
			return input, 0, err
		}
	}

	if cfg.StepLength > 0 {
		input.Meta.StepLength = cfg.StepLength
	}
	if cfg.BeginTime != nil {
		input.Meta.BeginTime = *cfg.BeginTime
	}
	if cfg.EndTime != nil {
		input.Meta.EndTime = cfg.EndTime
	}
	if cfg.EdgeStatistics || cfg.Outputs.EdgeData {
		input.Meta.EdgeStatistics = true
	}
	logger.Stats("nodes", len(input.GraphData.Nodes))
	logger.Stats("edges", len(input.GraphData.Edges))
	logger.Stats("vehicles", len(input.VehicleList))
	return input, port, nil
}

// recorders builds the file and database recorders selected by cfg. The
// returned close function releases the database.
func recorders(cfg *config.Config, meta engine.SimulationMeta) ([]engine.Recorder, func(), error) {
	target := output.Target{Dir: cfg.OutputDir, Name: cfg.Name, Overwrite: cfg.Overwrite}
	if cfg.Outputs.Any() {
		var err error
		if target, err = target.Resolve(); err != nil {
			return nil, nil, err
		}
		logger.WithTag("OUT").WithField("dir", target.Dir).Info("writing outputs")
	}
	var rs []engine.Recorder
	if cfg.Outputs.LightLoadsMatrix {
		rs = append(rs, output.NewLightLoadsWriter(target))
	}
	if cfg.Outputs.LoadsMatrix {
		rs = append(rs, output.NewLoadsWriter(target))
	}
	if cfg.Outputs.EdgeData {
		rs = append(rs, output.NewEdgeDataWriter(target))
	}
	if cfg.Outputs.TripInfos {
		rs = append(rs, output.NewTripInfosWriter(target))
	}

	closeFn := func() {}
	if cfg.Database != "" {
		db, err := store.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		rec, err := db.StartRun(cfg.Name, meta)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.WithTag("DB").WithField("run_id", rec.RunID()).Info("recording run")
		rs = append(rs, rec)
		closeFn = func() { db.Close() }
	}
	return rs, closeFn, nil
}

func newSimulation(cfg *config.Config, input engine.SimulationInput, withRecorders bool) (*engine.Simulation, func(), error) {
	var opts []engine.Option
	if cfg.Profiling {
		opts = append(opts, engine.WithProfiling())
	}
	closeFn := func() {}
	if withRecorders {
		rs, c, err := recorders(cfg, input.Meta)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, engine.WithRecorders(rs...))
		closeFn = c
	}
	sim, err := engine.NewFromInput(input, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return sim, closeFn, nil
}

// runStandalone runs the simulation cfg.ProfilingSamples times. Only the last
// run writes outputs; the others feed the average duration.
func runStandalone(ctx context.Context, cfg *config.Config, input engine.SimulationInput) error {
	var total time.Duration
	for i := 1; i <= cfg.ProfilingSamples; i++ {
		last := i == cfg.ProfilingSamples
		sim, closeFn, err := newSimulation(cfg, input, last)
		if err != nil {
			return err
		}
		logger.Section(fmt.Sprintf("Run %d/%d", i, cfg.ProfilingSamples))
		err = sim.Run(ctx)
		closeFn()
		if err != nil {
			return err
		}
		total += sim.Profile().Duration()
	}
	if cfg.ProfilingSamples > 1 {
		avg := total / time.Duration(cfg.ProfilingSamples)
		logger.Stats("average_run_seconds", avg.Seconds())
	}
	logger.Success("CLI", "simulation complete")
	return nil
}

func serveSimulation(ctx context.Context, cfg *config.Config, input engine.SimulationInput) error {
	sim, closeFn, err := newSimulation(cfg, input, true)
	if err != nil {
		return err
	}
	defer closeFn()
	return server.New(sim).Run(ctx, cfg.Addr())
}
