package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smartflow-sim/smartflow/sim"
)

var (
	floorplanPath string
	scenarioPath  string
	logLevel      string

	seed                int64
	tickSeconds         float64
	maxTicks            int64
	congestionThreshold float64
	topN                int

	kPaths            int
	stairsPenalty     float64
	temperature       float64
	rerouteInterval   int64
	rerouteThreshold  float64
	rerouteHysteresis float64
	disabledEdges     []string

	densityJam        float64
	densityExponent   float64
	minSpeedFactor    float64
	stairsSpeedFactor float64

	windowTicks int64
	binTicks    int64
	maxPerBin   int

	progressEvery int64
)

var rootCmd = &cobra.Command{
	Use:   "smartflow",
	Short: "Congestion-aware crowd movement simulator for building corridor networks",
	Long: `smartflow simulates scheduled crowd movements (lesson changeovers,
assemblies, drills) over a building graph of corridors and staircases,
with density-dependent walking speeds, capacity-limited edge admission,
and congestion-aware rerouting. Runs are fully deterministic for a
given floorplan, scenario, and seed.`,
	RunE: runSimulation,

	SilenceUsage: true,
}

func runSimulation(cc *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)

	cfg := sim.DefaultSimulationConfig()
	cfg.Seed = seed
	cfg.TickSeconds = tickSeconds
	cfg.MaxTicks = maxTicks
	cfg.CongestionThreshold = congestionThreshold
	cfg.TopN = topN
	cfg.Router.KPaths = kPaths
	cfg.Router.StairsPenalty = stairsPenalty
	cfg.Router.Temperature = temperature
	cfg.Router.RerouteIntervalTicks = rerouteInterval
	cfg.Router.RerouteDelayThresholdS = rerouteThreshold
	cfg.Router.RerouteHysteresisMargin = rerouteHysteresis
	cfg.Router.DisabledEdges = disabledEdges
	cfg.Dynamics.DensityJam = densityJam
	cfg.Dynamics.Exponent = densityExponent
	cfg.Dynamics.MinFactor = minSpeedFactor
	cfg.Dynamics.StairsSpeedFactor = stairsSpeedFactor
	cfg.Schedule.WindowTicks = windowTicks
	cfg.Schedule.BinTicks = binTicks
	cfg.Schedule.MaxPerBin = maxPerBin
	if progressEvery > 0 {
		cfg.Progress = func(p sim.Progress) {
			if p.Tick%progressEvery == 0 {
				logrus.Infof("tick %d: %d agents active", p.Tick, p.ActiveAgents)
			}
		}
	}

	graph, err := LoadFloorplan(floorplanPath)
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(scenarioPath, cfg.TickSeconds)
	if err != nil {
		return err
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	composer := sim.NewScheduleComposer(graph, cfg.Schedule, rng)
	schedule, err := composer.Compose(*scenario)
	if err != nil {
		return err
	}
	logrus.Infof("composed %d agents (peak %d departures per %d-tick bin)",
		len(schedule.Profiles), schedule.PeakPerBin, cfg.Schedule.BinTicks)

	simulator, err := sim.NewSimulator(graph, schedule.Profiles, cfg)
	if err != nil {
		return err
	}
	simulator.SetScheduleReport(schedule)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := simulator.Run(ctx)
	if err != nil {
		return err
	}
	sim.PrintSummary(result)
	return nil
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&floorplanPath, "floorplan", "floorplan.yaml", "path to floorplan YAML")
	f.StringVar(&scenarioPath, "scenario", "scenario.yaml", "path to scenario YAML")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	f.Int64Var(&seed, "seed", 42, "master RNG seed")
	f.Float64Var(&tickSeconds, "tick-seconds", 1.0, "simulated seconds per tick")
	f.Int64Var(&maxTicks, "max-ticks", 3600, "tick budget before the run is cut off")
	f.Float64Var(&congestionThreshold, "congestion-threshold", 1.0, "density counted as congested, persons/m^2")
	f.IntVar(&topN, "top-bottlenecks", 5, "number of bottleneck edges in the summary")

	f.IntVar(&kPaths, "k-paths", 3, "alternative paths computed per origin/destination pair")
	f.Float64Var(&stairsPenalty, "stairs-penalty", 3.0, "additive route cost per stair edge")
	f.Float64Var(&temperature, "temperature", 1.0, "softmax temperature for path choice")
	f.Int64Var(&rerouteInterval, "reroute-interval", 10, "ticks between reroute checks per agent (0 disables)")
	f.Float64Var(&rerouteThreshold, "reroute-threshold", 5.0, "accumulated delay (s) before rerouting triggers")
	f.Float64Var(&rerouteHysteresis, "reroute-hysteresis", 0.10, "fractional cost improvement required to switch route")
	f.StringSliceVar(&disabledEdges, "disable-edge", nil, "edge id to exclude from routing (repeatable)")

	f.Float64Var(&densityJam, "density-jam", 3.5, "jam density, persons/m^2")
	f.Float64Var(&densityExponent, "density-exponent", 2.0, "slowdown curve exponent")
	f.Float64Var(&minSpeedFactor, "min-speed-factor", 0.1, "floor of the density speed multiplier")
	f.Float64Var(&stairsSpeedFactor, "stairs-speed-factor", 0.7, "speed multiplier on stair edges")

	f.Int64Var(&windowTicks, "window-ticks", 300, "transition window length in ticks")
	f.Int64Var(&binTicks, "bin-ticks", 5, "departure staggering bin width in ticks")
	f.IntVar(&maxPerBin, "max-per-bin", 10, "departure cap per staggering bin")

	f.Int64Var(&progressEvery, "progress-every", 0, "log progress every N ticks (0 disables)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
