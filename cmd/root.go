package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simblox/simblox/sim"
	"github.com/simblox/simblox/sim/models"
	"github.com/simblox/simblox/sim/plugins"
	_ "github.com/simblox/simblox/sim/units"
)

var (
	// CLI flags shared by the subcommands
	logLevel string // Log verbosity level

	// CLI flags for run
	showStats     bool    // Print per-model timing after the run
	realtime      bool    // Pace steps to the wall clock
	endTime       float64 // Simulated end time in seconds
	traversalMode string  // sequential, dependent or parallel
	frequency     int     // Base update frequency in Hz
	savePath      string  // Write the simulation document here after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simblox",
	Short: "Block-diagram simulation kernel",
}

// setLogLevel applies the --log flag
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// newEnvironment returns a factory and plugin host holding every built-in
func newEnvironment() (*sim.Factory, *sim.PluginHost) {
	host := sim.NewPluginHost()
	plugins.Register(host)
	return models.NewFactory(), host
}

// runCmd loads a simulation document and runs it to its end time
var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a simulation document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		opts := runOptions{stats: showStats, save: savePath}
		if cmd.Flags().Changed("realtime") {
			opts.realtime = &realtime
		}
		if cmd.Flags().Changed("endtime") {
			opts.endTime = &endTime
		}
		if cmd.Flags().Changed("traversal") {
			opts.traversal = traversalMode
		}
		if cmd.Flags().Changed("frequency") {
			opts.frequency = frequency
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runDocument(ctx, args[0], opts, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// listCmd prints the model catalogue
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available model types and plugins",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		f, host := newEnvironment()
		if err := writeModelList(os.Stdout, f); err != nil {
			logrus.Fatalf("Listing models failed: %v", err)
		}
		writePluginList(os.Stdout, host)
	},
}

// treeCmd draws the model hierarchy of a document
var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Draw the model tree of a simulation document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		s, err := buildSimulation(args[0], runOptions{})
		if err != nil {
			logrus.Fatalf("Loading %s failed: %v", args[0], err)
		}
		defer s.Close()
		writeTree(os.Stdout, s.Root())
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().BoolVar(&showStats, "stats", false, "Print per-model init and update times after the run")
	runCmd.Flags().BoolVar(&realtime, "realtime", true, "Pace the simulation to the wall clock (overrides the document)")
	runCmd.Flags().Float64Var(&endTime, "endtime", 0, "Simulated end time in seconds, 0 runs until interrupted (overrides the document)")
	runCmd.Flags().StringVar(&traversalMode, "traversal", "dependent", "Traversal mode: sequential, dependent or parallel (overrides the document)")
	runCmd.Flags().IntVar(&frequency, "frequency", 0, "Base update frequency in Hz (overrides the document)")
	runCmd.Flags().StringVar(&savePath, "save", "", "Write the simulation document to this .yaml or .toml file after the run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(treeCmd)
}
