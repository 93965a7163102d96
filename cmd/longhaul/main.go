package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"longhaul/internal/config"
	"longhaul/internal/integrations"
	"longhaul/internal/logging"
	"longhaul/internal/marathon"
	"longhaul/internal/orchestrator"
	"longhaul/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "longhaul",
	Short: "longhaul - symbolic command orchestration with marathon continuity",
	Long: `longhaul routes short symbolic commands through a multi-step pipeline
(context load, task execution, knowledge update, marathon mode) and
checkpoints long-running work so it survives context loss and can be
resumed in a fresh session.

Trigger symbols:
  ---  load knowledge context
  +++  execute the task
  ...  update accumulated knowledge
  ***  marathon mode (long-running continuity)

Example:
  longhaul run "--- +++ scrape https://example.org/report"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// runtime bundles the wired collaborators for one process.
type runtime struct {
	cfg   *config.Config
	local *store.LocalStore
	tools *integrations.StandardManager
	orch  *orchestrator.Orchestrator
	stop  func()
}

// setup wires config, store, integrations, marathon machine, and the
// orchestrator.
func setup() (*runtime, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	logging.ApplySettings(cfg.Logging)

	stopWatch, err := config.Watch(workspace)
	if err != nil {
		logger.Debug("config watch unavailable", zap.Error(err))
		stopWatch = func() {}
	}

	local, err := store.NewLocalStore(cfg.Knowledge.Path)
	if err != nil {
		stopWatch()
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}

	tools := integrations.NewStandardManager(cfg.Integrations, local)
	machine := marathon.NewMachineWithStatePath(local, filepath.Join(workspace, ".longhaul", "marathon.json"))
	orch := orchestrator.New(cfg, local, local, tools, machine)

	return &runtime{cfg: cfg, local: local, tools: tools, orch: orch, stop: stopWatch}, nil
}

// teardown shuts the orchestrator and collaborators down in order.
func (r *runtime) teardown(cmd *cobra.Command) {
	r.orch.Shutdown(cmd.Context())
	if err := r.tools.Close(); err != nil {
		logger.Debug("integration close failed", zap.Error(err))
	}
	if err := r.local.Close(); err != nil {
		logger.Debug("store close failed", zap.Error(err))
	}
	r.stop()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(marathonCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
