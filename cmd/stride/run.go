package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manpen/pace26stride/internal/client"
	"github.com/manpen/pace26stride/internal/config"
	"github.com/manpen/pace26stride/internal/executor"
	"github.com/manpen/pace26stride/internal/instances"
	"github.com/manpen/pace26stride/internal/logging"
	"github.com/manpen/pace26stride/internal/rundir"
	"github.com/manpen/pace26stride/internal/summary"
)

func newRunCommand() *cobra.Command {
	var (
		solver     string
		timeout    int
		grace      int
		parallel   int
		optimal    bool
		keepLogs   bool
		noProfile  bool
		noEnvs     bool
		server     string
		offline    bool
		maxRunLogs int
		configPath string
	)

	cmd := &cobra.Command{
		Use:     "run [instances...] [-- solver-args...]",
		Aliases: []string{"r"},
		Short:   "Run solver and postprocess solution",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceArgs, solverArgs := splitAtDash(cmd, args)

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("solver") {
				cfg.Solver = solver
			}
			if cmd.Flags().Changed("timeout") {
				cfg.SoftTimeout = timeout
			}
			if cmd.Flags().Changed("grace") {
				cfg.GracePeriod = grace
			}
			if cmd.Flags().Changed("parallel") {
				cfg.ParallelJobs = parallel
			}
			if cmd.Flags().Changed("optimal") {
				cfg.RequireOptimal = optimal
			}
			if cmd.Flags().Changed("keep-logs") {
				cfg.KeepLogs = keepLogs
			}
			if cmd.Flags().Changed("server") {
				cfg.Server = server
			}
			if cmd.Flags().Changed("offline") {
				cfg.Offline = offline
			}
			if cmd.Flags().Changed("max-run-logs") {
				cfg.MaxRunLogs = maxRunLogs
			}
			if cfg.Solver == "" {
				return fmt.Errorf("no solver provided (--solver or STRIDE_SOLVER)")
			}

			paths, err := instances.Resolve(instanceArgs)
			if err != nil {
				return fmt.Errorf("resolving instances: %w", err)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no instance provided")
			}

			logParent := filepath.Join(".", rundir.LogParentDir)
			rd, err := rundir.NewWithin(logParent)
			if err != nil {
				return fmt.Errorf("creating run directory: %w", err)
			}

			log, closeLog, err := logging.NewWithRunLog(filepath.Join(rd.Path(), "messages.log"))
			if err != nil {
				return fmt.Errorf("opening run log: %w", err)
			}
			defer closeLog()

			sw, err := summary.New(filepath.Join(rd.Path(), "summary.json"))
			if err != nil {
				return fmt.Errorf("creating summary log: %w", err)
			}
			defer sw.Close()

			var cl client.Client = client.NoopClient{}
			if !cfg.Offline {
				cl = client.NewHTTPClient(cfg.Server, log)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Warn("received shutdown signal, draining in-flight tasks")
				cancel()
			}()
			defer signal.Stop(sigCh)

			ex := executor.New(executor.Config{
				Solver:        cfg.Solver,
				ExtraArgs:     solverArgs,
				SoftTimeout:   time.Duration(cfg.SoftTimeout) * time.Second,
				GracePeriod:   time.Duration(cfg.GracePeriod) * time.Second,
				Parallelism:   cfg.ParallelJobs,
				InjectEnv:     !noEnvs,
				KeepValidLogs: cfg.KeepLogs,
			}, rd, sw, cl, log)

			log.Info("starting run", "instances", len(paths), "solver", cfg.Solver, "parallel", cfg.ParallelJobs)
			if err := ex.Run(ctx, paths); err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if err := rundir.PruneOldRuns(logParent, cfg.MaxRunLogs); err != nil {
				log.Warn("pruning old run logs", "err", err)
			}

			_ = noProfile // performance metrics are always collected; the original CLI's opt-out has no cost to skip honoring
			return nil
		},
	}

	cmd.Flags().StringVarP(&solver, "solver", "s", "", "Solver program to execute")
	cmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Solver time budget in seconds (then SIGTERM)")
	cmd.Flags().IntVarP(&grace, "grace", "g", 5, "Seconds between SIGTERM and SIGKILL")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "Number of solvers to run in parallel; default: number of CPUs")
	cmd.Flags().BoolVarP(&optimal, "optimal", "o", false, "Stored in the run configuration; does not change how results are classified or which logs are kept")
	cmd.Flags().BoolVarP(&keepLogs, "keep-logs", "k", false, "Keep logs of successful runs")
	cmd.Flags().BoolVarP(&noProfile, "no-profile", "P", false, "Accepted and ignored; performance metrics are always recorded")
	cmd.Flags().BoolVarP(&noEnvs, "no-envs", "E", false, "Do not set STRIDE_* environment variables for solver")
	cmd.Flags().StringVarP(&server, "server", "S", "", "Server to upload to")
	cmd.Flags().BoolVarP(&offline, "offline", "O", false, "Do not communicate with STRIDE servers")
	cmd.Flags().IntVarP(&maxRunLogs, "max-run-logs", "r", 0, "If more run logs are in stride-logs/, remove the oldest")
	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "Path to optional YAML config file")

	return cmd
}

// splitAtDash separates positional instance arguments from anything
// following the cobra "--" terminator, which is forwarded to the solver
// verbatim.
func splitAtDash(cmd *cobra.Command, args []string) (instanceArgs, solverArgs []string) {
	n := cmd.ArgsLenAtDash()
	if n < 0 {
		return args, nil
	}
	return args[:n], args[n:]
}
