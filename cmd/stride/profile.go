package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// newProfileCommand runs a solver once in isolation and reports the same
// telemetry the run subcommand would attach to a task record, without
// going through the instance corpus or the checker. Output is emitted as
// "#s KEY VALUE" lines on stdout, the PACE26 metadata line format; the keys
// carry the reserved s_ prefix, which the parser rejects in solution input.
// It exists for solver authors to
// sanity-check resource usage before a full run.
func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile <solver> [solver-args...]",
		Aliases: []string{"p"},
		Short:   "Run a solver once and report resource usage",
		Hidden:  true,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			solver, solverArgs := args[0], args[1:]

			c := exec.Command(solver, solverArgs...)
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

			start := time.Now()
			if err := c.Start(); err != nil {
				return fmt.Errorf("starting solver: %w", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			done := make(chan error, 1)
			go func() { done <- c.Wait() }()

			var waitErr error
		loop:
			for {
				select {
				case waitErr = <-done:
					break loop
				case sig := <-sigCh:
					pid := c.Process.Pid
					if sig == syscall.SIGINT {
						_ = unix.Kill(-pid, unix.SIGKILL)
					} else {
						_ = unix.Kill(-pid, unix.SIGTERM)
					}
				}
			}

			fmt.Printf("#s s_wtime %f\n", time.Since(start).Seconds())
			reportRusage(c)

			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			if waitErr != nil {
				return fmt.Errorf("waiting for solver: %w", waitErr)
			}
			return nil
		},
	}
	return cmd
}

func reportRusage(c *exec.Cmd) {
	if c.ProcessState == nil {
		return
	}
	ru, ok := c.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return
	}
	fmt.Printf("#s s_utime %f\n", float64(ru.Utime.Sec)+float64(ru.Utime.Usec)/1e6)
	fmt.Printf("#s s_stime %f\n", float64(ru.Stime.Sec)+float64(ru.Stime.Usec)/1e6)
	fmt.Printf("#s s_maxrss %d\n", ru.Maxrss*1024)
	fmt.Printf("#s s_minflt %d\n", ru.Minflt)
	fmt.Printf("#s s_majflt %d\n", ru.Majflt)
	fmt.Printf("#s s_nvcsw %d\n", ru.Nvcsw)
	fmt.Printf("#s s_nivcsw %d\n", ru.Nivcsw)
}
