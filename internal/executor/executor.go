// Package executor implements the bounded-parallel task executor of
// spec.md §4.5: one worker per configured degree of parallelism drains a
// shared queue of instance paths, supervises the solver as a process-group
// leader with a soft/hard signal deadline, and publishes one outcome per
// task to the summary writer, the run directory, and the server client.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/manpen/pace26stride/internal/checker"
	"github.com/manpen/pace26stride/internal/client"
	"github.com/manpen/pace26stride/internal/concurrent"
	"github.com/manpen/pace26stride/internal/logging"
	"github.com/manpen/pace26stride/internal/pace26"
	"github.com/manpen/pace26stride/internal/rundir"
	"github.com/manpen/pace26stride/internal/summary"
)

// Result kind names, matching §6's closed set exactly so the on-disk
// outcome folder and the s_result field agree.
const (
	ResultValid           = "Valid"
	ResultNoSolution      = "NoSolution"
	ResultInfeasible      = "Infeasible"
	ResultInvalidInstance = "InvalidInstance"
	ResultSyntaxError     = "SyntaxError"
	ResultSolverError     = "SolverError"
	ResultSystemError     = "SystemError"
	ResultTimeout         = "Timeout"
)

// reportableToServer is the fixed subset of outcomes §4.7 reports to C7.
var reportableToServer = map[string]bool{
	ResultTimeout:     true,
	ResultSolverError: true,
	ResultInfeasible:  true,
}

// Config parameterizes one run of the executor.
type Config struct {
	Solver        string
	ExtraArgs     []string
	SoftTimeout   time.Duration
	GracePeriod   time.Duration
	Parallelism   int
	InjectEnv     bool
	KeepValidLogs bool
}

// Executor supervises solver child processes over a resolved instance list.
type Executor struct {
	cfg     Config
	runDir  *rundir.RunDirectory
	summary *summary.Writer
	client  client.Client
	log     *slog.Logger

	queue concurrent.Stack[string]
}

func slogLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return logging.New()
	}
	return log
}

// New builds an Executor. log may be nil, in which case a stdout logger is
// used.
func New(cfg Config, runDir *rundir.RunDirectory, sw *summary.Writer, cl client.Client, log *slog.Logger) *Executor {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cl == nil {
		cl = client.NoopClient{}
	}
	return &Executor{
		cfg:     cfg,
		runDir:  runDir,
		summary: sw,
		client:  cl,
		log:     slogLogger(log),
	}
}

// Run dispatches every instance path to a worker and blocks until the
// queue drains or ctx is cancelled. Cancellation propagates as described in
// §5: in-flight tasks are soft-then-hard killed and recorded as Timeout.
func (e *Executor) Run(ctx context.Context, instancePaths []string) error {
	for _, p := range instancePaths {
		e.queue.Push(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Parallelism; i++ {
		g.Go(func() error {
			e.workerLoop(ctx, gctx)
			return nil
		})
	}
	return g.Wait()
}

func (e *Executor) workerLoop(runCtx, cancelCtx context.Context) {
	for {
		if cancelCtx.Err() != nil {
			return
		}
		path, ok := e.queue.Pop()
		if !ok {
			return
		}
		e.runTask(runCtx, cancelCtx, path)
	}
}

func (e *Executor) runTask(runCtx, cancelCtx context.Context, instancePath string) {
	taskID := uuid.NewString()
	log := e.log.With("task_id", taskID, "instance", instancePath)

	taskDir, err := e.runDir.CreateInstanceDirForPath(instancePath)
	if err != nil {
		log.Error("could not create task directory", "err", err)
		return
	}
	log.Debug("task started", "dir", taskDir)

	raw, err := os.ReadFile(instancePath)
	if err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultSystemError))
		return
	}

	doc, err := pace26.Parse(bytes.NewReader(raw), 0, pace26.Options{})
	if err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultInvalidInstance))
		return
	}
	inst := checker.Instance{NumLeaves: doc.NumLeaves, Trees: doc.Trees}
	if err := checker.ValidateInstance(inst); err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultInvalidInstance))
		return
	}

	stdoutPath := filepath.Join(taskDir, "stdout.log")
	stderrPath := filepath.Join(taskDir, "stderr.log")
	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultSystemError))
		return
	}
	defer stdoutFile.Close()
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultSystemError))
		return
	}
	defer stderrFile.Close()

	cmd := exec.Command(e.cfg.Solver, e.cfg.ExtraArgs...)
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if e.cfg.InjectEnv {
		cmd.Env = append(os.Environ(),
			"STRIDE_INSTANCE_PATH="+instancePath,
			fmt.Sprintf("STRIDE_TIMEOUT=%d", int(e.cfg.SoftTimeout.Seconds())),
			fmt.Sprintf("STRIDE_GRACE=%d", int(e.cfg.GracePeriod.Seconds())),
		)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.publish(log, instancePath, taskDir, outcomeOnly(ResultSystemError))
		return
	}

	waitErr, timedOut := e.supervise(cancelCtx, cmd)
	wallTime := time.Since(start).Seconds()

	oc := outcome{WallTime: wallTime}
	if rusage, ok := rusageOf(cmd); ok {
		oc.UserTime = timevalSeconds(rusage.Utime)
		oc.SysTime = timevalSeconds(rusage.Stime)
		oc.MaxRSS = rusage.Maxrss * 1024 // Linux reports maxrss in KB
		oc.MinFlt = rusage.Minflt
		oc.MajFlt = rusage.Majflt
		oc.NVCsw = rusage.Nvcsw
		oc.NIVCsw = rusage.Nivcsw
	}

	switch {
	case timedOut:
		oc.Result = ResultTimeout
	case waitErr != nil:
		if _, isExit := waitErr.(*exec.ExitError); isExit {
			oc.Result = ResultSolverError
		} else {
			oc.Result = ResultSystemError
		}
	default:
		e.verify(stdoutPath, inst, &oc)
	}

	oc.Idigest = doc.Idigest
	e.publish(log, instancePath, taskDir, oc)
}

// supervise waits for cmd to exit, enforcing the soft-then-hard signal
// deadline and reacting to cancellation the same way: SIGTERM immediately,
// SIGKILL after a further grace period.
func (e *Executor) supervise(cancelCtx context.Context, cmd *exec.Cmd) (waitErr error, timedOut bool) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	pgid := cmd.Process.Pid
	kill := func(sig syscall.Signal) {
		_ = unix.Kill(-pgid, sig)
	}

	softTimer := time.NewTimer(e.cfg.SoftTimeout)
	defer softTimer.Stop()
	var hardTimer *time.Timer
	defer func() {
		if hardTimer != nil {
			hardTimer.Stop()
		}
	}()

	softC := softTimer.C
	var hardC <-chan time.Time
	cancelC := cancelCtx.Done()

	armHard := func() {
		hardTimer = time.NewTimer(e.cfg.GracePeriod)
		hardC = hardTimer.C
	}

	for {
		select {
		case err := <-done:
			return err, timedOut
		case <-softC:
			softC = nil
			kill(unix.SIGTERM)
			armHard()
		case <-hardC:
			hardC = nil
			kill(unix.SIGKILL)
			timedOut = true
		case <-cancelC:
			cancelC = nil
			timedOut = true
			kill(unix.SIGTERM)
			if hardC == nil {
				softC = nil
				armHard()
			}
		}
	}
}

// verify parses the solver's stdout and decides feasibility, filling in oc.
func (e *Executor) verify(stdoutPath string, inst checker.Instance, oc *outcome) {
	data, err := os.ReadFile(stdoutPath)
	if err != nil {
		oc.Result = ResultSystemError
		return
	}

	doc, err := pace26.Parse(bytes.NewReader(data), inst.NumLeaves, pace26.Options{})
	if err != nil {
		oc.Result = ResultSyntaxError
		return
	}

	res := checker.Check(inst, doc.Trees)
	switch res.Kind {
	case checker.Valid:
		score := res.Score
		oc.Result = ResultValid
		oc.Score = &score
		oc.CanonicalText = res.CanonicalText
	case checker.NoSolution:
		oc.Result = ResultNoSolution
	case checker.InvalidInstance:
		oc.Result = ResultInvalidInstance
	default:
		oc.Result = ResultInfeasible
	}
	oc.Extra = doc.Info
}

// outcome is the executor's internal accumulator for one task's result,
// translated into a summary.Entry and a client call by publish.
type outcome struct {
	Result        string
	Score         *int
	CanonicalText string
	Idigest       string

	WallTime float64
	UserTime float64
	SysTime  float64
	MaxRSS   int64
	MinFlt   int64
	MajFlt   int64
	NVCsw    int64
	NIVCsw   int64

	Extra map[string]json.RawMessage
}

func outcomeOnly(result string) outcome {
	return outcome{Result: result}
}

func (e *Executor) publish(log *slog.Logger, instancePath, taskDir string, oc outcome) {
	ctx := context.Background()

	var prevBest *int
	if oc.Idigest != "" {
		prevBest = e.client.FetchBestKnown(ctx, oc.Idigest)
	}

	entry := summary.Entry{
		Name:       filepath.Base(instancePath),
		Instance:   instancePath,
		StrideHash: oc.Idigest,
		Solution:   oc.CanonicalText,
		Result:     oc.Result,
		Score:      oc.Score,
		PrevBest:   prevBest,
		WallTime:   oc.WallTime,
		UserTime:   oc.UserTime,
		SysTime:    oc.SysTime,
		MaxRSS:     oc.MaxRSS,
		MinFlt:     oc.MinFlt,
		MajFlt:     oc.MajFlt,
		NVCsw:      oc.NVCsw,
		NIVCsw:     oc.NIVCsw,
		Extra:      oc.Extra,
	}

	// per §5's ordering guarantee: move the directory before the record is
	// flushed, so an observer never sees a record without a directory.
	dest, err := e.runDir.FinalizeOutcome(taskDir, oc.Result)
	if err != nil {
		log.Error("could not finalize task directory", "err", err)
		dest = taskDir
	}

	if err := e.summary.Append(entry); err != nil {
		log.Error("could not append summary record", "err", err)
	}

	if oc.Idigest != "" {
		if oc.Result == ResultValid && oc.Score != nil {
			e.client.UploadSolution(ctx, oc.Idigest, oc.CanonicalText, *oc.Score)
		}
		if reportableToServer[oc.Result] {
			e.client.ReportError(ctx, oc.Idigest, oc.Result)
		}
	}

	if oc.Result == ResultValid && !e.cfg.KeepValidLogs {
		if err := os.RemoveAll(dest); err != nil {
			log.Warn("could not remove valid task directory", "path", dest, "err", err)
		}
	}
}

func rusageOf(cmd *exec.Cmd) (*syscall.Rusage, bool) {
	if cmd.ProcessState == nil {
		return nil, false
	}
	ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	return ru, ok
}

func timevalSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}
