// Package rundir manages the per-run log directory tree described in
// SPEC_FULL.md §11: a timestamped "stride-logs/run_<ts>/" directory, a
// "latest" symlink kept pointing at the newest run, one working directory
// per task, and pruning of old runs.
package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// LogParentDir is the default parent directory for all run directories.
	LogParentDir = "stride-logs"
	// LatestLink is the name of the symlink kept pointing at the newest run.
	LatestLink = "latest"

	shortFormat = "060102_150405"
	longFormat  = "060102_150405.000000"
)

// ErrEmptyInstanceName is returned by CreateInstanceDir for a blank name.
var ErrEmptyInstanceName = errors.New("no valid instance name given")

// RunDirectory owns one timestamped run's log tree.
type RunDirectory struct {
	path string
}

// New creates a run directory under the default LogParentDir.
func New() (*RunDirectory, error) {
	return NewWithin(LogParentDir)
}

// NewWithin creates a uniquely timestamped run directory under parent and
// (re)points parent/latest at it.
func NewWithin(parent string) (*RunDirectory, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("creating run log parent %s: %w", parent, err)
	}

	format := shortFormat
	var path string
	for {
		name := "run_" + time.Now().Format(format)
		path = filepath.Join(parent, name)
		format = longFormat // any retry beyond the first carries sub-second precision

		err := os.Mkdir(path, 0o755)
		if err == nil {
			break
		}
		if os.IsExist(err) {
			continue
		}
		return nil, fmt.Errorf("creating run directory %s: %w", path, err)
	}

	if err := refreshLatestLink(parent, path); err != nil {
		return nil, err
	}
	return &RunDirectory{path: path}, nil
}

// refreshLatestLink points parent/latest at path, replacing any existing
// link only if it currently points at an older run (name sorts earlier).
func refreshLatestLink(parent, path string) error {
	linkPath := filepath.Join(parent, LatestLink)
	newTarget := filepath.Base(path)

	for {
		err := os.Symlink(newTarget, linkPath)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("creating %s symlink: %w", LatestLink, err)
		}

		oldTarget, readErr := os.Readlink(linkPath)
		if readErr != nil {
			// not a symlink, or racily removed; try to replace it outright
			if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale %s entry: %w", LatestLink, err)
			}
			continue
		}
		if oldTarget < newTarget {
			if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale %s link: %w", LatestLink, err)
			}
			continue
		}
		return nil // an equally-new or newer link already exists, leave it be
	}
}

// Path returns the run directory's absolute-or-relative path, as given.
func (r *RunDirectory) Path() string {
	return r.path
}

// CreateInstanceDir creates a fresh subdirectory named after instanceName,
// disambiguating with a numeric suffix if that name is already taken.
func (r *RunDirectory) CreateInstanceDir(instanceName string) (string, error) {
	if instanceName == "" {
		return "", ErrEmptyInstanceName
	}
	for attempt := 0; ; attempt++ {
		dir := filepath.Join(r.path, instanceName)
		if attempt > 0 {
			dir = filepath.Join(r.path, fmt.Sprintf("%s_%d", instanceName, attempt))
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", fmt.Errorf("creating instance directory %s: %w", dir, err)
	}
}

// CreateInstanceDirForPath derives the instance name from instancePath's
// file stem (basename without extension) and delegates to CreateInstanceDir.
func (r *RunDirectory) CreateInstanceDirForPath(instancePath string) (string, error) {
	base := filepath.Base(instancePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return r.CreateInstanceDir(stem)
}

// FinalizeOutcome atomically moves taskDir under a subdirectory named after
// outcome (the executor passes result kind names such as "Valid",
// "Timeout", "SolverError"), returning the final path.
func (r *RunDirectory) FinalizeOutcome(taskDir, outcome string) (string, error) {
	outcomeDir := filepath.Join(r.path, outcome)
	if err := os.MkdirAll(outcomeDir, 0o755); err != nil {
		return "", fmt.Errorf("creating outcome directory %s: %w", outcomeDir, err)
	}
	dest := filepath.Join(outcomeDir, filepath.Base(taskDir))
	if err := os.Rename(taskDir, dest); err != nil {
		return "", fmt.Errorf("moving %s into %s: %w", taskDir, outcomeDir, err)
	}
	return dest, nil
}

// PruneOldRuns removes the oldest "run_*" directories under parent beyond
// the most recent keep, leaving the "latest" symlink's target untouched.
// keep <= 0 disables pruning.
func PruneOldRuns(parent string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing %s: %w", parent, err)
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "run_") {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs) // "run_<timestamp>" names sort chronologically
	if len(runs) <= keep {
		return nil
	}

	for _, name := range runs[:len(runs)-keep] {
		if err := os.RemoveAll(filepath.Join(parent, name)); err != nil {
			return fmt.Errorf("pruning old run %s: %w", name, err)
		}
	}
	return nil
}
