// Package instances implements the instance-set resolver of spec.md §4.4:
// expanding user-supplied paths, globs, and recursive list files into a
// deduplicated, order-preserving list of absolute instance paths.
package instances

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PathNotFoundError is returned when an explicitly named (non-glob) path
// does not exist.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// CycleError is returned when a list file transitively includes itself.
type CycleError struct {
	Chain []string // the list-file inclusion chain, ending with the repeated path
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("list file cycle detected: %s", strings.Join(e.Chain, " -> "))
}

// Resolve expands args (each a direct path, a glob, or a path to a ".lst"
// list file) into an ordered, deduplicated list of absolute instance paths.
// Relative paths inside args are resolved against the current working
// directory; relative paths inside a list file are resolved against that
// list file's own directory.
func Resolve(args []string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	r := &resolver{
		seen:     map[string]bool{},
		stackSet: map[string]bool{},
	}
	for _, a := range args {
		if err := r.addPath(a, cwd); err != nil {
			return nil, err
		}
	}
	return r.order, nil
}

type resolver struct {
	order    []string
	seen     map[string]bool
	stack    []string
	stackSet map[string]bool
}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// addPath resolves one entry (from the CLI or from a list file) against
// relativeTo and folds it into the result set.
func (r *resolver) addPath(entry string, relativeTo string) error {
	resolved := entry
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(relativeTo, resolved)
	}
	resolved = filepath.Clean(resolved)

	if isGlobPattern(resolved) {
		matches, err := filepath.Glob(resolved)
		if err != nil {
			return fmt.Errorf("invalid glob %q: %w", resolved, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := r.addPath(m, relativeTo); err != nil {
				return err
			}
		}
		return nil // empty expansions are permitted, per §4.4
	}

	if strings.HasSuffix(resolved, ".lst") {
		return r.addListFile(resolved)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return &PathNotFoundError{Path: resolved}
	}
	if info.IsDir() {
		return fmt.Errorf("path points to a directory, not an instance: %s", resolved)
	}
	r.insert(resolved)
	return nil
}

func (r *resolver) insert(absPath string) {
	if r.seen[absPath] {
		return
	}
	r.seen[absPath] = true
	r.order = append(r.order, absPath)
}

func (r *resolver) addListFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &PathNotFoundError{Path: path}
	}
	if r.stackSet[path] {
		return &CycleError{Chain: append(append([]string(nil), r.stack...), path)}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening list file %s: %w", path, err)
	}
	defer file.Close()

	r.stack = append(r.stack, path)
	r.stackSet[path] = true
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
		delete(r.stackSet, path)
	}()

	dir := filepath.Dir(path)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.addPath(line, dir); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading list file %s: %w", path, err)
	}
	return nil
}
