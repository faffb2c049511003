// Package config loads STRIDE's run configuration from an optional
// stride.yaml file, then layers STRIDE_* environment variable overrides on
// top, matching the defaults-struct + env-override pattern the ambient CLI
// stack uses throughout this project.
package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const defaultServer = "https://pace2026.imada.sdu.dk/"

// Config is the run-time configuration for `stride run`.
type Config struct {
	Solver         string `yaml:"solver"`
	SoftTimeout    int    `yaml:"timeout"`
	GracePeriod    int    `yaml:"grace"`
	ParallelJobs   int    `yaml:"parallel"`
	RequireOptimal bool   `yaml:"optimal"`
	KeepLogs       bool   `yaml:"keep"`
	MaxRunLogs     int    `yaml:"max_run_logs"`
	Server         string `yaml:"server"`
	Offline        bool   `yaml:"offline"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		SoftTimeout:  30,
		GracePeriod:  5,
		ParallelJobs: 0, // 0 lets the executor use runtime.NumCPU()
		Server:       defaultServer,
	}
}

// Load reads path (if it exists; a missing file is not an error) over the
// defaults, then applies STRIDE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		case errors.Is(err, os.ErrNotExist):
			// no config file is fine, defaults stand
		default:
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("STRIDE_SOLVER"); ok {
		cfg.Solver = v
	}
	if v, ok := envInt("STRIDE_TIMEOUT"); ok {
		cfg.SoftTimeout = v
	}
	if v, ok := envInt("STRIDE_GRACE"); ok {
		cfg.GracePeriod = v
	}
	if v, ok := envInt("STRIDE_PARALLEL"); ok {
		cfg.ParallelJobs = v
	}
	if v, ok := envBool("STRIDE_OPTIMAL"); ok {
		cfg.RequireOptimal = v
	}
	if v, ok := envBool("STRIDE_KEEP"); ok {
		cfg.KeepLogs = v
	}
	if v, ok := envInt("STRIDE_MAX_RUN_LOGS"); ok {
		cfg.MaxRunLogs = v
	}
	if v, ok := os.LookupEnv("STRIDE_SERVER"); ok {
		cfg.Server = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
