// Package config loads the optional mend.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Resolve for fields left unset.
const (
	DefaultWindow      = 5 * time.Second
	DefaultTraceDepth  = 3
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultWorkers     = 4
	DefaultDuration    = 10 * time.Second
	DefaultMetricsAddr = ":9477"
)

// Duration wraps time.Duration so yaml values like "5s" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the optional mend.yaml configuration.
type Config struct {
	Policy PolicyConfig `yaml:"policy"`
	Retry  RetryConfig  `yaml:"retry"`
	Storm  StormConfig  `yaml:"storm"`
}

// PolicyConfig contains interceptor policy knobs.
type PolicyConfig struct {
	Window     Duration `yaml:"window,omitempty"`
	TraceDepth int      `yaml:"traceDepth,omitempty"`
	LogCap     int      `yaml:"logCap,omitempty"`
	Debug      bool     `yaml:"debug,omitempty"`
}

// RetryConfig contains guarded-retry defaults.
type RetryConfig struct {
	MaxRetries int      `yaml:"maxRetries,omitempty"`
	Delay      Duration `yaml:"delay,omitempty"`
}

// StormConfig contains parameters for the synthetic fault workload.
type StormConfig struct {
	Workers     int      `yaml:"workers,omitempty"`
	Duration    Duration `yaml:"duration,omitempty"`
	MetricsAddr string   `yaml:"metricsAddr,omitempty"`
}

// Resolved contains resolved configuration values with defaults applied.
type Resolved struct {
	Root       string
	ModulePath string
	Policy     PolicyConfig
	Retry      RetryConfig
	Storm      StormConfig
}

// LoadOptional reads mend.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, "mend.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read mend.yaml: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mend.yaml: %w", err)
	}

	return &cfg, nil
}

// Validate rejects values no policy can mean.
func (c *Config) Validate() error {
	if c.Policy.Window < 0 {
		return fmt.Errorf("policy.window cannot be negative (got %s)", c.Policy.Window.Std())
	}
	if c.Policy.TraceDepth < 0 {
		return fmt.Errorf("policy.traceDepth cannot be negative (got %d)", c.Policy.TraceDepth)
	}
	if c.Policy.LogCap < 0 {
		return fmt.Errorf("policy.logCap cannot be negative (got %d)", c.Policy.LogCap)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries cannot be negative (got %d)", c.Retry.MaxRetries)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay cannot be negative (got %s)", c.Retry.Delay.Std())
	}
	if c.Storm.Workers < 0 {
		return fmt.Errorf("storm.workers cannot be negative (got %d)", c.Storm.Workers)
	}
	if c.Storm.Duration < 0 {
		return fmt.Errorf("storm.duration cannot be negative (got %s)", c.Storm.Duration.Std())
	}
	return nil
}

// Resolve loads mend.yaml (if present), validates it, and fills defaults.
// The module path is resolved from go.mod when one exists in dir; a missing
// go.mod leaves it empty rather than failing, since the workload commands
// run outside Go modules too.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Resolved{
		Root:       dir,
		ModulePath: modulePath(dir),
		Policy:     cfg.Policy,
		Retry:      cfg.Retry,
		Storm:      cfg.Storm,
	}
	if r.Policy.Window == 0 {
		r.Policy.Window = Duration(DefaultWindow)
	}
	if r.Policy.TraceDepth == 0 {
		r.Policy.TraceDepth = DefaultTraceDepth
	}
	if r.Retry.MaxRetries == 0 {
		r.Retry.MaxRetries = DefaultMaxRetries
	}
	if r.Retry.Delay == 0 {
		r.Retry.Delay = Duration(DefaultRetryDelay)
	}
	if r.Storm.Workers == 0 {
		r.Storm.Workers = DefaultWorkers
	}
	if r.Storm.Duration == 0 {
		r.Storm.Duration = Duration(DefaultDuration)
	}
	if r.Storm.MetricsAddr == "" {
		r.Storm.MetricsAddr = DefaultMetricsAddr
	}
	return r, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
// Without one it falls back to the current directory.
func FindProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}

	probe := dir
	for {
		if _, err := os.Stat(filepath.Join(probe, "go.mod")); err == nil {
			return probe
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return dir
		}
		probe = parent
	}
}

// modulePath reads the module path from dir's go.mod, or "" when absent.
func modulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// ProjectName derives a short display name from the module path, falling
// back to the directory name.
func ProjectName(modulePath, dir string) string {
	base := filepath.Base(dir)
	name, _, ok := module.SplitPathVersion(modulePath)
	if ok {
		parts := strings.Split(name, "/")
		if last := parts[len(parts)-1]; last != "" {
			base = last
		}
	}
	if base == "" || base == "." {
		return "mend-project"
	}
	return base
}
