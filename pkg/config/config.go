// Package config loads the TOML settings that choose a target description,
// the subtarget it is compiled for, and the driver limits.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/targetdesc"
)

// Config is the contents of a ralph-legalize TOML file
type Config struct {
	Target    TargetConfig    `toml:"target"`
	Subtarget SubtargetConfig `toml:"subtarget"`
	Driver    DriverConfig    `toml:"driver"`
	Log       LogConfig       `toml:"log"`
}

type TargetConfig struct {
	Description string `toml:"description"`
}

// SubtargetConfig names the generation either by number or by name
type SubtargetConfig struct {
	Generation any      `toml:"generation"`
	Features   []string `toml:"features"`
}

type DriverConfig struct {
	MaxDepth int `toml:"max_depth"`
	MaxSteps int `toml:"max_steps"`
	Jobs     int `toml:"jobs"` // 0 means GOMAXPROCS
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when no file is given
func Default() Config {
	return Config{
		Target:    TargetConfig{Description: filepath.Join("targets", "gcn.yaml")},
		Subtarget: SubtargetConfig{Generation: "sea_islands", Features: []string{"flat-address-space"}},
		Driver: DriverConfig{
			MaxDepth: legalizer.DefaultMaxDepth,
			MaxSteps: legalizer.DefaultMaxSteps,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A relative target description is
// taken relative to the directory holding path.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := checkKeys(meta); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if meta.IsDefined("target", "description") && !filepath.IsAbs(cfg.Target.Description) {
		cfg.Target.Description = filepath.Join(filepath.Dir(path), cfg.Target.Description)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults
func Parse(text string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := checkKeys(meta); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkKeys(meta toml.MetaData) error {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Target.Description) == "" {
		errs = append(errs, errors.New("missing [target].description"))
	}
	if _, err := c.Generation(); err != nil {
		errs = append(errs, fmt.Errorf("[subtarget].generation: %w", err))
	}
	if c.Driver.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("[driver].max_depth must be positive, got %d", c.Driver.MaxDepth))
	}
	if c.Driver.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("[driver].max_steps must be positive, got %d", c.Driver.MaxSteps))
	}
	if c.Driver.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[driver].jobs must not be negative, got %d", c.Driver.Jobs))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("[log].level: %w", err))
	}
	return errors.Join(errs...)
}

// Generation resolves the configured generation, which TOML may give as
// an integer or a name
func (c Config) Generation() (targetdesc.Generation, error) {
	switch g := c.Subtarget.Generation.(type) {
	case int64:
		return targetdesc.ParseGeneration(fmt.Sprint(g))
	case string:
		return targetdesc.ParseGeneration(g)
	case nil:
		return targetdesc.GenerationUnknown, errors.New("missing")
	}
	return targetdesc.GenerationUnknown, fmt.Errorf("unexpected value %v", c.Subtarget.Generation)
}

// ResolveSubtarget converts the [subtarget] table for targetdesc.WithSubtarget
func (c Config) ResolveSubtarget() (targetdesc.Subtarget, error) {
	g, err := c.Generation()
	if err != nil {
		return targetdesc.Subtarget{}, err
	}
	return targetdesc.Subtarget{Generation: g, Features: c.Subtarget.Features}, nil
}

// DriverOptions converts the [driver] table
func (c Config) DriverOptions() []legalizer.Option {
	return []legalizer.Option{
		legalizer.WithMaxDepth(c.Driver.MaxDepth),
		legalizer.WithMaxSteps(c.Driver.MaxSteps),
		legalizer.WithJobs(c.Driver.Jobs),
	}
}

// ParseLevel maps debug, info, warn and error onto slog levels
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// SlogLevel is the configured log level; Validate has already checked it
func (c Config) SlogLevel() slog.Level {
	l, _ := ParseLevel(c.Log.Level)
	return l
}
