package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbpksim/internal/solve"
)

const (
	DefaultRelTol   = 1e-6
	DefaultAbsTol   = 1e-9
	DefaultMaxOrder = 5
)

// Config is the YAML-facing solver and run configuration. CLI flags override
// file values; file values override defaults.
type Config struct {
	RelTol       float64       `yaml:"rtol"`
	AbsTol       float64       `yaml:"atol"`
	InitialStep  float64       `yaml:"initial_step"`
	MinStep      float64       `yaml:"min_step"`
	MaxStep      float64       `yaml:"max_step"`
	MaxOrder     int           `yaml:"max_order"`
	EventTol     float64       `yaml:"event_tol"`
	StepDeadline time.Duration `yaml:"step_deadline"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxOrder: DefaultMaxOrder,
		DataDir:  ".pbpksim",
		LogLevel: "info",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Solver translates the file configuration into the engine configuration,
// filling the remaining knobs from the engine defaults.
func (c *Config) Solver() solve.Config {
	sc := solve.DefaultConfig()
	if c.RelTol > 0 {
		sc.RelTol = c.RelTol
	}
	if c.AbsTol > 0 {
		sc.AbsTol = c.AbsTol
	}
	if c.InitialStep > 0 {
		sc.InitialStep = c.InitialStep
	}
	if c.MinStep > 0 {
		sc.MinStep = c.MinStep
	}
	if c.MaxStep > 0 {
		sc.MaxStep = c.MaxStep
	}
	if c.MaxOrder > 0 {
		sc.MaxOrder = c.MaxOrder
	}
	if c.EventTol > 0 {
		sc.EventTol = c.EventTol
	}
	sc.StepDeadline = c.StepDeadline
	return sc
}
