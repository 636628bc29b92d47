package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
	"github.com/YuminosukeSato/tabflow/trainer"
)

// Environment variables that override the configuration file.
const (
	EnvDataPath    = "TABFLOW_DATA_PATH"
	EnvRunID       = "TABFLOW_RUN_ID"
	EnvArtifactDir = "TABFLOW_ARTIFACT_DIR"
	EnvStore       = "TABFLOW_STORE"
	EnvLogLevel    = "TABFLOW_LOG_LEVEL"
)

// Config drives both training and serving.
type Config struct {
	DataPath string `yaml:"data_path"`
	Target   string `yaml:"target"`
	// Task is "classification", "regression" or empty to infer it from the
	// target column.
	Task      string  `yaml:"task"`
	TestRatio float64 `yaml:"test_ratio"`
	Seed      int64   `yaml:"seed"`

	Strategy string                 `yaml:"strategy"`
	Params   map[string]interface{} `yaml:"params"`

	Store       string `yaml:"store"`
	ArtifactDir string `yaml:"artifact_dir"`
	// WorkDir holds temporary archive extractions. Empty uses the system
	// temp directory.
	WorkDir string `yaml:"work_dir"`

	// RunID selects the run served by the prediction surface.
	RunID string `yaml:"run_id"`
	Form  string `yaml:"form"`
	Addr  string `yaml:"addr"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		TestRatio:   0.2,
		Seed:        42,
		Strategy:    trainer.RandomForestName,
		Store:       artifact.KindFile,
		ArtifactDir: "./artifacts",
		RunID:       artifact.Latest,
		Form:        "generic",
		Addr:        ":8080",
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	return UnmarshalConfig(content)
}

// UnmarshalConfig parses YAML on top of DefaultConfig.
func UnmarshalConfig(content []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the TABFLOW_* variables found by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvDataPath:    &c.DataPath,
		EnvRunID:       &c.RunID,
		EnvArtifactDir: &c.ArtifactDir,
		EnvStore:       &c.Store,
		EnvLogLevel:    &c.LogLevel,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
}

// ParsedTask returns the configured task and whether one was set.
func (c *Config) ParsedTask() (model.Task, bool, error) {
	if c.Task == "" {
		return 0, false, nil
	}
	t, ok := model.ParseTask(c.Task)
	if !ok {
		return 0, false, errors.NewValidationError("task", "must be classification or regression", c.Task)
	}
	return t, true, nil
}

// ValidateServe checks the fields needed to read artifacts.
func (c *Config) ValidateServe() error {
	if c.Store != artifact.KindFile && c.Store != artifact.KindSQLite {
		return errors.NewValidationError("store", "must be file or sqlite", c.Store)
	}
	if c.ArtifactDir == "" {
		return errors.NewValidationError("artifact_dir", "must not be empty", c.ArtifactDir)
	}
	if c.RunID != artifact.Latest {
		if err := artifact.ValidateID(c.RunID); err != nil {
			return err
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", err.Error(), c.LogLevel)
	}
	return nil
}

// Validate checks the fields needed to train.
func (c *Config) Validate() error {
	if err := c.ValidateServe(); err != nil {
		return err
	}
	if c.DataPath == "" {
		return errors.NewValidationError("data_path", "must not be empty", c.DataPath)
	}
	if c.Target == "" {
		return errors.NewValidationError("target", "must not be empty", c.Target)
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return errors.NewValidationError("test_ratio", "must lie in (0, 1)", c.TestRatio)
	}
	if _, _, err := c.ParsedTask(); err != nil {
		return err
	}
	known := false
	for _, n := range trainer.Names() {
		known = known || n == c.Strategy
	}
	if !known {
		return errors.NewValidationError("strategy", "unknown strategy", c.Strategy)
	}
	return nil
}
