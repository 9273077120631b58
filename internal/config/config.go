// Package config holds the options of a roadsim run.
//
// Values are resolved in order: Default, then an optional YAML file, then
// ROADSIM_* environment variables (a .env file in the working directory is
// loaded first when present). Command-line flags are applied last by cmd/cli.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Outputs selects the files written at the end of each step and of the run.
type Outputs struct {
	LightLoadsMatrix bool `json:"light_loads_matrix" yaml:"light_loads_matrix"`
	LoadsMatrix      bool `json:"loads_matrix" yaml:"loads_matrix"`
	EdgeData         bool `json:"edge_data" yaml:"edge_data"`
	TripInfos        bool `json:"trip_infos" yaml:"trip_infos"`
}

// Any reports whether at least one output is enabled.
func (o Outputs) Any() bool {
	return o.LightLoadsMatrix || o.LoadsMatrix || o.EdgeData || o.TripInfos
}

// Config holds the settings of one run.
type Config struct {
	Name string `json:"name" yaml:"name"`

	// Exactly one of Scenario (JSON or YAML) and SumoConfig is used.
	Scenario     string `json:"scenario" yaml:"scenario"`
	SumoConfig   string `json:"sumo_config" yaml:"sumo_config"`
	VehicleTypes string `json:"vehicle_types" yaml:"vehicle_types"` // extra SUMO routes file with vType definitions

	// Overrides of the scenario timing. Zero step length keeps the scenario value.
	StepLength float64  `json:"step_length" yaml:"step_length"` // seconds
	BeginTime  *float64 `json:"begin_time,omitempty" yaml:"begin_time,omitempty"`
	EndTime    *float64 `json:"end_time,omitempty" yaml:"end_time,omitempty"`

	OutputDir      string  `json:"output_dir" yaml:"output_dir"`
	Overwrite      bool    `json:"overwrite" yaml:"overwrite"`
	Outputs        Outputs `json:"outputs" yaml:"outputs"`
	EdgeStatistics bool    `json:"edge_statistics" yaml:"edge_statistics"`
	Database       string  `json:"database" yaml:"database"` // SQLite path, empty disables

	Profiling        bool `json:"profiling" yaml:"profiling"`
	ProfilingSamples int  `json:"profiling_samples" yaml:"profiling_samples"` // runs averaged for profiling

	Serve bool `json:"serve" yaml:"serve"`
	Port  int  `json:"port" yaml:"port"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Name:             "simulation",
		OutputDir:        "outputs",
		ProfilingSamples: 1,
		Port:             8080,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load returns the defaults overlaid with the YAML file at path, when path is
// not empty, and then with the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadEnvFile loads variables from the given .env files (default ".env")
// without overriding the ones already set.
func LoadEnvFile(paths ...string) error {
	return godotenv.Load(paths...)
}

// ApplyEnv overrides c with the ROADSIM_* variables that are set.
func (c *Config) ApplyEnv() error {
	c.Name = envOrDefault("ROADSIM_NAME", c.Name)
	c.Scenario = envOrDefault("ROADSIM_SCENARIO", c.Scenario)
	c.SumoConfig = envOrDefault("ROADSIM_SUMOCFG", c.SumoConfig)
	c.VehicleTypes = envOrDefault("ROADSIM_VEHICLE_TYPES", c.VehicleTypes)
	c.OutputDir = envOrDefault("ROADSIM_OUTPUT_DIR", c.OutputDir)
	c.Database = envOrDefault("ROADSIM_DB", c.Database)
	c.LogLevel = envOrDefault("ROADSIM_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("ROADSIM_LOG_FORMAT", c.LogFormat)

	var err error
	if c.Port, err = envInt("ROADSIM_PORT", c.Port); err != nil {
		return err
	}
	if c.StepLength, err = envFloat("ROADSIM_STEP_LENGTH", c.StepLength); err != nil {
		return err
	}
	if c.Serve, err = envBool("ROADSIM_SERVE", c.Serve); err != nil {
		return err
	}
	if c.Profiling, err = envBool("ROADSIM_PROFILING", c.Profiling); err != nil {
		return err
	}
	return nil
}

// Validate checks that c describes a runnable simulation.
func (c *Config) Validate() error {
	switch {
	case c.Scenario == "" && c.SumoConfig == "":
		return errors.New("no scenario or sumocfg file given")
	case c.Scenario != "" && c.SumoConfig != "":
		return errors.New("scenario and sumocfg are mutually exclusive")
	case c.StepLength < 0:
		return fmt.Errorf("step length must be positive, got %v", c.StepLength)
	case c.ProfilingSamples < 1:
		return fmt.Errorf("profiling samples must be at least 1, got %d", c.ProfilingSamples)
	case c.Serve && (c.Port <= 0 || c.Port > 65535):
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Outputs.Any() && c.OutputDir == "":
		return errors.New("outputs enabled without an output directory")
	}
	return nil
}

// Addr is the listen address of the remote-control server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
