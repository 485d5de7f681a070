// The application's root configuration: logging, analysis and diagram settings.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Render   RenderConfig   `mapstructure:"render"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level" yaml:"level"`
	Format      string `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
}

// AnalysisConfig holds settings for one aggregation run. The input path comes
// from the positional CLI argument; the rest can come from flags, env vars or
// the config file.
type AnalysisConfig struct {
	InputPath   string `mapstructure:"input_path"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	Output      string `mapstructure:"output"`
	ExcludeInfo bool   `mapstructure:"exclude_info"`

	// Column names in the source export. Fixed by contract with the
	// upstream exporter, overridable for exports with renamed headers.
	SensorColumn   string `mapstructure:"sensor_column"`
	SeverityColumn string `mapstructure:"severity_column"`
	StatusColumn   string `mapstructure:"status_column"`
}

// RenderConfig holds settings for the Sankey diagram artifact.
type RenderConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	// SnapshotTimeoutSec bounds the headless-Chrome screenshot attempt
	// before falling back to the HTML artifact.
	SnapshotTimeoutSec int `mapstructure:"snapshot_timeout_sec"`
}

// SetDefaults registers the default values so the app can run with no config
// file at all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "taegis-analyze")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("analysis.chunk_size", 100000)
	v.SetDefault("analysis.output", "sankey_diagram.png")
	v.SetDefault("analysis.exclude_info", false)
	v.SetDefault("analysis.sensor_column", "sensor_types")
	v.SetDefault("analysis.severity_column", "severity")
	v.SetDefault("analysis.status_column", "status")

	v.SetDefault("render.title", "Taegis XDR Detection Flow: Sensor Types → Severity → Status")
	v.SetDefault("render.width", 1600)
	v.SetDefault("render.height", 900)
	v.SetDefault("render.snapshot_timeout_sec", 60)
}

// Validate checks the configuration for values that would make a run
// impossible. It is called once, before any aggregation begins.
func (c *Config) Validate() error {
	if c.Analysis.InputPath == "" {
		return fmt.Errorf("analysis.input_path is a required configuration field")
	}
	if c.Analysis.ChunkSize <= 0 {
		return fmt.Errorf("analysis.chunk_size must be a positive integer, got %d", c.Analysis.ChunkSize)
	}
	if c.Analysis.Output == "" {
		return fmt.Errorf("analysis.output must not be empty")
	}
	for name, col := range map[string]string{
		"analysis.sensor_column":   c.Analysis.SensorColumn,
		"analysis.severity_column": c.Analysis.SeverityColumn,
		"analysis.status_column":   c.Analysis.StatusColumn,
	} {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render.width and render.height must be positive integers")
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores a fully-built configuration as the singleton. Used by the root
// command after it has merged the CLI arguments into the unmarshaled config,
// and by tests.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
