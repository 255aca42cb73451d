package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/driftscope/driftscope/pkg/types"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Collector    CollectorConfig    `mapstructure:"collector"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	Scopes       []ScopeConfig      `mapstructure:"scopes"`
}

// ServerConfig holds API facade settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	RatePerMinute   int           `mapstructure:"rate_per_minute"`
	RatePerHour     int           `mapstructure:"rate_per_hour"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// CollectorConfig selects and configures the configuration source.
type CollectorConfig struct {
	// Kind is "file" or "azure-blob".
	Kind           string `mapstructure:"kind"`
	Dir            string `mapstructure:"dir"`
	StorageAccount string `mapstructure:"storage_account"`
	Container      string `mapstructure:"container"`
	Prefix         string `mapstructure:"prefix"`
}

// OrchestratorConfig holds scheduling and retention settings.
type OrchestratorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	CycleTimeout      time.Duration `mapstructure:"cycle_timeout"`
	RetentionInterval time.Duration `mapstructure:"retention_interval"`
	Workers           int           `mapstructure:"workers"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	MaxSnapshots      int           `mapstructure:"max_snapshots"`
	MaxReports        int           `mapstructure:"max_reports"`
	RetentionAge      time.Duration `mapstructure:"retention_age"`
}

// AnalyzerConfig holds severity grading settings.
type AnalyzerConfig struct {
	MediumThreshold int `mapstructure:"medium_threshold"`
}

// ScopeConfig names a scope monitored from startup.
type ScopeConfig struct {
	SubscriptionID string `mapstructure:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group"`
}

// Scope converts the config entry to a domain scope.
func (s ScopeConfig) Scope() types.Scope {
	return types.Scope{SubscriptionID: s.SubscriptionID, ResourceGroup: s.ResourceGroup}
}

// Load reads configuration from the optional config file, environment
// variables prefixed DRIFTSCOPE_, and defaults, in increasing precedence of
// env over file over defaults.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("driftscope")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.driftscope")
	}

	viper.SetEnvPrefix("DRIFTSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.address", "")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_per_minute", 60)
	viper.SetDefault("server.rate_per_hour", 1000)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	viper.SetDefault("storage.base_dir", "")

	viper.SetDefault("collector.kind", "file")
	viper.SetDefault("collector.dir", "./exports")

	viper.SetDefault("orchestrator.interval", 3*time.Hour)
	viper.SetDefault("orchestrator.cycle_timeout", 10*time.Minute)
	viper.SetDefault("orchestrator.retention_interval", time.Hour)
	viper.SetDefault("orchestrator.workers", 4)
	viper.SetDefault("orchestrator.max_retries", 3)
	viper.SetDefault("orchestrator.retry_base_delay", 4*time.Second)
	viper.SetDefault("orchestrator.retry_max_delay", 10*time.Second)
	viper.SetDefault("orchestrator.max_snapshots", 100)
	viper.SetDefault("orchestrator.max_reports", 100)
	viper.SetDefault("orchestrator.retention_age", 30*24*time.Hour)

	viper.SetDefault("analyzer.medium_threshold", 5)
}
