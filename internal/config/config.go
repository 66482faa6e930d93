// Package config handles configuration loading for fuxiquant.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Mode names the execution mode a run operates under.
type Mode string

const (
	ModeBacktest Mode = "Backtest"
	ModeOptimize Mode = "Optimize"
	ModeSandbox  Mode = "Sandbox"
	ModeMainnet  Mode = "Mainnet"
)

// Config represents the complete application configuration, matching
// spec.md §6's YAML schema: script, mode, gas_max, log, backtest — plus
// the agent/mcp sections SPEC_FULL.md adds for Core B.
type Config struct {
	Script   ScriptConfig   `mapstructure:"script"   yaml:"script"   json:"script"`
	Mode     Mode           `mapstructure:"mode"     yaml:"mode"     json:"mode"`
	GasMax   int64          `mapstructure:"gas_max"  yaml:"gas_max"  json:"gas_max"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"      json:"log"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest" json:"backtest"`
	Agent    AgentConfig    `mapstructure:"agent"    yaml:"agent"    json:"agent"`
	MCP      MCPConfig      `mapstructure:"mcp"      yaml:"mcp"      json:"mcp"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
}

// ScriptConfig names the strategy source: either a file path or inline
// source text.
type ScriptConfig struct {
	File   string `mapstructure:"file"   yaml:"file,omitempty"   json:"file,omitempty"`
	Source string `mapstructure:"source" yaml:"source,omitempty" json:"source,omitempty"`
}

// LogConfig configures the zerolog-based logger.
type LogConfig struct {
	Level          string `mapstructure:"level"            yaml:"level"            json:"level"`
	ShowSpanTiming bool   `mapstructure:"show_span_timing" yaml:"show_span_timing" json:"show_span_timing"`
}

// BacktestConfig configures one backtest run.
type BacktestConfig struct {
	Codes         []string `mapstructure:"codes"           yaml:"codes"           json:"codes"`
	StartTime     string   `mapstructure:"start_time"      yaml:"start_time"      json:"start_time"`
	EndTime       string   `mapstructure:"end_time"        yaml:"end_time"        json:"end_time"`
	Cash          string   `mapstructure:"cash"            yaml:"cash"            json:"cash"`
	HistoryBarLen int      `mapstructure:"history_bar_len" yaml:"history_bar_len" json:"history_bar_len"`
	MakerFeeRate  string   `mapstructure:"maker_fee_rate"  yaml:"maker_fee_rate"  json:"maker_fee_rate"`
	TakerFeeRate  string   `mapstructure:"taker_fee_rate"  yaml:"taker_fee_rate"  json:"taker_fee_rate"`
	Slippage      string   `mapstructure:"slippage"        yaml:"slippage"        json:"slippage"`
	DataDir       string   `mapstructure:"data_dir"        yaml:"data_dir"        json:"data_dir"`
}

// AgentConfig configures the conversational agent (C7/C10).
type AgentConfig struct {
	Dialect        string `mapstructure:"dialect"          yaml:"dialect"          json:"dialect"` // "hermes" or "react"
	EnableThinking bool   `mapstructure:"enable_thinking"  yaml:"enable_thinking"  json:"enable_thinking"`
	MaxToolRounds  int    `mapstructure:"max_tool_rounds"  yaml:"max_tool_rounds"  json:"max_tool_rounds"`
	SystemPrompt   string `mapstructure:"system_prompt"    yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	CtxLen         int    `mapstructure:"ctx_len"          yaml:"ctx_len"          json:"ctx_len"`
}

// MCPConfig lists the MCP servers the agent connects to.
type MCPConfig struct {
	Servers []MCPServerConfig `mapstructure:"servers" yaml:"servers" json:"servers"`
}

// MCPServerConfig describes a single MCP server process to launch.
type MCPServerConfig struct {
	Name    string   `mapstructure:"name"    yaml:"name"    json:"name"`
	Command string   `mapstructure:"command" yaml:"command" json:"command"`
	Args    []string `mapstructure:"args"    yaml:"args,omitempty"    json:"args,omitempty"`
	Env     []string `mapstructure:"env"     yaml:"env,omitempty"     json:"env,omitempty"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"        yaml:"host"        json:"host"`
	Port        int      `mapstructure:"port"        yaml:"port"        json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// Validate checks invariants the spec requires before a run starts.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBacktest, ModeOptimize, ModeSandbox, ModeMainnet:
	default:
		return fmt.Errorf("config: invalid mode %q", c.Mode)
	}
	if c.GasMax <= 0 {
		return fmt.Errorf("config: gas_max must be positive, got %d", c.GasMax)
	}
	if c.Script.File == "" && c.Script.Source == "" {
		return fmt.Errorf("config: script.file or script.source is required")
	}
	return nil
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fuxiquant/config.yaml (home directory)
//  3. /etc/fuxiquant/config.yaml (system)
//
// Environment variables override config file values.
// Format: FUXIQUANT_<SECTION>_<KEY>, e.g., FUXIQUANT_LOG_LEVEL.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fuxiquant"))
	v.AddConfigPath("/etc/fuxiquant")

	v.SetEnvPrefix("FUXIQUANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FUXIQUANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeBacktest))
	v.SetDefault("gas_max", 10_000_000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.show_span_timing", false)

	v.SetDefault("backtest.cash", "100000")
	v.SetDefault("backtest.history_bar_len", 100)
	v.SetDefault("backtest.maker_fee_rate", "0.0002")
	v.SetDefault("backtest.taker_fee_rate", "0.0005")
	v.SetDefault("backtest.slippage", "0.0005")
	v.SetDefault("backtest.data_dir", "./data")

	v.SetDefault("agent.dialect", "hermes")
	v.SetDefault("agent.enable_thinking", true)
	v.SetDefault("agent.max_tool_rounds", 10)
	v.SetDefault("agent.ctx_len", 8192)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
}

// SaveToFile writes the current configuration to a YAML file.
// If path is empty, it writes to ./config/config.yaml.
func SaveToFile(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(".", "config", "config.yaml")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ConfigFilePath returns the path to the active config file (if any).
// Returns empty string if no config file was found.
func ConfigFilePath() string {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fuxiquant"))
	v.AddConfigPath("/etc/fuxiquant")

	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
