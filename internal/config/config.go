package config

import (
	"github.com/spf13/viper"
)

// HostConfig is the daemon configuration: where splitters live, how fast
// the tick loop runs, and the Wasm runtime limits.
type HostConfig struct {
	SplitterPaths []string        `mapstructure:"splitter_paths"`
	LogLevel      string          `mapstructure:"log_level"`
	TickRate      float64         `mapstructure:"tick_rate"`
	Settings      map[string]bool `mapstructure:"settings"`
	Wasm          WasmConfig      `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug info in stack traces.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Per-tick execution timeout (milliseconds).
	TickTimeout int `mapstructure:"tick_timeout"`
}

// LoadHostConfig loads the daemon configuration, applying defaults and then
// an optional YAML file on top.
func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("splitter_paths", []string{"./splitters"})
	v.SetDefault("log_level", "info")
	v.SetDefault("tick_rate", 120.0)

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.tick_timeout", 1000)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
