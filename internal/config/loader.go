package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches standard locations for
// ifn-gateway.yaml/.yml. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig will return ConfigFileNotFoundError, handled
		// gracefully by LoadConfig.
		viper.SetConfigName("ifn-gateway")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: IFN_GATEWAY_UPSTREAM_BASE_URL
	viper.SetEnvPrefix("IFN_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an ifn-gateway config file
// with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".ifn-gateway"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "ifn-gateway"))
		}
	} else {
		paths = append(paths, "/etc/ifn-gateway")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "ifn-gateway"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the nested keys so environment variables can
// override them. Array fields (auth.api_keys, classifier status sets) are
// config-file only.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("upstream.base_url")
	_ = viper.BindEnv("upstream.client_cert")
	_ = viper.BindEnv("upstream.client_key")
	_ = viper.BindEnv("upstream.trust_policy")
	_ = viper.BindEnv("upstream.client_id")
	_ = viper.BindEnv("upstream.bootstrap_endpoint")
	_ = viper.BindEnv("upstream.bootstrap_timeout")
	_ = viper.BindEnv("upstream.request_timeout")

	_ = viper.BindEnv("classifier.expression")

	_ = viper.BindEnv("trail.dir")
	_ = viper.BindEnv("trail.retention_days")
	_ = viper.BindEnv("trail.max_file_size_mb")
	_ = viper.BindEnv("trail.cache_size")

	_ = viper.BindEnv("telemetry.enabled")
	_ = viper.BindEnv("telemetry.environment")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: pure environment variable configuration.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or ""
// when running from environment variables only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
