package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wheelibin/yeetlight/internal/constants"
)

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	BackendURL      string        `mapstructure:"backendUrl"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
	Database        string        `mapstructure:"database"`
	OverrideTTL     time.Duration `mapstructure:"overrideTtl"`
	SequencePowerOn bool          `mapstructure:"sequencePowerOn"`
	LinkRateLimit   float64       `mapstructure:"linkRateLimit"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
	Listen          string        `mapstructure:"listen"`
	Log             LogConfig     `mapstructure:"log"`
}

// Flags registers the command line flags that can override config file values
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default: search /etc/yeetlight, ~/.config/yeetlight, .)")
	fs.String("backend", constants.DefaultBackendURL, "bulb backend base URL")
	fs.String("database", constants.DefaultDatabase, "sqlite database path")
	fs.Bool("sequence-power-on", false, "wait for the power-on prerequisite before sending attribute commands")
	fs.String("listen", constants.DefaultListen, "daemon listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backendUrl", constants.DefaultBackendURL)
	v.SetDefault("requestTimeout", constants.DefaultRequestTimeout)
	v.SetDefault("database", constants.DefaultDatabase)
	v.SetDefault("overrideTtl", constants.DefaultOverrideTTL)
	v.SetDefault("sequencePowerOn", false)
	v.SetDefault("linkRateLimit", constants.DefaultLinkRateLimit)
	v.SetDefault("refreshInterval", constants.DefaultRefreshInterval)
	v.SetDefault("listen", constants.DefaultListen)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the config file (if any), environment and flags, in increasing precedence
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("yeetlight")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bindings := map[string]string{
			"backendUrl":      "backend",
			"database":        "database",
			"sequencePowerOn": "sequence-power-on",
			"listen":          "listen",
			"log.level":       "log-level",
		}
		for key, flag := range bindings {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", flag, err)
				}
			}
		}
	}

	configFile := ""
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("yeetlight")
		v.AddConfigPath("/etc/yeetlight/")
		v.AddConfigPath("$HOME/.config/yeetlight/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	return &cfg, nil
}
