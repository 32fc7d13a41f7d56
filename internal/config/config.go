// Package config handles application configuration management using Viper
package config

import (
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Constants for configuration
const (
	DefaultStoragePath = "./backreplay.db"
	DefaultPort        = 8080
	DefaultSpeed       = "250ms"
)

// AppConfig holds the replay server configuration
type AppConfig struct {
	Port            int
	StoragePath     string
	Speed           time.Duration
	StartingBalance float64
	Debug           bool
}

// Load reads configuration from an optional file and the environment.
// Environment variables use the BACKREPLAY_ prefix and override file values.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BACKREPLAY")
	v.AutomaticEnv()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("storage_path", DefaultStoragePath)
	v.SetDefault("speed", DefaultSpeed)
	v.SetDefault("starting_balance", 0.0)
	v.SetDefault("debug", false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	speed, err := str2duration.ParseDuration(v.GetString("speed"))
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Port:            v.GetInt("port"),
		StoragePath:     v.GetString("storage_path"),
		Speed:           speed,
		StartingBalance: v.GetFloat64("starting_balance"),
		Debug:           v.GetBool("debug"),
	}, nil
}
