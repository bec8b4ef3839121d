package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "WHITEBOARD"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultLogLevel    = "info"

	defaultEmptyGraceMinutes   = 5
	defaultSweepIntervalMinute = 60
	defaultMaxEmptyHours       = 24

	defaultDurablePerSecond = 200
	defaultCursorPerSecond  = 30
	defaultPreviewPerSecond = 600
	defaultTextPerSecond    = 400

	defaultHistoryDepth = 100
)

// AppConfig captures runtime configuration for the sync service.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string

	EmptyRoomGrace time.Duration
	SweepInterval  time.Duration
	MaxEmptyAge    time.Duration

	DurablePerSecond int
	CursorPerSecond  int
	PreviewPerSecond int
	TextPerSecond    int

	HistoryDepth int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("room.empty_grace_minutes", defaultEmptyGraceMinutes)
	configViper.SetDefault("room.sweep_interval_minutes", defaultSweepIntervalMinute)
	configViper.SetDefault("room.max_empty_hours", defaultMaxEmptyHours)
	configViper.SetDefault("limits.durable_per_sec", defaultDurablePerSecond)
	configViper.SetDefault("limits.cursor_per_sec", defaultCursorPerSecond)
	configViper.SetDefault("limits.preview_per_sec", defaultPreviewPerSecond)
	configViper.SetDefault("limits.text_per_sec", defaultTextPerSecond)
	configViper.SetDefault("history.depth", defaultHistoryDepth)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		LogLevel:         configViper.GetString("log.level"),
		EmptyRoomGrace:   time.Duration(configViper.GetInt("room.empty_grace_minutes")) * time.Minute,
		SweepInterval:    time.Duration(configViper.GetInt("room.sweep_interval_minutes")) * time.Minute,
		MaxEmptyAge:      time.Duration(configViper.GetInt("room.max_empty_hours")) * time.Hour,
		DurablePerSecond: configViper.GetInt("limits.durable_per_sec"),
		CursorPerSecond:  configViper.GetInt("limits.cursor_per_sec"),
		PreviewPerSecond: configViper.GetInt("limits.preview_per_sec"),
		TextPerSecond:    configViper.GetInt("limits.text_per_sec"),
		HistoryDepth:     configViper.GetInt("history.depth"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.EmptyRoomGrace <= 0 {
		return fmt.Errorf("room.empty_grace_minutes must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("room.sweep_interval_minutes must be positive")
	}
	if c.MaxEmptyAge <= 0 {
		return fmt.Errorf("room.max_empty_hours must be positive")
	}
	if c.DurablePerSecond <= 0 || c.CursorPerSecond <= 0 || c.PreviewPerSecond <= 0 || c.TextPerSecond <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("history.depth must be positive")
	}
	return nil
}
