package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "CHATSYNC"
	defaultHTTPAddress   = "127.0.0.1:8090"
	defaultDatabasePath  = "chatsync.db"
	defaultLogLevel      = "info"
	defaultPageSize      = 30
	defaultScopeName     = "channels.default"
	defaultReconnectWait = 5
)

// AppConfig captures runtime configuration for the sync daemon.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
	// APIBaseURL is the remote service endpoint used for channel pages.
	// Page syncing is disabled when empty.
	APIBaseURL string
	// EventFeedURL is the websocket event feed. The event receiver is
	// disabled when empty.
	EventFeedURL string
	PageSize     int
	ScopeName    string
	// ReconnectWaitSeconds is how long the daemon waits before redialing
	// the event feed.
	ReconnectWaitSeconds int
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("api.base_url", "")
	configViper.SetDefault("events.url", "")
	configViper.SetDefault("sync.page_size", defaultPageSize)
	configViper.SetDefault("sync.scope", defaultScopeName)
	configViper.SetDefault("events.reconnect_wait_s", defaultReconnectWait)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		APIBaseURL:           configViper.GetString("api.base_url"),
		EventFeedURL:         configViper.GetString("events.url"),
		PageSize:             configViper.GetInt("sync.page_size"),
		ScopeName:            configViper.GetString("sync.scope"),
		ReconnectWaitSeconds: configViper.GetInt("events.reconnect_wait_s"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if strings.TrimSpace(c.ScopeName) == "" {
		return fmt.Errorf("sync.scope is required")
	}
	if c.ReconnectWaitSeconds <= 0 {
		return fmt.Errorf("events.reconnect_wait_s must be positive")
	}
	return nil
}
