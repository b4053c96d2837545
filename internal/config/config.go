package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "HUNTSYNC"
	defaultTitle            = "Puzzle"
	defaultCookieName       = "sessionid"
	defaultViewAddress      = "127.0.0.1:8090"
	defaultDatabasePath     = "huntsync.db"
	defaultLogLevel         = "info"
	defaultHandshakeTimeout = 30 * time.Second
	defaultNotifySound      = true
)

// AppConfig captures runtime configuration for one puzzle session.
type AppConfig struct {
	PageURL              string
	Title                string
	SessionToken         string
	SessionCookieName    string
	SessionSigningSecret string
	CSRFToken            string
	ViewAddress          string
	DatabasePath         string
	LogLevel             string
	HandshakeTimeout     time.Duration
	NotifySound          bool
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

	configViper.SetDefault("hunt.title", defaultTitle)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("view.address", defaultViewAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("transport.handshake_timeout", defaultHandshakeTimeout)
	configViper.SetDefault("notify.sound", defaultNotifySound)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		PageURL:              strings.TrimSpace(configViper.GetString("hunt.page_url")),
		Title:                configViper.GetString("hunt.title"),
		SessionToken:         strings.TrimSpace(configViper.GetString("session.token")),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		CSRFToken:            configViper.GetString("session.csrf_token"),
		ViewAddress:          configViper.GetString("view.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		HandshakeTimeout:     configViper.GetDuration("transport.handshake_timeout"),
		NotifySound:          configViper.GetBool("notify.sound"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.PageURL == "" {
		return fmt.Errorf("hunt.page_url is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.ViewAddress) == "" {
		return fmt.Errorf("view.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("transport.handshake_timeout must be positive")
	}
	return nil
}
