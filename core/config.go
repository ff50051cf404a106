package core

import (
	"fmt"
	"strings"
	"time"
)

type SecurityConfig struct {
	// EncryptionKey is either 64 hex characters (a raw 256-bit key) or any
	// passphrase that gets stretched through scrypt by the security package.
	EncryptionKey  string `koanf:"encryption_key" mapstructure:"encryption_key"`
	FallbackSecret string `koanf:"fallback_secret" mapstructure:"fallback_secret"`
}

type RefreshConfig struct {
	// LeadWindow is how far ahead of expiry the background sweep refreshes
	// tokens. The request path refreshes only at actual expiry.
	LeadWindow    time.Duration `koanf:"lead_window" mapstructure:"lead_window"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type Config struct {
	ServiceName     string         `koanf:"service_name" mapstructure:"service_name"`
	CallbackBaseURL string         `koanf:"callback_base_url" mapstructure:"callback_base_url"`
	StateTTL        time.Duration  `koanf:"state_ttl" mapstructure:"state_ttl"`
	ProviderTimeout time.Duration  `koanf:"provider_timeout" mapstructure:"provider_timeout"`
	Refresh         RefreshConfig  `koanf:"refresh" mapstructure:"refresh"`
	Security        SecurityConfig `koanf:"security" mapstructure:"security"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     "integrations",
		StateTTL:        DefaultStateTTL,
		ProviderTimeout: 15 * time.Second,
		Refresh: RefreshConfig{
			LeadWindow:    2 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.StateTTL < 0 {
		return fmt.Errorf("core: state_ttl must not be negative")
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("core: provider_timeout must not be negative")
	}
	if c.Refresh.LeadWindow < 0 {
		return fmt.Errorf("core: refresh.lead_window must not be negative")
	}
	if c.Refresh.SweepInterval < 0 {
		return fmt.Errorf("core: refresh.sweep_interval must not be negative")
	}
	return nil
}
