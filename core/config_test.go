package core

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "integrations" {
		t.Fatalf("unexpected service name: %q", cfg.ServiceName)
	}
	if cfg.StateTTL != DefaultStateTTL {
		t.Fatalf("unexpected state ttl: %v", cfg.StateTTL)
	}
	if cfg.ProviderTimeout <= 0 {
		t.Fatalf("expected a provider timeout, got %v", cfg.ProviderTimeout)
	}
	if cfg.Refresh.LeadWindow <= 0 || cfg.Refresh.SweepInterval <= 0 {
		t.Fatalf("expected refresh defaults, got %+v", cfg.Refresh)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"blank service name", func(c *Config) { c.ServiceName = "  " }, true},
		{"negative state ttl", func(c *Config) { c.StateTTL = -time.Second }, true},
		{"negative provider timeout", func(c *Config) { c.ProviderTimeout = -time.Second }, true},
		{"negative lead window", func(c *Config) { c.Refresh.LeadWindow = -time.Second }, true},
		{"negative sweep interval", func(c *Config) { c.Refresh.SweepInterval = -time.Second }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation failure")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
