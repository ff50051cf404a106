package integrations

import (
	"context"
	"fmt"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/crm"
	"github.com/goliatone/go-integrations/providers/mail"
)

func MailProvider(cfg mail.Config) (core.Provider, error) {
	return mail.New(cfg)
}

func CRMProvider(cfg crm.Config) (core.Provider, error) {
	return crm.New(cfg)
}

// DefaultProviderConfig carries the per-provider settings consumed by
// RegisterDefaultProviders.
type DefaultProviderConfig struct {
	Mail mail.Config
	CRM  crm.Config
}

// RegisterDefaultProviders builds, initializes and registers the
// built-in providers on the given registry.
func RegisterDefaultProviders(ctx context.Context, registry core.Registry, cfg DefaultProviderConfig) error {
	if registry == nil {
		return fmt.Errorf("integrations: registry is required")
	}

	mailProvider, err := mail.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("integrations: build mail provider: %w", err)
	}
	crmProvider, err := crm.New(cfg.CRM)
	if err != nil {
		return fmt.Errorf("integrations: build crm provider: %w", err)
	}

	for _, provider := range []core.Provider{mailProvider, crmProvider} {
		if err := provider.Initialize(ctx); err != nil {
			return fmt.Errorf("integrations: initialize provider %q: %w", provider.ID(), err)
		}
		if err := registry.Register(provider); err != nil {
			return fmt.Errorf("integrations: register provider %q: %w", provider.ID(), err)
		}
	}
	return nil
}
