package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
)

type okMessage struct{}

func (okMessage) Type() string { return "integrations.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "integrations.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "integrations.command.test" }

type lookupMessage struct{}

func (lookupMessage) Type() string { return "integrations.query.test" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected one execution, got %d", executed)
	}
}

func TestQueryWiring(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	qry := command.QueryFunc[lookupMessage, string](func(context.Context, lookupMessage) (string, error) {
		return "found", nil
	})
	if _, err := RegisterAndSubscribeQuery(adapter, qry); err != nil {
		t.Fatalf("register and subscribe query: %v", err)
	}

	out, err := Query[lookupMessage, string](context.Background(), lookupMessage{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "found" {
		t.Fatalf("expected found, got %q", out)
	}
}

func TestRegisterAndSubscribeNilCommand(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	if _, err := RegisterAndSubscribe[dispatchMessage](adapter, nil); err == nil {
		t.Fatalf("expected error for nil command")
	}
}
