package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// ToolHandler executes a single named tool against a live credential.
type ToolHandler func(ctx context.Context, params map[string]any, credential core.ActiveCredential) core.ToolInvocationResult

type registeredTool struct {
	definition core.ToolDefinition
	handler    ToolHandler
}

// Base carries the descriptor surface shared by every provider and a
// named tool table that ExecuteTool dispatches against.
type Base struct {
	id              string
	displayName     string
	category        string
	authKind        core.AuthKind
	requiredSecrets []string

	mu          sync.RWMutex
	configured  bool
	initialized bool
	tools       []registeredTool
}

// BaseConfig seeds a provider Base.
type BaseConfig struct {
	ID              string
	DisplayName     string
	Category        string
	AuthKind        core.AuthKind
	RequiredSecrets []string
}

func NewBase(cfg BaseConfig) (*Base, error) {
	id := strings.TrimSpace(strings.ToLower(cfg.ID))
	if id == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	name := strings.TrimSpace(cfg.DisplayName)
	if name == "" {
		name = id
	}
	return &Base{
		id:              id,
		displayName:     name,
		category:        strings.TrimSpace(cfg.Category),
		authKind:        cfg.AuthKind,
		requiredSecrets: append([]string(nil), cfg.RequiredSecrets...),
	}, nil
}

func (b *Base) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

func (b *Base) DisplayName() string {
	if b == nil {
		return ""
	}
	return b.displayName
}

func (b *Base) Category() string {
	if b == nil {
		return ""
	}
	return b.category
}

func (b *Base) AuthKind() core.AuthKind {
	if b == nil {
		return core.AuthKindNone
	}
	return b.authKind
}

func (b *Base) RequiredSecrets() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.requiredSecrets...)
}

func (b *Base) IsConfigured() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configured
}

// MarkConfigured records whether the provider's secrets resolved at
// initialization time.
func (b *Base) MarkConfigured(configured bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured = configured
	b.initialized = true
}

func (b *Base) Initialized() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// RegisterTool adds one tool to the dispatch table. Duplicate names
// are rejected so a provider cannot silently shadow its own tools.
func (b *Base) RegisterTool(definition core.ToolDefinition, handler ToolHandler) error {
	if b == nil {
		return fmt.Errorf("providers: base is required")
	}
	name := strings.TrimSpace(definition.Name)
	if name == "" {
		return fmt.Errorf("providers: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("providers: tool handler is required for %q", name)
	}
	definition.Name = name
	definition.ProviderID = b.id

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.tools {
		if existing.definition.Name == name {
			return fmt.Errorf("providers: tool %q already registered", name)
		}
	}
	b.tools = append(b.tools, registeredTool{definition: definition, handler: handler})
	return nil
}

// MustRegisterTool panics on registration failure. Intended for
// provider constructors with static tool tables.
func (b *Base) MustRegisterTool(definition core.ToolDefinition, handler ToolHandler) {
	if err := b.RegisterTool(definition, handler); err != nil {
		panic(err)
	}
}

func (b *Base) Tools() []core.ToolDefinition {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.ToolDefinition, 0, len(b.tools))
	for _, tool := range b.tools {
		out = append(out, tool.definition)
	}
	return out
}

// Dispatch routes one invocation to the registered handler. Unknown
// names produce a failed result rather than an error so the gateway
// returns a uniform envelope.
func (b *Base) Dispatch(ctx context.Context, name string, params map[string]any, credential core.ActiveCredential) core.ToolInvocationResult {
	if b == nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, "provider is not initialized")
	}
	trimmed := strings.TrimSpace(name)

	b.mu.RLock()
	var handler ToolHandler
	for _, tool := range b.tools {
		if tool.definition.Name == trimmed {
			handler = tool.handler
			break
		}
	}
	b.mu.RUnlock()

	if handler == nil {
		return core.FailureResult(core.IntegrationErrorBadInput, fmt.Sprintf("Unknown tool: %s", trimmed))
	}
	return handler(ctx, params, credential)
}

// RequireStringParam pulls a required string parameter out of a tool
// invocation payload.
func RequireStringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	value := strings.TrimSpace(readAnyString(raw))
	if value == "" {
		return "", fmt.Errorf("parameter %q must not be empty", key)
	}
	return value, nil
}

// OptionalStringParam pulls an optional string parameter, returning
// fallback when absent or blank.
func OptionalStringParam(params map[string]any, key, fallback string) string {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	value := strings.TrimSpace(readAnyString(raw))
	if value == "" {
		return fallback
	}
	return value
}

// OptionalIntParam pulls an optional integer parameter.
func OptionalIntParam(params map[string]any, key string, fallback int) int {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	value := readAnyInt64(raw)
	if value <= 0 {
		return fallback
	}
	return int(value)
}
