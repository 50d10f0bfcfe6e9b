// Package crew owns the live agent sessions: the instance registry, the
// lazy project sync coordinator and the per-session event pump.
package crew

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// InstanceConfig configures a new agent instance.
type InstanceConfig struct {
	Model       string            // model identifier for the crew backend
	SandboxImg  string            // sandbox image; empty disables the sandbox
	Environment map[string]string // extra env vars for the tool sandbox
}

// Instance is one live conversational session bound to one project. It owns
// the accumulated conversation state and the instance's tool sandbox, and is
// the unit cached by the Registry: one instance per key, never duplicated.
type Instance struct {
	key       domain.InstanceKey
	config    InstanceConfig
	sandboxID string // container id, empty when no sandbox was provisioned
	sandbox   *SandboxRuntime
	createdAt time.Time

	// history is shared by every session pointed at this key.
	histMu  sync.Mutex
	history []*domain.OutwardMessage
}

func newInstance(key domain.InstanceKey, cfg InstanceConfig, sandbox *SandboxRuntime, sandboxID string) *Instance {
	return &Instance{
		key:       key,
		config:    cfg,
		sandbox:   sandbox,
		sandboxID: sandboxID,
		createdAt: time.Now(),
	}
}

// NewSandboxFactory builds the production InstanceFactory. When the config
// names a sandbox image and a runtime is available, a network-isolated tool
// sandbox is provisioned alongside the instance; otherwise the instance runs
// without one.
func NewSandboxFactory(runtime *SandboxRuntime) InstanceFactory {
	return func(ctx context.Context, key domain.InstanceKey, cfg InstanceConfig) (*Instance, error) {
		if runtime == nil || cfg.SandboxImg == "" {
			return newInstance(key, cfg, nil, ""), nil
		}

		sandboxID, err := runtime.CreateSandbox(ctx, key, cfg.SandboxImg, cfg.Environment)
		if err != nil {
			return nil, err
		}

		return newInstance(key, cfg, runtime, sandboxID), nil
	}
}

// Key returns the composite workspace+project identity.
func (i *Instance) Key() domain.InstanceKey { return i.key }

// Project returns the project name the instance is bound to.
func (i *Instance) Project() string { return i.key.Project }

// WorkspaceID returns the owning workspace.
func (i *Instance) WorkspaceID() uuid.UUID { return i.key.WorkspaceID }

// CreatedAt returns the creation time of the cached instance.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// SandboxID returns the tool sandbox container id, if one was provisioned.
func (i *Instance) SandboxID() string { return i.sandboxID }

// AppendHistory records a delivered message in the instance's conversation
// state. Sessions sharing the key share this history.
func (i *Instance) AppendHistory(msg *domain.OutwardMessage) {
	i.histMu.Lock()
	defer i.histMu.Unlock()
	i.history = append(i.history, msg)
}

// History returns the accumulated conversation messages in delivery order.
func (i *Instance) History() []*domain.OutwardMessage {
	i.histMu.Lock()
	defer i.histMu.Unlock()
	return slices.Clone(i.history)
}

// Close disposes the instance's sandbox, if any.
func (i *Instance) Close(ctx context.Context) error {
	if i.sandbox == nil || i.sandboxID == "" {
		return nil
	}
	return i.sandbox.RemoveSandbox(ctx, i.sandboxID)
}
