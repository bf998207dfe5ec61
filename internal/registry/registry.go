// Package registry routes a model name or tool role to a configured
// connection and its backend.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/models"
)

// ErrNoConnection means no active connection serves the request.
var ErrNoConnection = errors.New("no active connection configured")

// ConnectionLister provides the configured connections in resolution order.
type ConnectionLister interface {
	ListConnections(ctx context.Context) ([]models.Connection, error)
}

// BackendFactory builds a backend for a connection.
type BackendFactory func(ctx context.Context, conn models.Connection, opts ai.Options) (ai.Backend, error)

// Resolved is a connection paired with its backend and the model to call.
type Resolved struct {
	Connection models.Connection
	Backend    ai.Backend
	Model      string
}

// Registry resolves connections and caches their backends per connection id.
type Registry struct {
	conns   ConnectionLister
	factory BackendFactory
	opts    ai.Options
	logger  *zap.Logger

	mu       sync.Mutex
	backends map[string]ai.Backend
}

// New creates a registry. A nil factory uses ai.NewBackend.
func New(conns ConnectionLister, factory BackendFactory, opts ai.Options, logger *zap.Logger) *Registry {
	if factory == nil {
		factory = ai.NewBackend
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Registry{
		conns:    conns,
		factory:  factory,
		opts:     opts,
		logger:   logger.Named("Registry"),
		backends: make(map[string]ai.Backend),
	}
}

// ResolveForModel returns the first active connection whose allowlist
// contains model.
func (r *Registry) ResolveForModel(ctx context.Context, model string) (*Resolved, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: no model selected", ErrNoConnection)
	}
	conns, err := r.conns.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	for _, c := range conns {
		if c.Active && c.Serves(model) {
			return r.resolve(ctx, c, model)
		}
	}
	r.logger.Warn("No connection serves model", zap.String("model", model))
	return nil, fmt.Errorf("%w for model %q", ErrNoConnection, model)
}

// ResolveForTool returns the first active connection assigned role. Its first
// model is used for the call.
func (r *Registry) ResolveForTool(ctx context.Context, role models.ToolRole) (*Resolved, error) {
	conns, err := r.conns.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	for _, c := range conns {
		if c.Active && c.HasTool(role) && len(c.Models) > 0 {
			return r.resolve(ctx, c, c.Models[0])
		}
	}
	return nil, fmt.Errorf("%w for tool %q", ErrNoConnection, role)
}

func (r *Registry) resolve(ctx context.Context, conn models.Connection, model string) (*Resolved, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backends[conn.ID]
	if !ok {
		var err error
		b, err = r.factory(ctx, conn, r.opts)
		if err != nil {
			r.logger.Error("Failed to build backend",
				zap.String("connection_id", conn.ID),
				zap.String("provider", string(conn.Provider)),
				zap.Error(err),
			)
			return nil, err
		}
		r.backends[conn.ID] = b
		r.logger.Info("Backend created",
			zap.String("connection_id", conn.ID),
			zap.String("provider", string(conn.Provider)),
			zap.String("capability", string(ai.CapabilityOf(b))),
		)
	}
	return &Resolved{Connection: conn, Backend: b, Model: model}, nil
}

// Invalidate drops the cached backend of a connection.
func (r *Registry) Invalidate(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[connectionID]; ok {
		delete(r.backends, connectionID)
		r.logger.Debug("Backend invalidated", zap.String("connection_id", connectionID))
	}
}

// IsConfigError reports whether err means the request cannot be served with
// the current connection setup.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoConnection) || ai.IsConfigError(err)
}
