package genops

import (
	"context"
	"sync"

	"github.com/genops-ai/genops-go/models"
)

// The default client mirrors the explicit Client API for applications that
// want one-line setup. Libraries should take a *Client instead.
var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// Init creates a client from the environment and installs it as the
// package default. Calling Init twice replaces the default; the previous
// client is shut down before the new one is wired, so its uninstrumentation
// cannot detach the adapters the replacement just instrumented.
func Init(ctx context.Context, opts ...Option) (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClient != nil {
		_ = defaultClient.Shutdown(ctx)
		defaultClient = nil
	}

	client, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defaultClient = client
	return client, nil
}

// Default returns the installed default client, or nil before Init.
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

// Shutdown shuts down and removes the default client.
func Shutdown(ctx context.Context) error {
	defaultMu.Lock()
	client := defaultClient
	defaultClient = nil
	defaultMu.Unlock()

	if client == nil {
		return nil
	}
	return client.Shutdown(ctx)
}

// TrackUsage tracks usage on the default client.
func TrackUsage(ctx context.Context, usage models.Usage) (*models.UsageRecord, error) {
	client := Default()
	if client == nil {
		return nil, ErrNotInitialized
	}
	return client.TrackUsage(ctx, usage)
}

// Track runs fn inside a span on the default client.
func Track(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	client := Default()
	if client == nil {
		return ErrNotInitialized
	}
	return client.Track(ctx, operation, fn)
}

// RegisterPolicy registers a policy on the default client.
func RegisterPolicy(def models.PolicyDefinition) error {
	client := Default()
	if client == nil {
		return ErrNotInitialized
	}
	return client.RegisterPolicy(def)
}

// EnforcePolicy evaluates a named policy on the default client.
func EnforcePolicy(ctx context.Context, name string, pctx models.PolicyContext) (*models.PolicyResult, error) {
	client := Default()
	if client == nil {
		return nil, ErrNotInitialized
	}
	return client.EnforcePolicy(ctx, name, pctx)
}

// Uninstrument detaches the default client from all provider adapters.
func Uninstrument() error {
	client := Default()
	if client == nil {
		return ErrNotInitialized
	}
	client.Uninstrument()
	return nil
}

// GetStatus reports the default client's diagnostic snapshot.
func GetStatus(ctx context.Context) (Status, error) {
	client := Default()
	if client == nil {
		return Status{}, ErrNotInitialized
	}
	return client.Status(ctx), nil
}

// GetDefaultAttributes returns the governance attributes the default
// client applies to every operation.
func GetDefaultAttributes() (models.GovernanceAttributes, error) {
	client := Default()
	if client == nil {
		return models.GovernanceAttributes{}, ErrNotInitialized
	}
	return client.DefaultAttributes(), nil
}
