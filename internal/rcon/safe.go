// ABOUTME: Mutex-guarded wrapper serializing Execute calls on a shared RCON client.
// ABOUTME: Exposes the same Executor contract so callers are agnostic to guarding.

package rcon

import "sync"

// SafeClient serializes access to an underlying Executor. The game socket is
// the only resource shared across agent workers, so every caller that might
// run concurrently must go through a SafeClient.
type SafeClient struct {
	mu    sync.Mutex
	inner Executor
}

// NewSafeClient wraps an Executor for concurrent use.
func NewSafeClient(inner Executor) *SafeClient {
	return &SafeClient{inner: inner}
}

// Execute runs the command inside the critical section.
func (s *SafeClient) Execute(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Execute(command)
}

// Close closes the underlying client.
func (s *SafeClient) Close() error {
	return s.inner.Close()
}
