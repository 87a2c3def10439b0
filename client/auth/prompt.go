package auth

import (
	"context"
	"fmt"
)

// Prompter obtains a username and password for a protection space,
// typically by asking a human. ok is false when the user declines.
type Prompter interface {
	PromptCredentials(ctx context.Context, host, realm string) (user, pass string, ok bool, err error)
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(ctx context.Context, host, realm string) (user, pass string, ok bool, err error)

// PromptCredentials calls f.
func (f PromptFunc) PromptCredentials(ctx context.Context, host, realm string) (string, string, bool, error) {
	return f(ctx, host, realm)
}

// Coordinator hands out credentials from a Cache, falling back to a
// Prompter. At most one prompt is outstanding at a time; callers queue on
// a single slot and give up when their context ends.
type Coordinator struct {
	cache    *Cache
	prompter Prompter
	slot     chan struct{}
}

// NewCoordinator returns a Coordinator backed by cache. A nil prompter
// means only cached credentials are ever returned.
func NewCoordinator(cache *Cache, prompter Prompter) *Coordinator {
	if cache == nil {
		cache = NewCache()
	}

	return &Coordinator{
		cache:    cache,
		prompter: prompter,
		slot:     make(chan struct{}, 1),
	}
}

// Cache returns the cache backing c.
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// Obtain returns a credential for key, encoded with scheme. The cache is
// consulted first, and again after the prompt slot is acquired so that
// concurrent fetches against the same realm prompt only once. ok is false
// when no credential could be obtained.
func (c *Coordinator) Obtain(ctx context.Context, scheme Scheme, key Key) (Credential, bool, error) {
	if cred, ok := c.cache.Lookup(key.Host, key.Port, key.Realm); ok {
		return cred, true, nil
	}
	if c.prompter == nil {
		return Credential{}, false, nil
	}
	if !scheme.Supported() {
		return Credential{}, false, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return Credential{}, false, fmt.Errorf("waiting to prompt: %w", context.Cause(ctx))
	}
	defer func() { <-c.slot }()

	if cred, ok := c.cache.Lookup(key.Host, key.Port, key.Realm); ok {
		return cred, true, nil
	}

	user, pass, ok, err := c.prompter.PromptCredentials(ctx, key.Host, key.Realm)
	if err != nil {
		return Credential{}, false, fmt.Errorf("prompting for credentials: %w", err)
	}
	if !ok {
		return Credential{}, false, nil
	}

	cred, err := NewCredential(scheme, key, user, pass)
	if err != nil {
		return Credential{}, false, err
	}
	c.cache.Store(cred)

	return cred, true, nil
}
