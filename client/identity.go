package client

import (
	"context"
)

// Bind binds the cache to a wallet identity. Binding from unbound keeps
// whatever was rehydrated; switching identities clears the
// identity-scoped mappings (friends, DM conversations, their guards)
// while retaining server and profile caches, which are not
// identity-secret. Binding fetches the identity's profile, which in turn
// restarts the joined-server walk, and starts the profile poller.
func (c *Coordinator) Bind(ctx context.Context, address string) bool {
	if address == "" {
		return false
	}

	c.mu.Lock()
	prev := c.address
	if prev == address {
		c.mu.Unlock()
		return true
	}
	if prev != "" {
		c.cache.ClearIdentityScoped()
	}
	c.address = address
	handler := c.onIdentity
	c.mu.Unlock()

	// Supersede all work scheduled for the previous binding.
	c.gen.Add(1)

	if handler != nil {
		handler(address)
	}

	c.FetchProfile(ctx, address, true)
	c.startProfilePoller()
	c.flush()
	return true
}

// Unbind drops the identity entirely. The acting principal is gone, so
// the whole cache is cleared, private entries included, and every
// scheduled poller, walk and refetch is cancelled.
func (c *Coordinator) Unbind() {
	c.mu.Lock()
	c.address = ""
	c.mu.Unlock()

	c.gen.Add(1)
	c.msgEpoch.Add(1)
	c.cache.ClearAll()
	c.flush()
}
