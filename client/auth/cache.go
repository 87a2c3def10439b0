package auth

import "sync"

// Cache maps protection spaces to credentials. It is safe for concurrent
// use and lives as long as the process that created it.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Credential
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]Credential)}
}

// Lookup returns the credential stored for host, port and realm.
func (c *Cache) Lookup(host string, port int, realm string) (Credential, bool) {
	key := Key{Host: host, Port: port, Realm: realm}.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	cred, ok := c.entries[key]
	return cred, ok
}

// Store saves cred, replacing any credential with the same key.
func (c *Cache) Store(cred Credential) {
	if cred.IsZero() {
		return
	}
	cred.Key = cred.Key.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cred.Key] = cred
}

// Invalidate removes cred from the cache. An entry that has since been
// replaced with a different secret is left alone. It reports whether an
// entry was removed.
func (c *Cache) Invalidate(cred Credential) bool {
	key := cred.Key.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.entries[key]
	if !ok || stored.Value != cred.Value {
		return false
	}
	delete(c.entries, key)

	return true
}

// Len returns the number of cached credentials.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
