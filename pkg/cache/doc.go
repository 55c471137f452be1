// Package cache provides a generic, thread-safe LRU cache with per-entry
// expiry.
//
// It is the in-process backend for short-lived lookups such as resolved
// tenants and revoked access tokens when Redis is not configured. Expired
// entries are dropped lazily on access and evicted first when the cache is
// full.
//
//	c := cache.NewLRU[string, *tenant.Info](1000)
//	c.Set("sub:acme-school", info, 5*time.Minute)
//	info, ok := c.Get("sub:acme-school")
package cache
