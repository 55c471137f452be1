// Package redis connects the go-redis client used for shared caches.
//
// Redis is optional for the service: when REDIS_URL is empty the tenant cache
// and the revoked-token list fall back to process memory. Enabled reports
// which mode applies.
//
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		...
//	}
package redis
