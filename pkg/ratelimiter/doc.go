// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis stores. The login endpoints use it to slow down password guessing,
// keyed by client address.
package ratelimiter
