package ratelimiter

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/leveledu/pkg/clientip"
	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// KeyFunc names the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ByClientIP keys buckets by scope and client address.
func ByClientIP(scope string) KeyFunc {
	return func(r *http.Request) string {
		ip := clientip.FromContext(r.Context())
		if ip == "" {
			ip = clientip.FromRequest(r)
		}
		return scope + ":" + ip
	}
}

// ErrorHandler writes a refusal. err is a *LimitedError.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware draws one token per request and sets the X-RateLimit headers.
// Refused requests get Retry-After and are passed to errorHandler. Store
// failures are logged and let through.
func Middleware(b *Bucket, key KeyFunc, errorHandler ErrorHandler, log *slog.Logger) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	if log == nil {
		log = logger.Discard()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := b.Allow(r.Context(), key(r))
			if err != nil {
				log.WarnContext(r.Context(), "rate limit check failed",
					logger.Component("ratelimiter"),
					logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				wait := res.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				errorHandler(w, r, &LimitedError{RetryAfter: wait})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
