package subscription

import "context"

type subscriptionKey struct{}

// WithSubscription stores the gate's result in ctx. sub may be nil.
func WithSubscription(ctx context.Context, sub *Subscription) context.Context {
	return context.WithValue(ctx, subscriptionKey{}, sub)
}

// FromContext returns the subscription stored by the gate. The second value
// is false when the gate did not run or the tenant has no subscription.
func FromContext(ctx context.Context) (*Subscription, bool) {
	sub, ok := ctx.Value(subscriptionKey{}).(*Subscription)
	return sub, ok && sub != nil
}
