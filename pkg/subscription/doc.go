// Package subscription models a tenant's Stripe subscription, gates requests
// on its state and talks to Stripe.
//
// # Gate
//
// Gate has two modes. Strict requires a subscription in the active or
// trialing status whose current period has not ended; it fails with
// ErrSubscriptionRequired or ErrSubscriptionExpired. Lenient looks at the
// latest subscription by creation time and only refuses canceled or unpaid
// ones with ErrSubscriptionCanceled; tenants without any subscription pass.
// Refusals are *GateError values carrying the tenant id and status for the
// response payload. Both modes store the subscription, or nil, in the
// request context and never write.
//
// # Stripe
//
// StripeProvider creates hosted checkout and billing portal sessions,
// cancels and reactivates subscriptions and verifies webhook payloads with
// the endpoint secret. Event payloads are decoded into the small structs in
// events.go instead of the full SDK types.
package subscription
