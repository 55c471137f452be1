// Package billing connects tenants to Stripe subscriptions.
//
// Service starts signup checkouts, opens the customer portal and cancels or
// reactivates subscriptions on behalf of tenant admins. Its webhook
// reconciler is the only other writer of subscription state: it provisions
// the tenant and first admin after a signup checkout and keeps the local
// subscription and tenant billing snapshot in step with Stripe. Every
// delivery is recorded in a durable ledger so redeliveries have no effect.
package billing
