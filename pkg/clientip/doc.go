// Package clientip resolves the address of the client behind the load
// balancer. Headers are consulted in order: CF-Connecting-IP,
// X-Forwarded-For (first valid entry), X-Real-IP, then the TCP peer.
//
// Middleware stores the address in the request context, where the login
// throttle, audit trail and request logs read it.
package clientip
