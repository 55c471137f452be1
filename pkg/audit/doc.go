// Package audit records security-relevant actions such as logins,
// password resets and account creation.
//
// A Logger fills each Event from the request context (request id, client
// address, resolved tenant and authenticated user) and hands it to a
// Storage. MongoStorage persists events; MemoryStorage backs tests.
//
//	trail := audit.NewLogger(audit.NewMongoStorage(db))
//	_ = trail.Log(ctx, audit.ActionLogin, audit.WithUser(userID))
//
// Recording is best effort from the caller's point of view: services log a
// failed Store and carry on.
package audit
