// Package mongo wires the MongoDB driver for the service.
//
// New connects with retries and pings the server before returning, Open
// does the same and hands back the configured database. Transaction runs a
// callback inside a session transaction (the deployment must be a replica set),
// EnsureIndexes creates the indexes repositories declare at startup, and
// Healthcheck plugs into the readiness endpoint.
//
//	db, err := mongo.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	err = mongo.Transaction(ctx, db.Client(), func(ctx context.Context) error {
//		// reads and writes using ctx join the transaction
//		return nil
//	})
package mongo
