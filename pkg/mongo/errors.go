package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("mongo: failed to connect")
	ErrHealthcheckFailed      = errors.New("mongo: healthcheck failed")
	ErrTransactionFailed      = errors.New("mongo: transaction failed")
	ErrIndexCreation          = errors.New("mongo: failed to create indexes")
)
