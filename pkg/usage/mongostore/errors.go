package mongostore

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("mongostore: empty connection url, set MONGODB_URL")
	ErrFailedToConnect    = errors.New("mongostore: failed to connect to mongo")
	ErrHealthcheckFailed  = errors.New("mongostore: healthcheck failed")
)
