package assets

import "errors"

var (
	ErrInvalidConfig      = errors.New("assets: invalid configuration")
	ErrFailedToLoadConfig = errors.New("assets: failed to load AWS config")
	ErrInvalidSource      = errors.New("assets: invalid source url")
	ErrDownload           = errors.New("assets: failed to download source")
	ErrTooLarge           = errors.New("assets: source exceeds size limit")
	ErrUpload             = errors.New("assets: upload failed")

	ErrBucketNotFound     = errors.New("assets: bucket not found")
	ErrAccessDenied       = errors.New("assets: access denied")
	ErrServiceUnavailable = errors.New("assets: storage temporarily unavailable")
	ErrOperationTimeout   = errors.New("assets: operation timed out")
	ErrOperationCanceled  = errors.New("assets: operation canceled")
)
