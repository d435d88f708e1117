package usage

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

var (
	ErrQuotaExceeded       = errors.New("usage.errors.quota_exceeded")
	ErrFeatureNotOnPlan    = errors.New("usage.errors.feature_not_on_plan")
	ErrAccountNotFound     = errors.New("usage.errors.account_not_found")
	ErrReservationNotFound = errors.New("usage.errors.reservation_not_found")
	ErrInvalidAmount       = errors.New("usage.errors.invalid_amount")
	ErrInvalidDimension    = errors.New("usage.errors.invalid_dimension")
	ErrStoreFailure        = errors.New("usage.errors.store_failure")
	ErrConcurrentUpdate    = errors.New("usage.errors.concurrent_update")
)

// QuotaError reports a refused reservation. It unwraps to ErrQuotaExceeded
// or ErrFeatureNotOnPlan.
type QuotaError struct {
	Dimension plans.Dimension
	Limit     int64
	Used      int64
	Requested int64
	err       error
}

func (e *QuotaError) Error() string {
	if errors.Is(e.err, ErrFeatureNotOnPlan) {
		return fmt.Sprintf("%s: %s", e.err, e.Dimension)
	}
	return fmt.Sprintf("%s: %s used %d of %d, requested %d", e.err, e.Dimension, e.Used, e.Limit, e.Requested)
}

func (e *QuotaError) Unwrap() error { return e.err }

// IsQuotaError reports whether err is a refused reservation and returns it.
func IsQuotaError(err error) (*QuotaError, bool) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
