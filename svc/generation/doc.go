// Package generation is the quota-enforced dispatch engine.
//
// A Dispatcher resolves the caller's plan, reserves one unit of the matching
// quota dimension, then walks the backend chain for the request kind until a
// backend succeeds. The reservation is committed once on success and
// released on failure, so usage never moves for a request that produced
// nothing and never moves twice for one that did.
//
// Every request runs through the same lifecycle:
//
//	PENDING -> QUOTA_CHECKED -> PRIMARY_ATTEMPTED -> [FALLBACK_ATTEMPTED...]
//	        -> RESOLVED_SUCCESS | RESOLVED_FAILURE
//
// Generate never returns an error. Refusals and provider failures are
// reported in Result.ErrorKind.
package generation
