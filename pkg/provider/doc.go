// Package provider defines the contract between the dispatcher and remote
// generation backends.
//
// A Client submits a Job, polls it at a fixed interval against a caller
// supplied deadline and prices the finished work. Every failure leaving a
// client is an *Error of kind ProviderUnavailable, Timeout or SubmitError, so
// callers never see raw transport errors.
//
// Concrete clients live in the fal, replicate and openai subpackages. Guard
// adds a per-backend CircuitBreaker in front of any client.
package provider
