package generation

import "errors"

var (
	ErrUnknownTextTier = errors.New("generation.errors.unknown_text_tier")
	ErrEmptyPrompt     = errors.New("generation.errors.empty_prompt")
	ErrUnknownKind     = errors.New("generation.errors.unknown_kind")
	ErrTokenBudget     = errors.New("generation.errors.token_budget_out_of_range")
	ErrNoBackend       = errors.New("generation.errors.no_backend_configured")
	ErrNilDependency   = errors.New("generation.errors.nil_dependency")
	ErrDuplicateClient = errors.New("generation.errors.duplicate_client")
	ErrCommitFailed    = errors.New("generation.errors.commit_failed")
	ErrStoreFailed     = errors.New("generation.errors.store_failed")
)
