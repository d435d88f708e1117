package plans

import "errors"

var (
	ErrUnknownTier              = errors.New("plans.errors.unknown_tier")
	ErrPlanNotFound             = errors.New("plans.errors.plan_not_found")
	ErrInvalidPlanConfiguration = errors.New("plans.errors.invalid_plan_configuration")
	ErrFailedToLoadPlans        = errors.New("plans.errors.failed_to_load_plans")
)
