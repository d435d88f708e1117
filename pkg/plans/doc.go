// Package plans holds the subscription plan table: which tiers exist, the
// quota every tier grants per dimension, and the feature flags attached to it.
//
// A limit of Unlimited (-1) disables the check for that dimension. A limit of 0
// means the capability is not part of the plan, which callers must report
// differently from an exhausted quota.
//
// The Catalog is built once from a Source and validated for completeness:
//
//	catalog, err := plans.NewCatalog(ctx, plans.DefaultSource())
//	if err != nil {
//	    // startup must abort, the table is incomplete
//	}
//	limit, _ := catalog.Limit(plans.TierFree, plans.MonthlyImages) // 5
//
// Plans can also be loaded from YAML with NewYAMLSource or NewYAMLFileSource.
package plans
