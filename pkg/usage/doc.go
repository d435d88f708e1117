// Package usage tracks per-account consumption against plan quotas.
//
// Quota is taken in two phases. CheckAndReserve applies any due daily or
// monthly reset, compares committed usage plus live reservations with the plan
// limit and, when the request fits, records a pending Reservation. Commit turns
// the reservation into usage exactly once; Release gives it back. A request
// that never reaches Commit costs the user nothing, and reservations that are
// neither committed nor released expire after the configured TTL.
//
// Daily counters reset once 24 hours have passed since the last daily reset.
// Monthly counters use a fixed 30 day window.
//
// MemoryStore is the in-process implementation. Networked backends live in the
// redisstore, pgstore and mongostore subpackages and share the helpers in this
// package (Reserve, Apply, Drop, ApplyResets, CheckLimit).
//
//	store := usage.NewMemoryStore(catalog)
//	acc, _ := store.GetOrCreate(ctx, 42, usage.Identity{Username: "alice"})
//	res, err := store.CheckAndReserve(ctx, acc.UserID, plans.MonthlyImages, 1)
//	if errors.Is(err, usage.ErrQuotaExceeded) {
//	    // wait for reset or upgrade
//	}
//	// ... provider call succeeded
//	_ = store.Commit(ctx, res)
package usage
