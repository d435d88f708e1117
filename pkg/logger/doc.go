// Package logger builds the service's *slog.Logger and provides attribute
// helpers that keep key names consistent across packages.
//
// New takes functional options for format, level, output, static attributes
// and context extractors. Extractors run on every record, which is how
// request-scoped values such as the HTTP request id reach log lines written
// deep inside the dispatcher:
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "gengate"),
//	    logger.WithContextExtractors(requestIDExtractor),
//	)
//	log.InfoContext(ctx, "generation resolved",
//	    logger.UserID(42),
//	    logger.Backend(provider.BackendFalImage),
//	    logger.CostUSD(0.003),
//	)
//
// Error, JobID, ReservationID and RequestID return an empty Attr for zero
// input, so they can be passed without nil checks.
package logger
