// Package services implements the business logic layer of the coefficient
// calculator. Handlers and the CLI call into it; it never touches HTTP types.
//
// # Services
//
//	CalculationService  screens uploads, parses both file families
//	                    concurrently, aggregates and runs the coefficient
//	                    engine, reporting progress at each stage
//	SessionStore        keeps finished calculations in memory for previews
//	                    and downloads until they expire
//	HealthService       liveness, readiness and runtime statistics
//
// # Errors
//
// Fatal calculation failures are returned as *errors.AppError values
// wrapping one of the sentinels in this package, so callers can use both
// errors.Is and the AppError type to pick a status code:
//
//	res, err := svc.Calculate(ctx, files, services.CalculationOptions{})
//	if errors.Is(err, services.ErrLimitExceeded) {
//		// refuse the whole upload
//	}
package services
