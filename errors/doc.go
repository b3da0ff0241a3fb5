// Package errors provides structured error types for the metadata loader.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Capability violations additionally carry the rejected Category and a Reason.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseParse, errors.KindMalformed).
//		Path("declared", "kac").
//		Detail("region ends at %d past section size %d", end, size).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Malformed([]string{"header", "magic"}, "got %#x", magic)
//	err := errors.Capability("syscall_mask", errors.ReasonNoMatch, word, "")
//
// Callers that only need a verdict match the sentinels:
//
//	if errors.Is(err, loadererrors.ErrMalformed) { ... }
//
// Every error maps to a loader result code through Code.
package errors
