// Package kac decodes and validates kernel capability lists.
//
// A capability list is a sequence of little-endian 32-bit words. The
// number of trailing one bits in a word (its tag width) selects the
// capability kind; the bits above the tag and its terminating zero carry
// the payload. Mapping ranges span two consecutive words.
//
// Validate checks a declared list against a restriction list and reports
// the first capability the restrictions do not permit:
//
//	if err := kac.Validate(restricted, declared); err != nil {
//		var le *errors.Error
//		errors.As(err, &le) // le.Category, le.Reason, le.Value
//	}
//
// Explain reports a verdict for every declared capability, and Classify
// derives the application flags of a program.
package kac
