package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the load pipeline the error occurred
type Phase string

const (
	PhaseOpen     Phase = "open"     // metadata stream lookup
	PhaseRead     Phase = "read"     // stream into cache buffer
	PhaseParse    Phase = "parse"    // structural layout checks
	PhaseValidate Phase = "validate" // capability validation
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseEncode   Phase = "encode"   // blob and capability construction
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindOversize     Kind = "oversize"
	KindShortRead    Kind = "short_read"
	KindMalformed    Kind = "malformed"
	KindCapability   Kind = "capability"
	KindInvalidInput Kind = "invalid_input"
)

// Reason explains why a capability was rejected
type Reason string

const (
	ReasonNoMatch        Reason = "no_match"        // no restriction entry satisfied the capability
	ReasonUnrecognized   Reason = "unrecognized"    // tag width outside the known set
	ReasonRange          Reason = "range"           // value outside the permitted range
	ReasonMismatch       Reason = "mismatch"        // single-match comparison failed
	ReasonIncompletePair Reason = "incomplete_pair" // mapping lacks its second word
)

// Sentinel targets for errors.Is. Matching uses Phase and Kind only.
var (
	ErrNotFound   = &Error{Phase: PhaseOpen, Kind: KindNotFound}
	ErrOversize   = &Error{Phase: PhaseRead, Kind: KindOversize}
	ErrShortRead  = &Error{Phase: PhaseRead, Kind: KindShortRead}
	ErrMalformed  = &Error{Phase: PhaseParse, Kind: KindMalformed}
	ErrCapability = &Error{Phase: PhaseValidate, Kind: KindCapability}
)

// Error is the structured error type used throughout the loader
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Category string
	Reason   Reason
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Category != "" || e.Reason != "" {
		b.WriteString(": ")
		if e.Category != "" && e.Reason != "" {
			b.WriteString(e.Category)
			b.WriteByte(' ')
			b.WriteString(string(e.Reason))
		} else if e.Category != "" {
			b.WriteString(e.Category)
		} else {
			b.WriteString(string(e.Reason))
		}
	}

	if e.Detail != "" {
		if e.Category != "" || e.Reason != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Category sets the capability category
func (b *Builder) Category(c string) *Builder {
	b.err.Category = c
	return b
}

// Reason sets the rejection reason
func (b *Builder) Reason(r Reason) *Builder {
	b.err.Reason = r
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NotFound creates a resource-not-found error. The cause is kept for
// logging but never changes the kind.
func NotFound(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseOpen,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s not found", what),
		Cause:  cause,
	}
}

// Oversize creates an error for a stream larger than the cache buffer
func Oversize(size int64, capacity int) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindOversize,
		Detail: fmt.Sprintf("metadata is %d bytes, buffer holds %d", size, capacity),
		Value:  size,
	}
}

// ShortRead creates an error for a truncated stream read
func ShortRead(got, want int, cause error) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindShortRead,
		Detail: fmt.Sprintf("read %d of %d bytes", got, want),
		Value:  got,
		Cause:  cause,
	}
}

// Malformed creates a structural parse error. Path names the failed check.
func Malformed(path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMalformed,
		Path:   path,
		Detail: detail,
	}
}

// Capability creates a capability violation for a declared word
func Capability(category string, reason Reason, word uint32, detail string) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindCapability,
		Category: category,
		Reason:   reason,
		Detail:   detail,
		Value:    word,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
