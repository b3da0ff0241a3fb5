package npdmloader

import "io"

// Stream is an opened metadata blob.
type Stream interface {
	io.Reader
	io.Closer
	// Size returns the blob length in bytes, or -1 when the length is
	// only known after reading (compressed streams).
	Size() int64
}

// Source opens the metadata stream for a program identity.
type Source interface {
	Open(identity uint64) (Stream, error)
}

// Host describes capabilities of the running kernel that are not
// recorded in the metadata itself.
type Host interface {
	// SupportsExtendedDebugFlags reports whether the kernel honours the
	// allow-debug bit of the debug flags capability.
	SupportsExtendedDebugFlags() bool
}

// StaticHost is a Host with fixed answers.
type StaticHost struct {
	ExtendedDebugFlags bool
}

// SupportsExtendedDebugFlags implements Host.
func (h StaticHost) SupportsExtendedDebugFlags() bool {
	return h.ExtendedDebugFlags
}
