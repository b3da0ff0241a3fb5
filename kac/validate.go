package kac

import (
	loadererrors "github.com/wippyai/npdm-loader/errors"
)

// RestrictionSet is a decoded restriction capability list. Words with an
// unrecognized tag are kept as nil entries and never match anything.
type RestrictionSet struct {
	words   []uint32
	entries []Capability
}

// NewRestrictionSet decodes restrictions once for repeated checks.
func NewRestrictionSet(restrictions []uint32) *RestrictionSet {
	rs := &RestrictionSet{
		words:   restrictions,
		entries: make([]Capability, len(restrictions)),
	}
	for i, w := range restrictions {
		c, err := Decode(w)
		if err == nil {
			rs.entries[i] = c
		}
	}
	return rs
}

// Len returns the number of restriction words.
func (rs *RestrictionSet) Len() int {
	return len(rs.words)
}

// Validate checks every declared capability against restrictions. It
// returns nil when all are permitted, otherwise the first rejection as an
// *errors.Error of kind capability.
func Validate(restrictions, declared []uint32) error {
	return NewRestrictionSet(restrictions).Validate(declared)
}

// Validate checks declared against the set.
func (rs *RestrictionSet) Validate(declared []uint32) error {
	for i := 0; i < len(declared); {
		n, err := rs.check(declared, i)
		if err != nil {
			return at(err, i)
		}
		i += n
	}
	return nil
}

// check verifies the capability starting at declared[i] and returns the
// number of words it occupies.
func (rs *RestrictionSet) check(declared []uint32, i int) (int, error) {
	word := declared[i]
	c, err := Decode(word)
	if err != nil {
		return 1, err
	}

	switch d := c.(type) {
	case ThreadInfo:
		return 1, rs.checkThreadInfo(d, word)
	case SyscallMask:
		return 1, rs.checkSyscallMask(d, word)
	case MapWord:
		second, err := pairHalf(declared, i)
		if err != nil {
			return 1, err
		}
		return 2, rs.checkMapRange(NewMapRange(d, second), word)
	case MapPage:
		return 1, rs.checkMapPage(d, word)
	case InterruptPair:
		return 1, rs.checkInterruptPair(d, word)
	case ApplicationType:
		r, _ := first[ApplicationType](rs)
		if d != r {
			return 1, reject(KindApplicationType, loadererrors.ReasonMismatch, word,
				"application type %d differs from permitted %d", d.Type, r.Type)
		}
		return 1, nil
	case KernelVersion:
		r, _ := first[KernelVersion](rs)
		if d != r {
			return 1, reject(KindKernelVersion, loadererrors.ReasonMismatch, word,
				"kernel version %d.%d differs from permitted %d.%d", d.Major(), d.Minor(), r.Major(), r.Minor())
		}
		return 1, nil
	case HandleTableSize:
		// Without a restriction entry any size is accepted.
		r, ok := first[HandleTableSize](rs)
		if ok && d.Size > r.Size {
			return 1, reject(KindHandleTableSize, loadererrors.ReasonRange, word,
				"handle table size %d exceeds permitted %d", d.Size, r.Size)
		}
		return 1, nil
	case DebugFlags:
		r, _ := first[DebugFlags](rs)
		if d.Flags&^r.Flags != 0 {
			return 1, reject(KindDebugFlags, loadererrors.ReasonMismatch, word,
				"debug flags %#x not within permitted %#x", d.Flags, r.Flags)
		}
		return 1, nil
	}
	// Padding.
	return 1, nil
}

func (rs *RestrictionSet) checkThreadInfo(d ThreadInfo, word uint32) error {
	if d.LowestPriority > d.HighestPriority {
		return reject(KindThreadInfo, loadererrors.ReasonRange, word,
			"lowest priority %d above highest priority %d", d.LowestPriority, d.HighestPriority)
	}
	for _, r := range each[ThreadInfo](rs) {
		if d.HighestPriority > r.HighestPriority ||
			d.LowestPriority < r.LowestPriority ||
			d.MinCore < r.MinCore ||
			d.MinCore > r.MaxCore ||
			d.MaxCore > r.MaxCore {
			continue
		}
		return nil
	}
	return reject(KindThreadInfo, loadererrors.ReasonNoMatch, word,
		"priorities %d..%d on cores %d..%d not permitted", d.LowestPriority, d.HighestPriority, d.MinCore, d.MaxCore)
}

func (rs *RestrictionSet) checkSyscallMask(d SyscallMask, word uint32) error {
	for _, r := range each[SyscallMask](rs) {
		if r.Index == d.Index && d.Mask&^r.Mask == 0 {
			return nil
		}
	}
	return reject(KindSyscallMask, loadererrors.ReasonNoMatch, word,
		"syscall mask %#06x at index %d not permitted", d.Mask, d.Index)
}

func (rs *RestrictionSet) checkMapRange(d MapRange, word uint32) error {
	if d.Size >= MaxMapSize {
		return reject(KindMapRange, loadererrors.ReasonRange, word,
			"mapping size %#x exceeds %#x pages", d.Size, MaxMapSize-1)
	}
	for i := 0; i+1 < len(rs.entries); i++ {
		a, ok := rs.entries[i].(MapWord)
		if !ok {
			continue
		}
		b, ok := rs.entries[i+1].(MapWord)
		if !ok {
			continue
		}
		i++
		r := NewMapRange(a, b)
		if r.Size >= MaxMapSize || r.IO != d.IO || r.ReadOnly != d.ReadOnly {
			continue
		}
		if r.Contains(d) {
			return nil
		}
	}
	return reject(KindMapRange, loadererrors.ReasonNoMatch, word,
		"mapping %#x+%#x (io=%t ro=%t) not permitted", d.Address, d.Size, d.IO, d.ReadOnly)
}

func (rs *RestrictionSet) checkMapPage(d MapPage, word uint32) error {
	for _, r := range each[MapPage](rs) {
		if r == d {
			return nil
		}
	}
	return reject(KindMapPage, loadererrors.ReasonNoMatch, word, "page %#x not permitted", d.Page)
}

func (rs *RestrictionSet) checkInterruptPair(d InterruptPair, word uint32) error {
	allowed := each[InterruptPair](rs)
	for _, irq := range d.Interrupts {
		if irq == InterruptWildcard {
			continue
		}
		if !permitsInterrupt(allowed, irq) {
			return reject(KindInterruptPair, loadererrors.ReasonNoMatch, word, "interrupt %d not permitted", irq)
		}
	}
	return nil
}

func permitsInterrupt(allowed []InterruptPair, irq uint16) bool {
	for _, r := range allowed {
		if r.Permits(irq) {
			return true
		}
	}
	return false
}

// each returns the restriction entries of type T in list order.
func each[T Capability](rs *RestrictionSet) []T {
	var out []T
	for _, e := range rs.entries {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// first returns the first restriction entry of type T, or the zero value.
func first[T Capability](rs *RestrictionSet) (T, bool) {
	for _, e := range rs.entries {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func reject(k Kind, reason loadererrors.Reason, word uint32, format string, args ...any) *loadererrors.Error {
	return loadererrors.New(loadererrors.PhaseValidate, loadererrors.KindCapability).
		Category(k.String()).
		Reason(reason).
		Value(word).
		Detail(format, args...).
		Build()
}
