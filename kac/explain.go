package kac

import "errors"

// Finding is the verdict for one declared capability.
type Finding struct {
	// Capability is nil for unrecognized words.
	Capability Capability
	// Err is nil when the capability is permitted.
	Err   error
	Words []uint32
	Index int
}

// Permitted reports whether the capability passed.
func (f Finding) Permitted() bool {
	return f.Err == nil
}

// Explain checks every declared capability and reports a finding for each,
// continuing past rejections. Validate stops at the first one.
func Explain(restrictions, declared []uint32) []Finding {
	rs := NewRestrictionSet(restrictions)
	var out []Finding
	for i := 0; i < len(declared); {
		n, err := rs.check(declared, i)
		f := Finding{
			Index: i,
			Words: declared[i : i+n],
		}
		if err != nil {
			f.Err = at(err, i)
		}
		f.Capability = describe(f.Words)
		out = append(out, f)
		i += n
	}
	return out
}

// FirstRejection returns the first failing finding's error, if any.
func FirstRejection(findings []Finding) error {
	for _, f := range findings {
		if f.Err != nil {
			return f.Err
		}
	}
	return nil
}

// Rejections joins every failing finding's error.
func Rejections(findings []Finding) error {
	var errs []error
	for _, f := range findings {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

func describe(words []uint32) Capability {
	c, err := Decode(words[0])
	if err != nil {
		return nil
	}
	if a, ok := c.(MapWord); ok && len(words) == 2 {
		b, _ := Decode(words[1])
		if half, ok := b.(MapWord); ok {
			return NewMapRange(a, half)
		}
	}
	return c
}
