package kac

import npdmloader "github.com/wippyai/npdm-loader"

// AppFlags summarizes program classification bits.
type AppFlags uint32

const (
	FlagApplication AppFlags = 1 << 0
	FlagApplet      AppFlags = 1 << 1
	FlagAllowDebug  AppFlags = 1 << 2
)

// Has reports whether all bits of f are set.
func (a AppFlags) Has(f AppFlags) bool {
	return a&f == f
}

func (a AppFlags) String() string {
	if a == 0 {
		return "none"
	}
	var s string
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if a.Has(FlagApplication) {
		add("application")
	}
	if a.Has(FlagApplet) {
		add("applet")
	}
	if a.Has(FlagAllowDebug) {
		add("allow_debug")
	}
	return s
}

// Classify derives program flags from a declared capability list. Words
// are inspected one at a time; unrecognized words are skipped. The allow
// debug bit is reported only when host supports extended debug flags.
func Classify(words []uint32, host npdmloader.Host) AppFlags {
	extended := host != nil && host.SupportsExtendedDebugFlags()

	var flags AppFlags
	for _, w := range words {
		c, err := Decode(w)
		if err != nil {
			continue
		}
		switch v := c.(type) {
		case ApplicationType:
			switch v.Type {
			case AppTypeApplication:
				flags |= FlagApplication
			case AppTypeApplet:
				flags |= FlagApplet
			}
		case DebugFlags:
			if extended && v.AllowDebug() {
				flags |= FlagAllowDebug
			}
		}
	}
	return flags
}
