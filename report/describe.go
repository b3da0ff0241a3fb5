package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/npdm-loader/kac"
)

// Describe renders a capability as a short human-readable string. A nil
// capability is an unrecognized word.
func Describe(c kac.Capability) string {
	switch v := c.(type) {
	case nil:
		return "unrecognized"
	case kac.ThreadInfo:
		return fmt.Sprintf("priority %d..%d, cores %d..%d",
			v.LowestPriority, v.HighestPriority, v.MinCore, v.MaxCore)
	case kac.SyscallMask:
		return fmt.Sprintf("syscalls %s", syscallIDs(v))
	case kac.MapRange:
		s := fmt.Sprintf("pages %#x..%#x", v.Address, v.End())
		if v.IO {
			s += " io"
		}
		if v.ReadOnly {
			s += " ro"
		}
		return s
	case kac.MapWord:
		return fmt.Sprintf("unpaired mapping half %#x", v.Value)
	case kac.MapPage:
		return fmt.Sprintf("page %#x", v.Page)
	case kac.InterruptPair:
		return fmt.Sprintf("interrupts %s, %s", irq(v.Interrupts[0]), irq(v.Interrupts[1]))
	case kac.ApplicationType:
		switch v.Type {
		case kac.AppTypeSystemModule:
			return "system module"
		case kac.AppTypeApplication:
			return "application"
		case kac.AppTypeApplet:
			return "applet"
		}
		return fmt.Sprintf("type %d", v.Type)
	case kac.KernelVersion:
		return fmt.Sprintf("kernel %d.%d", v.Major(), v.Minor())
	case kac.HandleTableSize:
		return fmt.Sprintf("%d handles", v.Size)
	case kac.DebugFlags:
		var parts []string
		if v.AllowDebug() {
			parts = append(parts, "allow")
		}
		if v.ForceDebug() {
			parts = append(parts, "force")
		}
		if len(parts) == 0 {
			return "debug none"
		}
		return "debug " + strings.Join(parts, "|")
	case kac.Padding:
		return "padding"
	}
	return fmt.Sprintf("%T", c)
}

func irq(n uint16) string {
	if n == kac.InterruptWildcard {
		return "*"
	}
	return strconv.Itoa(int(n))
}

// syscallIDs lists enabled syscall ids, collapsing consecutive runs.
func syscallIDs(m kac.SyscallMask) string {
	base := int(m.Index) * kac.SyscallsPerIndex
	var parts []string
	for i := 0; i < kac.SyscallsPerIndex; {
		if !m.Allows(base + i) {
			i++
			continue
		}
		j := i
		for j+1 < kac.SyscallsPerIndex && m.Allows(base+j+1) {
			j++
		}
		if j == i {
			parts = append(parts, fmt.Sprintf("%#x", base+i))
		} else {
			parts = append(parts, fmt.Sprintf("%#x-%#x", base+i, base+j))
		}
		i = j + 1
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
