package kac

import "fmt"

// Kind identifies a capability variant. Its value is the tag width: the
// number of consecutive low-order one bits before the first zero bit.
type Kind uint8

const (
	KindThreadInfo      Kind = 3
	KindSyscallMask     Kind = 4
	KindMapRange        Kind = 6
	KindMapPage         Kind = 7
	KindInterruptPair   Kind = 11
	KindApplicationType Kind = 13
	KindKernelVersion   Kind = 14
	KindHandleTableSize Kind = 15
	KindDebugFlags      Kind = 16
	KindPadding         Kind = 32
)

var kindNames = map[Kind]string{
	KindThreadInfo:      "thread_info",
	KindSyscallMask:     "syscall_mask",
	KindMapRange:        "map_range",
	KindMapPage:         "map_page",
	KindInterruptPair:   "interrupt_pair",
	KindApplicationType: "application_type",
	KindKernelVersion:   "kernel_version",
	KindHandleTableSize: "handle_table_size",
	KindDebugFlags:      "debug_flags",
	KindPadding:         "padding",
}

// String returns the category name used in errors and reports.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Known reports whether k is a recognized tag width.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Tag returns the low-order bit pattern selecting k, including the
// terminating zero bit, and the number of bits it occupies.
func (k Kind) Tag() (pattern uint32, bits int) {
	if k >= 32 {
		return 0xFFFFFFFF, 32
	}
	return (uint32(1) << k) - 1, int(k) + 1
}
