package kac_test

import (
	"errors"
	"testing"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/kac"
)

func words(caps ...kac.Capability) []uint32 {
	return kac.Encode(caps)
}

type verdict struct {
	category string
	reason   loadererrors.Reason
}

var pass = verdict{}

func checkVerdict(t *testing.T, err error, want verdict) {
	t.Helper()
	if want == pass {
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		return
	}
	if !errors.Is(err, loadererrors.ErrCapability) {
		t.Fatalf("expected capability violation, got %v", err)
	}
	var le *loadererrors.Error
	if !errors.As(err, &le) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if le.Category != want.category || le.Reason != want.reason {
		t.Errorf("got %s/%s, want %s/%s (%v)", le.Category, le.Reason, want.category, want.reason, err)
	}
}

func TestValidateSyscallMask(t *testing.T) {
	const base = 1
	const mask = 0b1011_0000_0000_0000_0000_0101
	restrictions := words(
		kac.SyscallMask{Mask: 0x1, Index: 0},
		kac.SyscallMask{Mask: mask, Index: base},
	)
	violation := verdict{"syscall_mask", loadererrors.ReasonNoMatch}

	tests := []struct {
		name     string
		declared kac.SyscallMask
		want     verdict
	}{
		{"equal mask", kac.SyscallMask{Mask: mask, Index: base}, pass},
		{"subset", kac.SyscallMask{Mask: 0b101, Index: base}, pass},
		{"empty mask", kac.SyscallMask{Mask: 0, Index: base}, pass},
		{"superset", kac.SyscallMask{Mask: mask | 0b10, Index: base}, violation},
		{"other base same mask", kac.SyscallMask{Mask: mask, Index: 2}, violation},
		{"other base empty mask", kac.SyscallMask{Mask: 0, Index: 3}, violation},
		{"second entry scanned", kac.SyscallMask{Mask: 0x1, Index: 0}, pass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(restrictions, words(tt.declared)), tt.want)
		})
	}
}

func TestValidateSyscallMaskProperty(t *testing.T) {
	const m = 0x00A5A5
	restrictions := words(kac.SyscallMask{Mask: m, Index: 4})
	for _, declared := range []uint32{0, 1, 4, 0x5, 0xA5A5, 0xA5A4, 0xFFFFFF, 0x5A5A, 0x800000} {
		err := kac.Validate(restrictions, words(kac.SyscallMask{Mask: declared, Index: 4}))
		if want := declared&^m == 0; (err == nil) != want {
			t.Errorf("mask %#x: err = %v, want success %v", declared, err, want)
		}
	}
}

func TestValidateHandleTableSize(t *testing.T) {
	const r = 0x200
	restrictions := words(kac.HandleTableSize{Size: r})
	violation := verdict{"handle_table_size", loadererrors.ReasonRange}

	tests := []struct {
		name string
		size uint16
		want verdict
	}{
		{"zero", 0, pass},
		{"below", r - 1, pass},
		{"equal", r, pass},
		{"one above", r + 1, violation},
		{"max", 0x3FF, violation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(restrictions, words(kac.HandleTableSize{Size: tt.size})), tt.want)
		})
	}

	t.Run("reserved bits ignored", func(t *testing.T) {
		declared := words(kac.HandleTableSize{Size: r, Reserved: 0x3F})
		checkVerdict(t, kac.Validate(restrictions, declared), pass)
	})

	t.Run("ten bit arithmetic", func(t *testing.T) {
		// 0x400 wraps to 0 in the 10-bit field.
		declared := words(kac.HandleTableSize{Size: 0x400 + 1})
		checkVerdict(t, kac.Validate(words(kac.HandleTableSize{Size: 1}), declared), pass)
	})

	// Without a restriction entry the size check is skipped entirely,
	// unlike the other single-match kinds which compare against zero.
	t.Run("no restriction accepts any size", func(t *testing.T) {
		declared := words(kac.HandleTableSize{Size: 0x3FF})
		checkVerdict(t, kac.Validate(nil, declared), pass)
		checkVerdict(t, kac.Validate(words(kac.Padding{}), declared), pass)
	})
}

func TestValidateInterruptPair(t *testing.T) {
	pair := func(a, b uint16) kac.InterruptPair {
		return kac.InterruptPair{Interrupts: [2]uint16{a, b}}
	}
	const w = kac.InterruptWildcard
	violation := verdict{"interrupt_pair", loadererrors.ReasonNoMatch}

	tests := []struct {
		name         string
		restrictions []uint32
		declared     kac.InterruptPair
		want         verdict
	}{
		{"full wildcard accepts anything", words(pair(w, w)), pair(17, 900), pass},
		{"half wildcard first slot", words(pair(5, w)), pair(5, w), pass},
		{"half wildcard second slot", words(pair(5, w)), pair(w, 5), pass},
		{"half wildcard both slots", words(pair(5, w)), pair(5, 5), pass},
		{"half wildcard rejects other", words(pair(5, w)), pair(6, w), violation},
		{"half wildcard rejects other in second slot", words(pair(5, w)), pair(5, 6), violation},
		{"matches across entries", words(pair(1, 2), pair(3, 4)), pair(2, 3), pass},
		{"declared wildcard needs nothing", nil, pair(w, w), pass},
		{"no restriction", nil, pair(1, w), violation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(tt.restrictions, words(tt.declared)), tt.want)
		})
	}
}

func TestValidatePaddingOnly(t *testing.T) {
	restrictionLists := [][]uint32{
		nil,
		{0xFFFFFFFF},
		{0x1F, 0x0, 0x7},
		words(kac.SyscallMask{Mask: 1}, kac.HandleTableSize{Size: 1}),
	}
	for _, n := range []int{0, 1, 2, 7} {
		declared := make([]uint32, n)
		for i := range declared {
			declared[i] = 0xFFFFFFFF
		}
		for _, restrictions := range restrictionLists {
			if err := kac.Validate(restrictions, declared); err != nil {
				t.Errorf("%d padding words against %#x: %v", n, restrictions, err)
			}
		}
	}
}

func TestValidateMapRange(t *testing.T) {
	region := kac.MapRange{Address: 0x1000, Size: 0x100}
	ioRegion := kac.MapRange{Address: 0x8000, Size: 0x10, IO: true}
	restrictions := words(region, ioRegion)
	violation := verdict{"map_range", loadererrors.ReasonNoMatch}

	tests := []struct {
		name     string
		declared kac.MapRange
		want     verdict
	}{
		{"inside", kac.MapRange{Address: 0x1010, Size: 0x10}, pass},
		{"exact", region, pass},
		{"io inside io region", kac.MapRange{Address: 0x8008, Size: 0x8, IO: true}, pass},
		{"past end", kac.MapRange{Address: 0x10F0, Size: 0x20}, violation},
		{"before start", kac.MapRange{Address: 0x0FF0, Size: 0x20}, violation},
		{"io flag mismatch", kac.MapRange{Address: 0x1010, Size: 0x10, IO: true}, violation},
		{"read only mismatch", kac.MapRange{Address: 0x1010, Size: 0x10, ReadOnly: true}, violation},
		{"size cap", kac.MapRange{Address: 0x1000, Size: kac.MaxMapSize}, verdict{"map_range", loadererrors.ReasonRange}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(restrictions, words(tt.declared)), tt.want)
		})
	}
}

func TestValidateMapRangePairing(t *testing.T) {
	declared := kac.MapRange{Address: 0x20, Size: 0x10}
	half := kac.MapWord{Value: 0x20}.Words()[0]

	t.Run("declared missing second word", func(t *testing.T) {
		err := kac.Validate(words(declared), []uint32{half})
		checkVerdict(t, err, verdict{"map_range", loadererrors.ReasonIncompletePair})
	})

	t.Run("declared second word of another kind", func(t *testing.T) {
		err := kac.Validate(words(declared), []uint32{half, 0xFFFFFFFF})
		checkVerdict(t, err, verdict{"map_range", loadererrors.ReasonIncompletePair})
	})

	t.Run("unpaired restriction word skipped", func(t *testing.T) {
		restrictions := append([]uint32{half, 0xFFFFFFFF}, words(declared)...)
		checkVerdict(t, kac.Validate(restrictions, words(declared)), pass)
	})

	t.Run("odd restriction stream", func(t *testing.T) {
		restrictions := []uint32{half}
		checkVerdict(t, kac.Validate(restrictions, words(declared)), verdict{"map_range", loadererrors.ReasonNoMatch})
	})

	t.Run("oversized restriction skipped", func(t *testing.T) {
		big := kac.MapRange{Address: 0, Size: kac.MaxMapSize}
		restrictions := words(big, declared)
		checkVerdict(t, kac.Validate(restrictions, words(declared)), pass)
		checkVerdict(t, kac.Validate(words(big), words(declared)), verdict{"map_range", loadererrors.ReasonNoMatch})
	})

	t.Run("pair consumes two declared words", func(t *testing.T) {
		list := append(words(declared), words(kac.Padding{})...)
		checkVerdict(t, kac.Validate(words(declared), list), pass)
	})
}

func TestValidateMapPage(t *testing.T) {
	restrictions := words(kac.MapPage{Page: 0x40}, kac.MapPage{Page: 0x41})
	checkVerdict(t, kac.Validate(restrictions, words(kac.MapPage{Page: 0x41})), pass)
	checkVerdict(t, kac.Validate(restrictions, words(kac.MapPage{Page: 0x42})), verdict{"map_page", loadererrors.ReasonNoMatch})
}

func TestValidateThreadInfo(t *testing.T) {
	restrictions := words(
		kac.ThreadInfo{HighestPriority: 20, LowestPriority: 10, MinCore: 3, MaxCore: 3},
		kac.ThreadInfo{HighestPriority: 59, LowestPriority: 28, MinCore: 0, MaxCore: 2},
	)
	violation := verdict{"thread_info", loadererrors.ReasonNoMatch}

	tests := []struct {
		name     string
		declared kac.ThreadInfo
		want     verdict
	}{
		{"within second", kac.ThreadInfo{HighestPriority: 44, LowestPriority: 28, MinCore: 0, MaxCore: 2}, pass},
		{"within first", kac.ThreadInfo{HighestPriority: 15, LowestPriority: 12, MinCore: 3, MaxCore: 3}, pass},
		{"priority above", kac.ThreadInfo{HighestPriority: 60, LowestPriority: 28}, violation},
		{"priority below", kac.ThreadInfo{HighestPriority: 44, LowestPriority: 27}, violation},
		{"core above", kac.ThreadInfo{HighestPriority: 44, LowestPriority: 28, MinCore: 0, MaxCore: 3}, violation},
		{"min core above max", kac.ThreadInfo{HighestPriority: 44, LowestPriority: 28, MinCore: 3, MaxCore: 2}, violation},
		{"inverted priorities", kac.ThreadInfo{HighestPriority: 30, LowestPriority: 40}, verdict{"thread_info", loadererrors.ReasonRange}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(restrictions, words(tt.declared)), tt.want)
		})
	}
}

func TestValidateSingleMatchKinds(t *testing.T) {
	mismatch := func(category string) verdict {
		return verdict{category, loadererrors.ReasonMismatch}
	}

	tests := []struct {
		name         string
		restrictions []uint32
		declared     []uint32
		want         verdict
	}{
		{"app type equal", words(kac.ApplicationType{Type: 1}), words(kac.ApplicationType{Type: 1}), pass},
		{"app type differs", words(kac.ApplicationType{Type: 2}), words(kac.ApplicationType{Type: 1}), mismatch("application_type")},
		{"app type first entry wins", words(kac.ApplicationType{Type: 2}, kac.ApplicationType{Type: 1}), words(kac.ApplicationType{Type: 1}), mismatch("application_type")},
		{"app type implicit zero", nil, words(kac.ApplicationType{Type: 0}), pass},
		{"app type implicit zero rejects", nil, words(kac.ApplicationType{Type: 1}), mismatch("application_type")},
		{"app type reserved bits compared", words(kac.ApplicationType{Type: 1}), words(kac.ApplicationType{Type: 1, Reserved: 1}), mismatch("application_type")},
		{"kernel version equal", words(kac.KernelVersion{Version: 0x30}), words(kac.KernelVersion{Version: 0x30}), pass},
		{"kernel version differs", words(kac.KernelVersion{Version: 0x30}), words(kac.KernelVersion{Version: 0x31}), mismatch("kernel_version")},
		{"kernel version implicit zero", nil, words(kac.KernelVersion{Version: 0x30}), mismatch("kernel_version")},
		{"debug subset", words(kac.DebugFlags{Flags: 3}), words(kac.DebugFlags{Flags: 1}), pass},
		{"debug extra bit", words(kac.DebugFlags{Flags: 1}), words(kac.DebugFlags{Flags: 2}), mismatch("debug_flags")},
		{"debug implicit zero", nil, words(kac.DebugFlags{}), pass},
		{"debug implicit zero rejects", nil, words(kac.DebugFlags{Flags: 1}), mismatch("debug_flags")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkVerdict(t, kac.Validate(tt.restrictions, tt.declared), tt.want)
		})
	}
}

func TestValidateUnrecognized(t *testing.T) {
	t.Run("declared", func(t *testing.T) {
		checkVerdict(t, kac.Validate(nil, []uint32{0x1F}), verdict{"unknown(5)", loadererrors.ReasonUnrecognized})
	})
	t.Run("restriction ignored", func(t *testing.T) {
		restrictions := append([]uint32{0x1F, 0x0}, words(kac.SyscallMask{Mask: 1})...)
		checkVerdict(t, kac.Validate(restrictions, words(kac.SyscallMask{Mask: 1})), pass)
	})
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	restrictions := words(kac.SyscallMask{Mask: 0x1})
	declared := words(
		kac.Padding{},
		kac.SyscallMask{Mask: 0x1},
		kac.SyscallMask{Mask: 0x2},
		kac.MapPage{Page: 1},
	)

	err := kac.Validate(restrictions, declared)
	var le *loadererrors.Error
	if !errors.As(err, &le) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if le.Category != "syscall_mask" {
		t.Errorf("Category = %q, want first failure", le.Category)
	}
	if got := joinPath(le.Path); got != "kac.2" {
		t.Errorf("Path = %q", got)
	}
	if le.Value != declared[2] {
		t.Errorf("Value = %v, want %#x", le.Value, declared[2])
	}
	if le.Code() != loadererrors.CodeInvalidSyscallMask {
		t.Errorf("Code() = %#x", le.Code())
	}
}

func TestRestrictionSetReuse(t *testing.T) {
	rs := kac.NewRestrictionSet(words(kac.SyscallMask{Mask: 0xFF}, kac.HandleTableSize{Size: 64}))
	if rs.Len() != 2 {
		t.Fatalf("Len = %d", rs.Len())
	}
	if err := rs.Validate(words(kac.SyscallMask{Mask: 0x0F})); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := rs.Validate(words(kac.HandleTableSize{Size: 65})); err == nil {
		t.Error("expected handle table violation")
	}
}
