package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseValidate,
				Kind:     KindCapability,
				Path:     []string{"declared", "kac", "3"},
				Category: "syscall_mask",
				Reason:   ReasonNoMatch,
				Detail:   "index 1",
			},
			contains: []string{"[validate]", "capability", "declared.kac.3", "syscall_mask", "no_match", "index 1"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseParse,
				Kind:  KindMalformed,
			},
			contains: []string{"[parse]", "malformed"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRead,
				Kind:   KindShortRead,
				Detail: "read 4 of 8 bytes",
				Cause:  errors.New("unexpected EOF"),
			},
			contains: []string{"[read]", "short_read", "read 4 of 8", "caused by", "unexpected EOF"},
		},
		{
			name: "reason only",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindCapability,
				Reason: ReasonUnrecognized,
			},
			contains: []string{"capability: unrecognized"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseOpen,
		Kind:  KindNotFound,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Malformed([]string{"header", "magic"}, "bad magic")

	if !errors.Is(err, ErrMalformed) {
		t.Error("errors.Is should match ErrMalformed")
	}
	if errors.Is(err, ErrCapability) {
		t.Error("errors.Is should not match ErrCapability")
	}
	if err.Is(&Error{Phase: PhaseValidate, Kind: KindMalformed}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(errors.New("plain"), ErrMalformed) {
		t.Error("plain error should not match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseValidate, KindCapability).
		Path("declared", "kac").
		Category("map_range").
		Reason(ReasonRange).
		Value(uint32(0x3F)).
		Cause(cause).
		Detail("size %#x exceeds %#x", 0x100000, 0xFFFFF).
		Build()

	if err.Phase != PhaseValidate {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseValidate)
	}
	if err.Kind != KindCapability {
		t.Errorf("Kind = %v, want %v", err.Kind, KindCapability)
	}
	if len(err.Path) != 2 || err.Path[0] != "declared" || err.Path[1] != "kac" {
		t.Errorf("Path = %v, want [declared kac]", err.Path)
	}
	if err.Category != "map_range" {
		t.Errorf("Category = %v, want map_range", err.Category)
	}
	if err.Reason != ReasonRange {
		t.Errorf("Reason = %v, want %v", err.Reason, ReasonRange)
	}
	if err.Value != uint32(0x3F) {
		t.Errorf("Value = %v, want 0x3f", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "size 0x100000 exceeds 0xfffff" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := NotFound("metadata", errors.New("permission denied"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("NotFound should match ErrNotFound: %v", err)
		}
	})

	t.Run("Oversize", func(t *testing.T) {
		err := Oversize(0x9000, 0x8000)
		if !errors.Is(err, ErrOversize) {
			t.Errorf("Oversize should match ErrOversize: %v", err)
		}
		if !strings.Contains(err.Detail, "36864") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("ShortRead", func(t *testing.T) {
		err := ShortRead(4, 8, nil)
		if !errors.Is(err, ErrShortRead) {
			t.Errorf("ShortRead should match ErrShortRead: %v", err)
		}
	})

	t.Run("Malformed with args", func(t *testing.T) {
		err := Malformed([]string{"header"}, "mmu flags %#x", 0x10)
		if err.Detail != "mmu flags 0x10" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Capability", func(t *testing.T) {
		err := Capability("debug_flags", ReasonMismatch, 0x1FFFF, "")
		if !errors.Is(err, ErrCapability) {
			t.Errorf("Capability should match ErrCapability: %v", err)
		}
		if err.Value != uint32(0x1FFFF) {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseConfig, "buffer_size too small")
		if err.Kind != KindInvalidInput {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidInput)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("yaml: line 3")
		err := Wrap(PhaseConfig, KindInvalidInput, cause, "parse config")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want uint32
	}{
		{"not found", NotFound("metadata", nil), CodePathNotFound},
		{"oversize", Oversize(1, 0), CodeTooLargeMeta},
		{"short read", ShortRead(0, 1, nil), CodeTooLargeMeta},
		{"malformed", Malformed(nil, "x"), CodeInvalidMeta},
		{"unrecognized", Capability("", ReasonUnrecognized, 0, ""), CodeUnknownCapability},
		{"thread info", Capability("thread_info", ReasonNoMatch, 0, ""), CodeInvalidThreadInfo},
		{"syscall", Capability("syscall_mask", ReasonNoMatch, 0, ""), CodeInvalidSyscallMask},
		{"map range", Capability("map_range", ReasonIncompletePair, 0, ""), CodeInvalidMapRange},
		{"map page", Capability("map_page", ReasonNoMatch, 0, ""), CodeInvalidMapPage},
		{"interrupt", Capability("interrupt_pair", ReasonNoMatch, 0, ""), CodeInvalidInterrupt},
		{"app type", Capability("application_type", ReasonMismatch, 0, ""), CodeInvalidAppType},
		{"kernel version", Capability("kernel_version", ReasonMismatch, 0, ""), CodeInvalidKernelVer},
		{"handle table", Capability("handle_table_size", ReasonRange, 0, ""), CodeInvalidHandleTable},
		{"debug flags", Capability("debug_flags", ReasonMismatch, 0, ""), CodeInvalidDebugFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Code(); got != tt.want {
				t.Errorf("Code() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestCodeFields(t *testing.T) {
	if m := Module(CodeInvalidMeta); m != 9 {
		t.Errorf("Module(%#x) = %d, want 9", CodeInvalidMeta, m)
	}
	if d := Description(CodeInvalidMeta); d != 4 {
		t.Errorf("Description(%#x) = %d, want 4", CodeInvalidMeta, d)
	}
	if m := Module(CodePathNotFound); m != 2 {
		t.Errorf("Module(%#x) = %d, want 2", CodePathNotFound, m)
	}
}
