package errors

// Loader result codes. Module 9 is the process loader, module 2 the
// filesystem; the description sits above the module in bits 9..21.
const (
	CodeSuccess            uint32 = 0x0
	CodePathNotFound       uint32 = 0x202
	CodeTooLargeMeta       uint32 = 0x609
	CodeInvalidMeta        uint32 = 0x809
	CodeUnknownCapability  uint32 = 0xC809
	CodeInvalidThreadInfo  uint32 = 0xCE09
	CodeInvalidSyscallMask uint32 = 0xD009
	CodeInvalidMapRange    uint32 = 0xD409
	CodeInvalidMapPage     uint32 = 0xD609
	CodeInvalidInterrupt   uint32 = 0xDE09
	CodeInvalidAppType     uint32 = 0xE209
	CodeInvalidKernelVer   uint32 = 0xE409
	CodeInvalidHandleTable uint32 = 0xE609
	CodeInvalidDebugFlags  uint32 = 0xE809
)

var categoryCodes = map[string]uint32{
	"thread_info":       CodeInvalidThreadInfo,
	"syscall_mask":      CodeInvalidSyscallMask,
	"map_range":         CodeInvalidMapRange,
	"map_page":          CodeInvalidMapPage,
	"interrupt_pair":    CodeInvalidInterrupt,
	"application_type":  CodeInvalidAppType,
	"kernel_version":    CodeInvalidKernelVer,
	"handle_table_size": CodeInvalidHandleTable,
	"debug_flags":       CodeInvalidDebugFlags,
}

// Code returns the loader result code for the error.
func (e *Error) Code() uint32 {
	switch e.Kind {
	case KindNotFound:
		return CodePathNotFound
	case KindOversize, KindShortRead:
		return CodeTooLargeMeta
	case KindMalformed:
		return CodeInvalidMeta
	case KindCapability:
		if e.Reason == ReasonUnrecognized {
			return CodeUnknownCapability
		}
		if code, ok := categoryCodes[e.Category]; ok {
			return code
		}
		return CodeUnknownCapability
	}
	return CodeInvalidMeta
}

// Description extracts the description field of a result code.
func Description(code uint32) uint32 {
	return (code >> 9) & 0x1FFF
}

// Module extracts the module field of a result code.
func Module(code uint32) uint32 {
	return code & 0x1FF
}
