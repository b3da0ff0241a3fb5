package npdm

// Region is an offset/size pair as stored in the blob. Section regions are
// relative to the blob start; sub-regions are relative to their section.
type Region struct {
	Offset uint32
	Size   uint32
}

// End returns Offset+Size without wrapping.
func (r Region) End() uint64 {
	return uint64(r.Offset) + uint64(r.Size)
}

// Header is the fixed structure at the start of the blob.
type Header struct {
	Name               string
	ProductCode        string
	Magic              uint32
	SignatureKeyIndex  uint32
	SystemResourceSize uint32
	Version            uint32
	MainStackSize      uint32
	Declared           Region
	Restricted         Region
	MMUFlags           uint8
	MainThreadPriority uint8
	DefaultCPU         uint8
}

// Is64Bit reports whether the program uses the 64-bit instruction set.
func (h Header) Is64Bit() bool {
	return h.MMUFlags&0x1 != 0
}

// AddressSpace returns the address space type encoded in bits 1..3.
func (h Header) AddressSpace() uint8 {
	return (h.MMUFlags >> 1) & 0x7
}

// DeclaredSection describes what the program itself asks for.
type DeclaredSection struct {
	ProgramID        uint64
	Magic            uint32
	FileAccessHeader Region
	ServiceAccess    Region
	KernelAccess     Region
}

// RestrictedSection describes what the trust anchor permits.
type RestrictedSection struct {
	ProgramIDMin      uint64
	ProgramIDMax      uint64
	Magic             uint32
	Size              uint32
	Flags             uint32
	FileAccessControl Region
	ServiceAccess     Region
	KernelAccess      Region
}

// IsProduction reports whether the section is flagged for retail units.
func (s RestrictedSection) IsProduction() bool {
	return s.Flags&RestrictedFlagProduction != 0
}

// AllowsProgram reports whether id falls inside the section's program id range.
func (s RestrictedSection) AllowsProgram(id uint64) bool {
	return id >= s.ProgramIDMin && id <= s.ProgramIDMax
}
