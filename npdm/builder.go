package npdm

import (
	"encoding/binary"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	bin "github.com/wippyai/npdm-loader/npdm/internal/binary"
)

// sectionAlign is the alignment of sections and sub-regions written by Builder.
const sectionAlign = 0x10

// Access is the payload of a declared or restricted section.
type Access struct {
	FileAccess         []byte
	ServiceAccess      []byte
	KernelCapabilities []uint32
}

// Builder assembles a well-formed metadata blob. The restricted section is
// placed right after the header and the declared section after it.
type Builder struct {
	Name               string
	ProductCode        string
	Signature          []byte
	Modulus            []byte
	Declared           Access
	Restricted         Access
	ProgramID          uint64
	ProgramIDMin       uint64
	ProgramIDMax       uint64
	SignatureKeyIndex  uint32
	SystemResourceSize uint32
	Version            uint32
	MainStackSize      uint32
	MMUFlags           uint8
	MainThreadPriority uint8
	DefaultCPU         uint8
	Production         bool
}

// Build encodes the blob.
func (b *Builder) Build() ([]byte, error) {
	if b.MMUFlags > MaxMMUFlags {
		return nil, loadererrors.InvalidInput(loadererrors.PhaseEncode, "mmu flags exceed 0xf")
	}
	if len(b.Name) > NameSize {
		return nil, loadererrors.InvalidInput(loadererrors.PhaseEncode, "name longer than 16 bytes")
	}
	if len(b.ProductCode) > ProductCodeSize {
		return nil, loadererrors.InvalidInput(loadererrors.PhaseEncode, "product code longer than 16 bytes")
	}
	if len(b.Signature) > SignatureSize || len(b.Modulus) > SignatureSize {
		return nil, loadererrors.InvalidInput(loadererrors.PhaseEncode, "signature and modulus are at most 256 bytes")
	}

	restricted := b.restrictedSection()
	declared := b.declaredSection()

	restrictedOff := align(HeaderSize)
	declaredOff := align(restrictedOff + len(restricted))
	out := make([]byte, declaredOff+len(declared))

	le := binary.LittleEndian
	le.PutUint32(out[OffHeaderMagic:], MagicMeta)
	le.PutUint32(out[OffHeaderSignatureKeyIndex:], b.SignatureKeyIndex)
	out[OffHeaderMMUFlags] = b.MMUFlags
	out[OffHeaderMainThreadPriority] = b.MainThreadPriority
	out[OffHeaderDefaultCPU] = b.DefaultCPU
	le.PutUint32(out[OffHeaderSystemResourceSize:], b.SystemResourceSize)
	le.PutUint32(out[OffHeaderVersion:], b.Version)
	le.PutUint32(out[OffHeaderMainStackSize:], b.MainStackSize)
	copy(out[OffHeaderName:OffHeaderName+NameSize], b.Name)
	copy(out[OffHeaderProductCode:OffHeaderProductCode+ProductCodeSize], b.ProductCode)
	putRegion(out[OffHeaderDeclared:], Region{Offset: uint32(declaredOff), Size: uint32(len(declared))})
	putRegion(out[OffHeaderRestricted:], Region{Offset: uint32(restrictedOff), Size: uint32(len(restricted))})

	copy(out[restrictedOff:], restricted)
	copy(out[declaredOff:], declared)
	return out, nil
}

func (b *Builder) declaredSection() []byte {
	regions, payload := layoutAccess(DeclaredSectionSize, b.Declared)
	out := make([]byte, DeclaredSectionSize+len(payload))

	le := binary.LittleEndian
	le.PutUint32(out[OffDeclaredMagic:], MagicACI0)
	le.PutUint64(out[OffDeclaredProgramID:], b.ProgramID)
	putRegion(out[OffDeclaredFileAccess:], regions[0])
	putRegion(out[OffDeclaredServiceAccess:], regions[1])
	putRegion(out[OffDeclaredKernelAccess:], regions[2])
	copy(out[DeclaredSectionSize:], payload)
	return out
}

func (b *Builder) restrictedSection() []byte {
	regions, payload := layoutAccess(RestrictedSectionSize, b.Restricted)
	out := make([]byte, RestrictedSectionSize+len(payload))

	var flags uint32
	if b.Production {
		flags |= RestrictedFlagProduction
	}

	le := binary.LittleEndian
	copy(out[OffRestrictedSignature:OffRestrictedSignature+SignatureSize], b.Signature)
	copy(out[OffRestrictedModulus:OffRestrictedModulus+SignatureSize], b.Modulus)
	le.PutUint32(out[OffRestrictedMagic:], MagicACID)
	le.PutUint32(out[OffRestrictedSize:], uint32(len(out)-SignatureSize))
	le.PutUint32(out[OffRestrictedFlags:], flags)
	le.PutUint64(out[OffRestrictedProgramIDMin:], b.ProgramIDMin)
	le.PutUint64(out[OffRestrictedProgramIDMax:], b.ProgramIDMax)
	putRegion(out[OffRestrictedFileAccess:], regions[0])
	putRegion(out[OffRestrictedServiceAccess:], regions[1])
	putRegion(out[OffRestrictedKernelAccess:], regions[2])
	copy(out[RestrictedSectionSize:], payload)
	return out
}

// layoutAccess places the three payloads after a section header of size
// base and returns their section-relative regions.
func layoutAccess(base int, a Access) ([3]Region, []byte) {
	parts := [3][]byte{a.FileAccess, a.ServiceAccess, bin.PutWords(a.KernelCapabilities)}
	var regions [3]Region
	var payload []byte
	off := base
	for i, p := range parts {
		regions[i] = Region{Offset: uint32(off), Size: uint32(len(p))}
		payload = append(payload, p...)
		off += len(p)
		if pad := align(off) - off; pad > 0 && i < len(parts)-1 {
			payload = append(payload, make([]byte, pad)...)
			off += pad
		}
	}
	return regions, payload
}

func putRegion(dst []byte, r Region) {
	binary.LittleEndian.PutUint32(dst, r.Offset)
	binary.LittleEndian.PutUint32(dst[4:], r.Size)
}

func align(n int) int {
	return (n + sectionAlign - 1) &^ (sectionAlign - 1)
}
