package npdm

import (
	"github.com/zeebo/blake3"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/npdm/internal/binary"
)

// Parse validates the structural layout of a metadata blob and returns a
// view over it. Checks run in a fixed order and stop at the first failure;
// every failure is a malformed-metadata error whose Path names the check.
//
// The returned View aliases data.
func Parse(data []byte, identity uint64) (View, error) {
	r := binary.NewReader(data)
	size := uint64(len(data))

	if len(data) < HeaderSize {
		return View{}, loadererrors.Malformed([]string{"header"},
			"blob is %d bytes, header needs %d", len(data), HeaderSize)
	}

	hdr, err := readHeader(r)
	if err != nil {
		return View{}, err
	}
	if hdr.Magic != MagicMeta {
		return View{}, loadererrors.Malformed([]string{"header", "magic"}, "got %#08x", hdr.Magic)
	}
	if hdr.MMUFlags > MaxMMUFlags {
		return View{}, loadererrors.Malformed([]string{"header", "mmu_flags"},
			"%#x exceeds %#x", hdr.MMUFlags, MaxMMUFlags)
	}

	if err := checkSection("declared", hdr.Declared, DeclaredSectionSize, size); err != nil {
		return View{}, err
	}
	declared, err := readDeclared(r, hdr.Declared.Offset)
	if err != nil {
		return View{}, err
	}
	if declared.Magic != MagicACI0 {
		return View{}, loadererrors.Malformed([]string{"declared", "magic"}, "got %#08x", declared.Magic)
	}
	for _, sub := range []struct {
		name string
		r    Region
	}{
		{"fah", declared.FileAccessHeader},
		{"sac", declared.ServiceAccess},
		{"kac", declared.KernelAccess},
	} {
		if err := checkSubRegion("declared", sub.name, sub.r, hdr.Declared.Size, DeclaredSectionSize); err != nil {
			return View{}, err
		}
	}

	if err := checkSection("restricted", hdr.Restricted, RestrictedSectionSize, size); err != nil {
		return View{}, err
	}
	restricted, err := readRestricted(r, hdr.Restricted.Offset)
	if err != nil {
		return View{}, err
	}
	if restricted.Magic != MagicACID {
		return View{}, loadererrors.Malformed([]string{"restricted", "magic"}, "got %#08x", restricted.Magic)
	}
	for _, sub := range []struct {
		name string
		r    Region
	}{
		{"fac", restricted.FileAccessControl},
		{"sac", restricted.ServiceAccess},
		{"kac", restricted.KernelAccess},
	} {
		if err := checkSubRegion("restricted", sub.name, sub.r, hdr.Restricted.Size, RestrictedSectionSize); err != nil {
			return View{}, err
		}
	}

	return View{
		Identity:   identity,
		Digest:     blake3.Sum256(data),
		Header:     hdr,
		Declared:   declared,
		Restricted: restricted,
		raw:        data,
	}, nil
}

// checkSection validates a section region against the blob.
func checkSection(name string, r Region, minSize int, blobSize uint64) error {
	if r.Offset < HeaderSize {
		return loadererrors.Malformed([]string{name, "offset"},
			"%#x overlaps the %#x-byte header", r.Offset, HeaderSize)
	}
	if r.Size < uint32(minSize) {
		return loadererrors.Malformed([]string{name, "size"},
			"%#x is below the %#x-byte section header", r.Size, minSize)
	}
	if r.End() > blobSize {
		return loadererrors.Malformed([]string{name, "size"},
			"section ends at %#x past blob size %#x", r.End(), blobSize)
	}
	return nil
}

// checkSubRegion validates a region relative to its enclosing section.
func checkSubRegion(section, name string, r Region, sectionSize uint32, minOffset int) error {
	if r.Size > sectionSize {
		return loadererrors.Malformed([]string{section, name},
			"size %#x exceeds section size %#x", r.Size, sectionSize)
	}
	if r.Offset < uint32(minOffset) {
		return loadererrors.Malformed([]string{section, name},
			"offset %#x overlaps the %#x-byte section header", r.Offset, minOffset)
	}
	if r.End() > uint64(sectionSize) {
		return loadererrors.Malformed([]string{section, name},
			"region ends at %#x past section size %#x", r.End(), sectionSize)
	}
	return nil
}

func readHeader(r *binary.Reader) (Header, error) {
	var h Header
	var err error
	read32 := func(off int, dst *uint32) {
		if err != nil {
			return
		}
		if err = r.Seek(off); err == nil {
			*dst, err = r.ReadU32()
		}
	}
	read8 := func(off int, dst *uint8) {
		if err != nil {
			return
		}
		if err = r.Seek(off); err == nil {
			*dst, err = r.ReadU8()
		}
	}
	readStr := func(off, n int, dst *string) {
		if err != nil {
			return
		}
		if err = r.Seek(off); err == nil {
			*dst, err = r.ReadString(n)
		}
	}

	read32(OffHeaderMagic, &h.Magic)
	read32(OffHeaderSignatureKeyIndex, &h.SignatureKeyIndex)
	read8(OffHeaderMMUFlags, &h.MMUFlags)
	read8(OffHeaderMainThreadPriority, &h.MainThreadPriority)
	read8(OffHeaderDefaultCPU, &h.DefaultCPU)
	read32(OffHeaderSystemResourceSize, &h.SystemResourceSize)
	read32(OffHeaderVersion, &h.Version)
	read32(OffHeaderMainStackSize, &h.MainStackSize)
	readStr(OffHeaderName, NameSize, &h.Name)
	readStr(OffHeaderProductCode, ProductCodeSize, &h.ProductCode)
	read32(OffHeaderDeclared, &h.Declared.Offset)
	read32(OffHeaderDeclared+4, &h.Declared.Size)
	read32(OffHeaderRestricted, &h.Restricted.Offset)
	read32(OffHeaderRestricted+4, &h.Restricted.Size)

	if err != nil {
		return Header{}, malformedRead("header", r, err)
	}
	return h, nil
}

func readDeclared(r *binary.Reader, base uint32) (DeclaredSection, error) {
	var s DeclaredSection
	var err error
	at := func(off int) bool {
		if err != nil {
			return false
		}
		err = r.Seek(int(base) + off)
		return err == nil
	}

	if at(OffDeclaredMagic) {
		s.Magic, err = r.ReadU32()
	}
	if at(OffDeclaredProgramID) {
		s.ProgramID, err = r.ReadU64()
	}
	if at(OffDeclaredFileAccess) {
		s.FileAccessHeader, err = readRegion(r)
	}
	if at(OffDeclaredServiceAccess) {
		s.ServiceAccess, err = readRegion(r)
	}
	if at(OffDeclaredKernelAccess) {
		s.KernelAccess, err = readRegion(r)
	}

	if err != nil {
		return DeclaredSection{}, malformedRead("declared", r, err)
	}
	return s, nil
}

func readRestricted(r *binary.Reader, base uint32) (RestrictedSection, error) {
	var s RestrictedSection
	var err error
	at := func(off int) bool {
		if err != nil {
			return false
		}
		err = r.Seek(int(base) + off)
		return err == nil
	}

	if at(OffRestrictedMagic) {
		s.Magic, err = r.ReadU32()
	}
	if at(OffRestrictedSize) {
		s.Size, err = r.ReadU32()
	}
	if at(OffRestrictedFlags) {
		s.Flags, err = r.ReadU32()
	}
	if at(OffRestrictedProgramIDMin) {
		s.ProgramIDMin, err = r.ReadU64()
	}
	if at(OffRestrictedProgramIDMax) {
		s.ProgramIDMax, err = r.ReadU64()
	}
	if at(OffRestrictedFileAccess) {
		s.FileAccessControl, err = readRegion(r)
	}
	if at(OffRestrictedServiceAccess) {
		s.ServiceAccess, err = readRegion(r)
	}
	if at(OffRestrictedKernelAccess) {
		s.KernelAccess, err = readRegion(r)
	}

	if err != nil {
		return RestrictedSection{}, malformedRead("restricted", r, err)
	}
	return s, nil
}

func readRegion(r *binary.Reader) (Region, error) {
	off, err := r.ReadU32()
	if err != nil {
		return Region{}, err
	}
	size, err := r.ReadU32()
	if err != nil {
		return Region{}, err
	}
	return Region{Offset: off, Size: size}, nil
}

// malformedRead reports a field read that ran past the data. Bounds checks
// run before every read, so reaching this means the checks and the layout
// constants disagree.
func malformedRead(section string, r *binary.Reader, err error) error {
	return loadererrors.New(loadererrors.PhaseParse, loadererrors.KindMalformed).
		Path(section).
		Detail("field read failed").
		Cause(r.WrapError(section, err)).
		Build()
}
