package npdm

import (
	"github.com/wippyai/npdm-loader/npdm/internal/binary"
)

// View is a validated projection over a metadata blob. It carries the
// decoded header and sections plus index/size pairs into the blob; region
// bytes are resolved against the backing buffer on each access.
//
// A View returned by a Cache aliases the cache buffer and stays valid until
// the cache is refilled for a different identity.
type View struct {
	Identity   uint64
	Digest     [32]byte
	Header     Header
	Declared   DeclaredSection
	Restricted RestrictedSection
	raw        []byte
}

// Raw returns the whole blob.
func (v View) Raw() []byte {
	return v.raw
}

// Valid reports whether the view was produced by a successful parse.
func (v View) Valid() bool {
	return v.raw != nil
}

// Bytes resolves a sub-region of the section starting at base.
func (v View) Bytes(base Region, sub Region) []byte {
	start := uint64(base.Offset) + uint64(sub.Offset)
	end := start + uint64(sub.Size)
	if end > uint64(len(v.raw)) || end > base.End() {
		return nil
	}
	return v.raw[start:end]
}

// DeclaredFileAccess returns the declared file access header bytes.
func (v View) DeclaredFileAccess() []byte {
	return v.Bytes(v.Header.Declared, v.Declared.FileAccessHeader)
}

// DeclaredServiceAccess returns the declared service access control bytes.
func (v View) DeclaredServiceAccess() []byte {
	return v.Bytes(v.Header.Declared, v.Declared.ServiceAccess)
}

// DeclaredKernelCapabilities decodes the declared capability words.
func (v View) DeclaredKernelCapabilities() []uint32 {
	return binary.Words(v.Bytes(v.Header.Declared, v.Declared.KernelAccess))
}

// RestrictedFileAccess returns the restricted file access control bytes.
func (v View) RestrictedFileAccess() []byte {
	return v.Bytes(v.Header.Restricted, v.Restricted.FileAccessControl)
}

// RestrictedServiceAccess returns the restricted service access control bytes.
func (v View) RestrictedServiceAccess() []byte {
	return v.Bytes(v.Header.Restricted, v.Restricted.ServiceAccess)
}

// RestrictedKernelCapabilities decodes the restricted capability words.
func (v View) RestrictedKernelCapabilities() []uint32 {
	return binary.Words(v.Bytes(v.Header.Restricted, v.Restricted.KernelAccess))
}

// Signature returns the restricted section's signature bytes.
func (v View) Signature() []byte {
	return v.Bytes(v.Header.Restricted, Region{Offset: OffRestrictedSignature, Size: SignatureSize})
}

// Modulus returns the public key modulus stored in the restricted section.
func (v View) Modulus() []byte {
	return v.Bytes(v.Header.Restricted, Region{Offset: OffRestrictedModulus, Size: SignatureSize})
}

// Detach returns a copy of v that owns its blob bytes, so it outlives a
// cache refill.
func (v View) Detach() View {
	if v.raw != nil {
		v.raw = append([]byte(nil), v.raw...)
	}
	return v
}
