package npdm

// Magic values, little endian.
const (
	MagicMeta uint32 = 0x4154454D // "META"
	MagicACI0 uint32 = 0x30494341 // "ACI0"
	MagicACID uint32 = 0x44494341 // "ACID"
)

// Fixed structure sizes.
const (
	HeaderSize            = 0x80
	DeclaredSectionSize   = 0x40
	RestrictedSectionSize = 0x240
)

// DefaultBufferSize is the cache buffer capacity used when none is configured.
const DefaultBufferSize = 0x8000

// MaxMMUFlags is the largest accepted header mmu_flags value.
const MaxMMUFlags = 0xF

// Header field offsets.
const (
	OffHeaderMagic              = 0x00
	OffHeaderSignatureKeyIndex  = 0x04
	OffHeaderMMUFlags           = 0x0C
	OffHeaderMainThreadPriority = 0x0E
	OffHeaderDefaultCPU         = 0x0F
	OffHeaderSystemResourceSize = 0x14
	OffHeaderVersion            = 0x18
	OffHeaderMainStackSize      = 0x1C
	OffHeaderName               = 0x20
	OffHeaderProductCode        = 0x30
	OffHeaderDeclared           = 0x70
	OffHeaderRestricted         = 0x78

	NameSize        = 0x10
	ProductCodeSize = 0x10
)

// Declared section field offsets, relative to the section start.
const (
	OffDeclaredMagic         = 0x00
	OffDeclaredProgramID     = 0x10
	OffDeclaredFileAccess    = 0x20
	OffDeclaredServiceAccess = 0x28
	OffDeclaredKernelAccess  = 0x30
)

// Restricted section field offsets, relative to the section start.
const (
	OffRestrictedSignature     = 0x000
	OffRestrictedModulus       = 0x100
	OffRestrictedMagic         = 0x200
	OffRestrictedSize          = 0x204
	OffRestrictedFlags         = 0x20C
	OffRestrictedProgramIDMin  = 0x210
	OffRestrictedProgramIDMax  = 0x218
	OffRestrictedFileAccess    = 0x220
	OffRestrictedServiceAccess = 0x228
	OffRestrictedKernelAccess  = 0x230

	SignatureSize = 0x100
)

// RestrictedFlagProduction marks a restricted section signed for retail units.
const RestrictedFlagProduction uint32 = 1 << 0
