package kac

// Capability is one decoded kernel capability.
type Capability interface {
	Kind() Kind
	// Words encodes the capability back into its capability words.
	Words() []uint32
}

// Field limits.
const (
	InterruptWildcard = 0x3FF
	MaxMapSize        = 1 << 20
	SyscallsPerIndex  = 24
)

// Application type values.
const (
	AppTypeSystemModule uint8 = 0
	AppTypeApplication  uint8 = 1
	AppTypeApplet       uint8 = 2
)

// encode places payload above the tag of kind k.
func encode(k Kind, payload uint32) uint32 {
	pattern, n := k.Tag()
	if n >= 32 {
		return pattern
	}
	return pattern | payload<<n
}

// ThreadInfo bounds thread priorities and the usable CPU cores.
type ThreadInfo struct {
	HighestPriority uint8
	LowestPriority  uint8
	MinCore         uint8
	MaxCore         uint8
}

func (ThreadInfo) Kind() Kind { return KindThreadInfo }

func (c ThreadInfo) Words() []uint32 {
	p := uint32(c.HighestPriority&0x3F) |
		uint32(c.LowestPriority&0x3F)<<6 |
		uint32(c.MinCore)<<12 |
		uint32(c.MaxCore)<<20
	return []uint32{encode(KindThreadInfo, p)}
}

// SyscallMask enables up to 24 syscalls starting at Index*24.
type SyscallMask struct {
	Mask  uint32
	Index uint8
}

func (SyscallMask) Kind() Kind { return KindSyscallMask }

func (c SyscallMask) Words() []uint32 {
	p := c.Mask&0xFFFFFF | uint32(c.Index&0x7)<<24
	return []uint32{encode(KindSyscallMask, p)}
}

// Allows reports whether syscall id is enabled by this mask.
func (c SyscallMask) Allows(id int) bool {
	base := int(c.Index) * SyscallsPerIndex
	if id < base || id >= base+SyscallsPerIndex {
		return false
	}
	return c.Mask&(1<<(id-base)) != 0
}

// MapWord is one half of a mapping pair. The first half carries the
// address and the IO flag, the second the size and the read-only flag.
type MapWord struct {
	Value uint32
	Flag  bool
}

func (MapWord) Kind() Kind { return KindMapRange }

func (c MapWord) Words() []uint32 {
	p := c.Value & 0xFFFFFF
	if c.Flag {
		p |= 1 << 24
	}
	return []uint32{encode(KindMapRange, p)}
}

// MapRange maps Size pages starting at page Address.
type MapRange struct {
	Address  uint32
	Size     uint32
	IO       bool
	ReadOnly bool
}

// NewMapRange joins the two halves of a mapping pair.
func NewMapRange(first, second MapWord) MapRange {
	return MapRange{
		Address:  first.Value,
		IO:       first.Flag,
		Size:     second.Value,
		ReadOnly: second.Flag,
	}
}

func (MapRange) Kind() Kind { return KindMapRange }

func (c MapRange) Words() []uint32 {
	a := MapWord{Value: c.Address, Flag: c.IO}.Words()
	b := MapWord{Value: c.Size, Flag: c.ReadOnly}.Words()
	return append(a, b...)
}

// End returns the first page past the range.
func (c MapRange) End() uint32 {
	return c.Address + c.Size
}

// Contains reports whether o lies fully inside c.
func (c MapRange) Contains(o MapRange) bool {
	return o.Address >= c.Address && o.End() <= c.End()
}

// MapPage maps a single page.
type MapPage struct {
	Page uint32
}

func (MapPage) Kind() Kind { return KindMapPage }

func (c MapPage) Words() []uint32 {
	return []uint32{encode(KindMapPage, c.Page&0xFFFFFF)}
}

// InterruptPair grants up to two interrupts. InterruptWildcard marks an
// unused slot in a declared pair and "any" in a restriction pair.
type InterruptPair struct {
	Interrupts [2]uint16
}

func (InterruptPair) Kind() Kind { return KindInterruptPair }

func (c InterruptPair) Words() []uint32 {
	p := uint32(c.Interrupts[0]&0x3FF) | uint32(c.Interrupts[1]&0x3FF)<<10
	return []uint32{encode(KindInterruptPair, p)}
}

// Wildcard reports whether both slots are wildcards.
func (c InterruptPair) Wildcard() bool {
	return c.Interrupts[0] == InterruptWildcard && c.Interrupts[1] == InterruptWildcard
}

// Permits reports whether irq is granted by this restriction pair.
func (c InterruptPair) Permits(irq uint16) bool {
	return c.Wildcard() || irq == c.Interrupts[0] || irq == c.Interrupts[1]
}

// ApplicationType classifies the program. Reserved holds the payload bits
// above the 3-bit type; they take part in comparisons.
type ApplicationType struct {
	Reserved uint32
	Type     uint8
}

func (ApplicationType) Kind() Kind { return KindApplicationType }

func (c ApplicationType) Words() []uint32 {
	p := uint32(c.Type&0x7) | (c.Reserved&0x7FFF)<<3
	return []uint32{encode(KindApplicationType, p)}
}

// KernelVersion is the minimum kernel release the program needs.
type KernelVersion struct {
	Version uint32
}

func (KernelVersion) Kind() Kind { return KindKernelVersion }

func (c KernelVersion) Words() []uint32 {
	return []uint32{encode(KindKernelVersion, c.Version&0x1FFFF)}
}

// Major returns the major release number.
func (c KernelVersion) Major() uint32 { return c.Version >> 4 }

// Minor returns the minor release number.
func (c KernelVersion) Minor() uint32 { return c.Version & 0xF }

// HandleTableSize is the number of handle table entries requested.
// Only the low 10 bits are significant.
type HandleTableSize struct {
	Size     uint16
	Reserved uint16
}

func (HandleTableSize) Kind() Kind { return KindHandleTableSize }

func (c HandleTableSize) Words() []uint32 {
	p := uint32(c.Size&0x3FF) | uint32(c.Reserved&0x3F)<<10
	return []uint32{encode(KindHandleTableSize, p)}
}

// DebugFlags requests debugging rights.
type DebugFlags struct {
	Flags uint32
}

const (
	DebugAllowDebug uint32 = 1 << 0
	DebugForceDebug uint32 = 1 << 1
)

func (DebugFlags) Kind() Kind { return KindDebugFlags }

func (c DebugFlags) Words() []uint32 {
	return []uint32{encode(KindDebugFlags, c.Flags&0x7FFF)}
}

// AllowDebug reports whether the program may be debugged.
func (c DebugFlags) AllowDebug() bool { return c.Flags&DebugAllowDebug != 0 }

// ForceDebug reports whether the program is always debuggable.
func (c DebugFlags) ForceDebug() bool { return c.Flags&DebugForceDebug != 0 }

// Padding is an all-ones word with no effect.
type Padding struct{}

func (Padding) Kind() Kind { return KindPadding }

func (Padding) Words() []uint32 { return []uint32{0xFFFFFFFF} }
