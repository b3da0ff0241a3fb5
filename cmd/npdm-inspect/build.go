package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/npdm-loader/kac"
	"github.com/wippyai/npdm-loader/npdm"
)

// description is the YAML form of a metadata blob.
type description struct {
	Name               string     `yaml:"name"`
	ProductCode        string     `yaml:"product_code"`
	Declared           accessSpec `yaml:"declared"`
	Restricted         accessSpec `yaml:"restricted"`
	ProgramID          uint64     `yaml:"program_id"`
	ProgramIDMin       uint64     `yaml:"program_id_min"`
	ProgramIDMax       uint64     `yaml:"program_id_max"`
	SignatureKeyIndex  uint32     `yaml:"signature_key_index"`
	SystemResourceSize uint32     `yaml:"system_resource_size"`
	Version            uint32     `yaml:"version"`
	MainStackSize      uint32     `yaml:"main_stack_size"`
	MMUFlags           uint8      `yaml:"mmu_flags"`
	MainThreadPriority uint8      `yaml:"main_thread_priority"`
	DefaultCPU         uint8      `yaml:"default_cpu"`
	Production         bool       `yaml:"production"`
}

type accessSpec struct {
	// FileAccess is hex encoded.
	FileAccess string `yaml:"file_access"`
	// ServiceAccess lists service names; each is stored behind a control
	// byte holding its length minus one.
	ServiceAccess []string  `yaml:"service_access"`
	Capabilities  []capSpec `yaml:"kernel_capabilities"`
}

// capSpec describes one capability. Exactly one field is set.
type capSpec struct {
	ThreadInfo      *threadSpec  `yaml:"thread_info"`
	Map             *mapSpec     `yaml:"map"`
	MapPage         *uint32      `yaml:"map_page"`
	ApplicationType *uint8       `yaml:"application_type"`
	KernelVersion   *versionSpec `yaml:"kernel_version"`
	HandleTableSize *uint16      `yaml:"handle_table_size"`
	DebugFlags      *debugSpec   `yaml:"debug_flags"`
	Word            *uint32      `yaml:"word"`
	Syscalls        []int        `yaml:"syscalls"`
	Interrupts      []uint16     `yaml:"interrupts"`
}

type threadSpec struct {
	HighestPriority uint8 `yaml:"highest_priority"`
	LowestPriority  uint8 `yaml:"lowest_priority"`
	MinCore         uint8 `yaml:"min_core"`
	MaxCore         uint8 `yaml:"max_core"`
}

type mapSpec struct {
	Address  uint32 `yaml:"address"`
	Size     uint32 `yaml:"size"`
	IO       bool   `yaml:"io"`
	ReadOnly bool   `yaml:"read_only"`
}

type versionSpec struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
}

type debugSpec struct {
	Allow bool `yaml:"allow"`
	Force bool `yaml:"force"`
}

// parseDescription decodes a YAML blob description into a builder.
func parseDescription(data []byte) (*npdm.Builder, error) {
	var d description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode description: %w", err)
	}

	declared, err := d.Declared.access("declared")
	if err != nil {
		return nil, err
	}
	restricted, err := d.Restricted.access("restricted")
	if err != nil {
		return nil, err
	}

	return &npdm.Builder{
		Name:               d.Name,
		ProductCode:        d.ProductCode,
		Declared:           declared,
		Restricted:         restricted,
		ProgramID:          d.ProgramID,
		ProgramIDMin:       d.ProgramIDMin,
		ProgramIDMax:       d.ProgramIDMax,
		SignatureKeyIndex:  d.SignatureKeyIndex,
		SystemResourceSize: d.SystemResourceSize,
		Version:            d.Version,
		MainStackSize:      d.MainStackSize,
		MMUFlags:           d.MMUFlags,
		MainThreadPriority: d.MainThreadPriority,
		DefaultCPU:         d.DefaultCPU,
		Production:         d.Production,
	}, nil
}

func (a accessSpec) access(section string) (npdm.Access, error) {
	var out npdm.Access

	if a.FileAccess != "" {
		fa, err := hex.DecodeString(strings.ReplaceAll(a.FileAccess, " ", ""))
		if err != nil {
			return out, fmt.Errorf("%s.file_access: %w", section, err)
		}
		out.FileAccess = fa
	}

	for _, name := range a.ServiceAccess {
		if name == "" || len(name) > 8 {
			return out, fmt.Errorf("%s.service_access: name %q must be 1 to 8 bytes", section, name)
		}
		out.ServiceAccess = append(out.ServiceAccess, byte(len(name)-1))
		out.ServiceAccess = append(out.ServiceAccess, name...)
	}

	for i, c := range a.Capabilities {
		words, err := c.words()
		if err != nil {
			return out, fmt.Errorf("%s.kernel_capabilities[%d]: %w", section, i, err)
		}
		out.KernelCapabilities = append(out.KernelCapabilities, words...)
	}
	return out, nil
}

func (c capSpec) words() ([]uint32, error) {
	var caps []kac.Capability
	set := 0
	if c.ThreadInfo != nil {
		set++
		t := c.ThreadInfo
		caps = append(caps, kac.ThreadInfo{
			HighestPriority: t.HighestPriority,
			LowestPriority:  t.LowestPriority,
			MinCore:         t.MinCore,
			MaxCore:         t.MaxCore,
		})
	}
	if c.Syscalls != nil {
		set++
		masks, err := syscallMasks(c.Syscalls)
		if err != nil {
			return nil, err
		}
		caps = append(caps, masks...)
	}
	if c.Map != nil {
		set++
		if c.Map.Size >= kac.MaxMapSize {
			return nil, fmt.Errorf("map size %#x exceeds %#x pages", c.Map.Size, kac.MaxMapSize-1)
		}
		caps = append(caps, kac.MapRange{Address: c.Map.Address, Size: c.Map.Size, IO: c.Map.IO, ReadOnly: c.Map.ReadOnly})
	}
	if c.MapPage != nil {
		set++
		caps = append(caps, kac.MapPage{Page: *c.MapPage})
	}
	if c.Interrupts != nil {
		set++
		if len(c.Interrupts) == 0 || len(c.Interrupts) > 2 {
			return nil, fmt.Errorf("interrupts takes one or two numbers")
		}
		pair := kac.InterruptPair{Interrupts: [2]uint16{kac.InterruptWildcard, kac.InterruptWildcard}}
		copy(pair.Interrupts[:], c.Interrupts)
		caps = append(caps, pair)
	}
	if c.ApplicationType != nil {
		set++
		caps = append(caps, kac.ApplicationType{Type: *c.ApplicationType})
	}
	if c.KernelVersion != nil {
		set++
		caps = append(caps, kac.KernelVersion{Version: c.KernelVersion.Major<<4 | c.KernelVersion.Minor&0xF})
	}
	if c.HandleTableSize != nil {
		set++
		caps = append(caps, kac.HandleTableSize{Size: *c.HandleTableSize})
	}
	if c.DebugFlags != nil {
		set++
		var f uint32
		if c.DebugFlags.Allow {
			f |= kac.DebugAllowDebug
		}
		if c.DebugFlags.Force {
			f |= kac.DebugForceDebug
		}
		caps = append(caps, kac.DebugFlags{Flags: f})
	}
	if c.Word != nil {
		set++
	}

	if set != 1 {
		return nil, fmt.Errorf("exactly one capability field must be set, got %d", set)
	}
	if c.Word != nil {
		return []uint32{*c.Word}, nil
	}
	return kac.Encode(caps), nil
}

// syscallMasks groups syscall ids into one mask word per index.
func syscallMasks(ids []int) ([]kac.Capability, error) {
	masks := map[uint8]uint32{}
	for _, id := range ids {
		if id < 0 || id >= 8*kac.SyscallsPerIndex {
			return nil, fmt.Errorf("syscall id %#x out of range", id)
		}
		masks[uint8(id/kac.SyscallsPerIndex)] |= 1 << (id % kac.SyscallsPerIndex)
	}
	indexes := make([]int, 0, len(masks))
	for i := range masks {
		indexes = append(indexes, int(i))
	}
	sort.Ints(indexes)

	out := make([]kac.Capability, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, kac.SyscallMask{Mask: masks[uint8(i)], Index: uint8(i)})
	}
	return out, nil
}

// Compression suffixes understood by npdm.FSSource.
var compressSuffix = map[string]string{
	"none": "",
	"zstd": ".zst",
	"lz4":  ".lz4",
}

func runBuild(args []string, stdout io.Writer) error {
	var out, compress string
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	fs.StringVarP(&out, "out", "o", "", "output file")
	fs.StringVar(&compress, "compress", "none", "compression: none, zstd or lz4")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || out == "" {
		return fmt.Errorf("build takes --out FILE and one DESCRIPTION")
	}
	suffix, ok := compressSuffix[compress]
	if !ok {
		return fmt.Errorf("unknown compression %q", compress)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := parseDescription(data)
	if err != nil {
		return err
	}
	blob, err := b.Build()
	if err != nil {
		return err
	}

	if !strings.HasSuffix(out, suffix) {
		out += suffix
	}
	if err := writeBlob(out, blob, compress); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes uncompressed)\n", out, len(blob))
	return nil
}

func writeBlob(path string, blob []byte, compress string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch compress {
	case "zstd":
		// A single-segment frame sizes its window to the blob, which the
		// loader's bounded decoder accepts.
		enc, err := zstd.NewWriter(nil, zstd.WithSingleSegment(true))
		if err != nil {
			return err
		}
		defer enc.Close()
		_, err = f.Write(enc.EncodeAll(blob, nil))
		return err
	case "lz4":
		w := lz4.NewWriter(f)
		if _, err := w.Write(blob); err != nil {
			return err
		}
		return w.Close()
	}
	_, err = f.Write(blob)
	return err
}
