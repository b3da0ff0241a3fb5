// Package report renders the metadata of a loaded program for humans and
// tools. A Report is built from a loader result and encoded as coloured
// text, YAML or deterministic CBOR.
package report

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/kac"
	"github.com/wippyai/npdm-loader/loader"
)

// Verdicts.
const (
	Accepted = "accepted"
	Rejected = "rejected"
)

// Report describes one program's metadata and its validation verdict.
type Report struct {
	Identity   string     `yaml:"identity" cbor:"identity"`
	Digest     string     `yaml:"digest" cbor:"digest"`
	Header     Header     `yaml:"header" cbor:"header"`
	Program    Program    `yaml:"program" cbor:"program"`
	Verdict    string     `yaml:"verdict" cbor:"verdict"`
	Violation  *Violation `yaml:"violation,omitempty" cbor:"violation,omitempty"`
	Flags      []string   `yaml:"flags,omitempty" cbor:"flags,omitempty"`
	Declared   []Entry    `yaml:"declared" cbor:"declared"`
	Restricted []Entry    `yaml:"restricted" cbor:"restricted"`
}

// Header holds the decoded header fields.
type Header struct {
	Name               string `yaml:"name" cbor:"name"`
	ProductCode        string `yaml:"product_code,omitempty" cbor:"product_code,omitempty"`
	MMUFlags           uint8  `yaml:"mmu_flags" cbor:"mmu_flags"`
	Is64Bit            bool   `yaml:"is_64bit" cbor:"is_64bit"`
	AddressSpace       uint8  `yaml:"address_space" cbor:"address_space"`
	MainThreadPriority uint8  `yaml:"main_thread_priority" cbor:"main_thread_priority"`
	DefaultCPU         uint8  `yaml:"default_cpu" cbor:"default_cpu"`
	MainStackSize      uint32 `yaml:"main_stack_size" cbor:"main_stack_size"`
	Version            uint32 `yaml:"version" cbor:"version"`
	SystemResourceSize uint32 `yaml:"system_resource_size" cbor:"system_resource_size"`
	SignatureKeyIndex  uint32 `yaml:"signature_key_index" cbor:"signature_key_index"`
}

// Program holds the program id fields of both sections.
type Program struct {
	ID         string `yaml:"id" cbor:"id"`
	Min        string `yaml:"min" cbor:"min"`
	Max        string `yaml:"max" cbor:"max"`
	Production bool   `yaml:"production" cbor:"production"`
}

// Violation details a rejected capability.
type Violation struct {
	Category string `yaml:"category,omitempty" cbor:"category,omitempty"`
	Reason   string `yaml:"reason" cbor:"reason"`
	Code     string `yaml:"code" cbor:"code"`
	Detail   string `yaml:"detail,omitempty" cbor:"detail,omitempty"`
	Index    int    `yaml:"index" cbor:"index"`
}

// Entry is one capability of a list.
type Entry struct {
	Kind        string   `yaml:"kind" cbor:"kind"`
	Description string   `yaml:"description" cbor:"description"`
	Words       []uint32 `yaml:"words,flow" cbor:"words"`
	Error       string   `yaml:"error,omitempty" cbor:"error,omitempty"`
	Index       int      `yaml:"index" cbor:"index"`
	Permitted   bool     `yaml:"permitted" cbor:"permitted"`
}

// New builds a report from a loader result. verdict is the error returned
// by Load, nil for an accepted program.
func New(res *loader.Result, verdict error) *Report {
	v := res.View
	h := v.Header
	r := &Report{
		Identity: fmt.Sprintf("%016x", v.Identity),
		Digest:   hex.EncodeToString(v.Digest[:]),
		Header: Header{
			Name:               h.Name,
			ProductCode:        h.ProductCode,
			MMUFlags:           h.MMUFlags,
			Is64Bit:            h.Is64Bit(),
			AddressSpace:       h.AddressSpace(),
			MainThreadPriority: h.MainThreadPriority,
			DefaultCPU:         h.DefaultCPU,
			MainStackSize:      h.MainStackSize,
			Version:            h.Version,
			SystemResourceSize: h.SystemResourceSize,
			SignatureKeyIndex:  h.SignatureKeyIndex,
		},
		Program: Program{
			ID:         fmt.Sprintf("%016x", v.Declared.ProgramID),
			Min:        fmt.Sprintf("%016x", v.Restricted.ProgramIDMin),
			Max:        fmt.Sprintf("%016x", v.Restricted.ProgramIDMax),
			Production: v.Restricted.IsProduction(),
		},
		Verdict:    Accepted,
		Declared:   declaredEntries(res.Restricted, res.Declared),
		Restricted: restrictedEntries(res.Restricted),
	}

	if verdict != nil {
		r.Verdict = Rejected
		r.Violation = violation(verdict)
		return r
	}
	r.Flags = flagNames(res.Flags)
	return r
}

func declaredEntries(restricted, declared []uint32) []Entry {
	findings := kac.Explain(restricted, declared)
	out := make([]Entry, 0, len(findings))
	for _, f := range findings {
		e := entry(f.Index, f.Words, f.Capability)
		e.Permitted = f.Permitted()
		if f.Err != nil {
			e.Error = f.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

// restrictedEntries lists restriction words, joining mapping pairs the way
// the validator scans them. Unrecognized words are listed, not rejected.
func restrictedEntries(words []uint32) []Entry {
	out := make([]Entry, 0, len(words))
	for i := 0; i < len(words); i++ {
		c, _ := kac.Decode(words[i])
		if first, ok := c.(kac.MapWord); ok && i+1 < len(words) {
			next, _ := kac.Decode(words[i+1])
			if second, ok := next.(kac.MapWord); ok {
				e := entry(i, words[i:i+2], kac.NewMapRange(first, second))
				e.Permitted = true
				out = append(out, e)
				i++
				continue
			}
		}
		e := entry(i, words[i:i+1], c)
		e.Permitted = c != nil
		out = append(out, e)
	}
	return out
}

func entry(index int, words []uint32, c kac.Capability) Entry {
	e := Entry{
		Index:       index,
		Words:       append([]uint32(nil), words...),
		Description: Describe(c),
	}
	if c == nil {
		e.Kind = kac.KindOf(words[0]).String()
	} else {
		e.Kind = c.Kind().String()
	}
	return e
}

func violation(err error) *Violation {
	var le *loadererrors.Error
	if !errors.As(err, &le) {
		return &Violation{Reason: "error", Detail: err.Error()}
	}
	v := &Violation{
		Category: le.Category,
		Reason:   string(le.Reason),
		Code:     fmt.Sprintf("%#x", le.Code()),
		Detail:   le.Detail,
	}
	if v.Reason == "" {
		v.Reason = string(le.Kind)
	}
	if len(le.Path) == 2 {
		if n, err := strconv.Atoi(le.Path[1]); err == nil {
			v.Index = n
		}
	}
	return v
}

func flagNames(f kac.AppFlags) []string {
	var names []string
	if f.Has(kac.FlagApplication) {
		names = append(names, "application")
	}
	if f.Has(kac.FlagApplet) {
		names = append(names, "applet")
	}
	if f.Has(kac.FlagAllowDebug) {
		names = append(names, "allow_debug")
	}
	return names
}
