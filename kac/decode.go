package kac

import (
	"math/bits"
	"strconv"

	loadererrors "github.com/wippyai/npdm-loader/errors"
)

// TagWidth returns the number of trailing one bits of word. An all-ones
// word has width 32.
func TagWidth(word uint32) int {
	return bits.TrailingZeros32(^word)
}

// Payload returns the bits of word above its tag and terminating zero.
func Payload(word uint32) uint32 {
	w := TagWidth(word)
	if w >= 31 {
		return 0
	}
	return word >> (w + 1)
}

// KindOf returns the kind selected by word's tag. The result may be
// unknown; check Known.
func KindOf(word uint32) Kind {
	return Kind(TagWidth(word))
}

// Decode decodes a single capability word. Mapping words decode to one
// MapWord half; use DecodeList to join pairs.
func Decode(word uint32) (Capability, error) {
	p := Payload(word)
	switch KindOf(word) {
	case KindThreadInfo:
		return ThreadInfo{
			HighestPriority: uint8(p & 0x3F),
			LowestPriority:  uint8((p >> 6) & 0x3F),
			MinCore:         uint8(p >> 12),
			MaxCore:         uint8(p >> 20),
		}, nil
	case KindSyscallMask:
		return SyscallMask{Mask: p & 0xFFFFFF, Index: uint8(p >> 24)}, nil
	case KindMapRange:
		return MapWord{Value: p & 0xFFFFFF, Flag: (p>>24)&1 != 0}, nil
	case KindMapPage:
		return MapPage{Page: p}, nil
	case KindInterruptPair:
		return InterruptPair{Interrupts: [2]uint16{uint16(p & 0x3FF), uint16((p >> 10) & 0x3FF)}}, nil
	case KindApplicationType:
		return ApplicationType{Type: uint8(p & 0x7), Reserved: p >> 3}, nil
	case KindKernelVersion:
		return KernelVersion{Version: p}, nil
	case KindHandleTableSize:
		return HandleTableSize{Size: uint16(p & 0x3FF), Reserved: uint16(p >> 10)}, nil
	case KindDebugFlags:
		return DebugFlags{Flags: p}, nil
	case KindPadding:
		return Padding{}, nil
	}
	return nil, unrecognized(word)
}

// DecodeList decodes a capability list, joining mapping halves into
// MapRange values. It stops at the first unrecognized word or unpaired
// mapping half.
func DecodeList(words []uint32) ([]Capability, error) {
	out := make([]Capability, 0, len(words))
	for i := 0; i < len(words); i++ {
		c, err := Decode(words[i])
		if err != nil {
			return out, at(err, i)
		}
		first, ok := c.(MapWord)
		if !ok {
			out = append(out, c)
			continue
		}
		second, err := pairHalf(words, i)
		if err != nil {
			return out, at(err, i)
		}
		out = append(out, NewMapRange(first, second))
		i++
	}
	return out, nil
}

// pairHalf returns the second half of the mapping pair starting at i.
func pairHalf(words []uint32, i int) (MapWord, error) {
	if i+1 >= len(words) {
		return MapWord{}, loadererrors.Capability(KindMapRange.String(), loadererrors.ReasonIncompletePair,
			words[i], "mapping pair is missing its second word")
	}
	next, _ := Decode(words[i+1])
	second, ok := next.(MapWord)
	if !ok {
		return MapWord{}, loadererrors.Capability(KindMapRange.String(), loadererrors.ReasonIncompletePair,
			words[i], "mapping word is not followed by a mapping word")
	}
	return second, nil
}

// Encode flattens capabilities into capability words.
func Encode(caps []Capability) []uint32 {
	var out []uint32
	for _, c := range caps {
		out = append(out, c.Words()...)
	}
	return out
}

func unrecognized(word uint32) *loadererrors.Error {
	width := TagWidth(word)
	return loadererrors.New(loadererrors.PhaseValidate, loadererrors.KindCapability).
		Category(Kind(width).String()).
		Reason(loadererrors.ReasonUnrecognized).
		Value(word).
		Detail("tag width %d is not a known capability", width).
		Build()
}

// at records the list index of a capability error.
func at(err error, index int) error {
	if le, ok := err.(*loadererrors.Error); ok {
		le.Path = []string{"kac", strconv.Itoa(index)}
	}
	return err
}
