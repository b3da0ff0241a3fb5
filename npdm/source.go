package npdm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	npdmloader "github.com/wippyai/npdm-loader"
)

// DefaultPattern lays metadata out as one directory per program.
const DefaultPattern = "%016x/main.npdm"

// ErrStreamTooLarge reports a compressed stream whose frame needs more
// memory than the source allows.
var ErrStreamTooLarge = errors.New("npdm: compressed stream exceeds size limit")

// Compressed variants tried, in order, when the plain file is absent.
var compressedVariants = []struct {
	ext  string
	open func(f fs.File, limit int) (npdmloader.Stream, error)
}{
	{".zst", openZstd},
	{".lz4", openLZ4},
}

// FSSource opens metadata from a filesystem. Pattern is a fmt template
// receiving the identity; an empty Pattern uses DefaultPattern.
//
// MaxSize bounds the decoder memory of compressed variants and should match
// the capacity of the cache reading from the source. Zero uses
// DefaultBufferSize.
type FSSource struct {
	FS      fs.FS
	Pattern string
	MaxSize int
}

// Open implements npdmloader.Source.
func (s FSSource) Open(identity uint64) (npdmloader.Stream, error) {
	if s.FS == nil {
		return nil, errors.New("npdm: FSSource has no filesystem")
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	name := fmt.Sprintf(pattern, identity)

	f, err := s.FS.Open(name)
	if err == nil {
		return newFileStream(f)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	for _, v := range compressedVariants {
		cf, cerr := s.FS.Open(name + v.ext)
		if cerr != nil {
			continue
		}
		return v.open(cf, s.limit())
	}
	return nil, err
}

func (s FSSource) limit() int {
	if s.MaxSize > 0 {
		return s.MaxSize
	}
	return DefaultBufferSize
}

// FileSource returns a Source that opens path for every identity.
func FileSource(path string) npdmloader.Source {
	return SourceFunc(func(uint64) (npdmloader.Stream, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return newFileStream(f)
	})
}

// SourceFunc adapts a function to npdmloader.Source.
type SourceFunc func(identity uint64) (npdmloader.Stream, error)

// Open implements npdmloader.Source.
func (f SourceFunc) Open(identity uint64) (npdmloader.Stream, error) {
	return f(identity)
}

// MemorySource serves blobs from memory.
type MemorySource map[uint64][]byte

// Open implements npdmloader.Source.
func (m MemorySource) Open(identity uint64) (npdmloader.Stream, error) {
	data, ok := m[identity]
	if !ok {
		return nil, fmt.Errorf("program %016x: %w", identity, fs.ErrNotExist)
	}
	return NewBytesStream(data), nil
}

// NewBytesStream wraps data as a Stream of known size.
func NewBytesStream(data []byte) npdmloader.Stream {
	return &stream{Reader: bytes.NewReader(data), size: int64(len(data))}
}

type stream struct {
	io.Reader
	closers []func() error
	size    int64
}

func (s *stream) Size() int64 {
	return s.size
}

func (s *stream) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newFileStream(f fs.File) (npdmloader.Stream, error) {
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", info.Name())
	}
	return &stream{Reader: f, size: info.Size(), closers: []func() error{f.Close}}, nil
}

// openZstd caps the frame window and decoded size at limit so a small frame
// cannot declare a large history buffer.
func openZstd(f fs.File, limit int) (npdmloader.Stream, error) {
	bound := uint64(max(limit, zstd.MinWindowSize))
	dec, err := zstd.NewReader(f,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(bound),
		zstd.WithDecoderMaxMemory(bound))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &stream{
		Reader: zstdLimitReader{dec},
		size:   -1,
		closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		},
	}, nil
}

type zstdLimitReader struct {
	dec *zstd.Decoder
}

func (r zstdLimitReader) Read(p []byte) (int, error) {
	n, err := r.dec.Read(p)
	if errors.Is(err, zstd.ErrWindowSizeExceeded) || errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		err = fmt.Errorf("%w: %w", ErrStreamTooLarge, err)
	}
	return n, err
}

func openLZ4(f fs.File, _ int) (npdmloader.Stream, error) {
	return &stream{Reader: lz4.NewReader(f), size: -1, closers: []func() error{f.Close}}, nil
}
