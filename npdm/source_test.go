package npdm_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/npdm"
)

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil, zstd.WithSingleSegment(true))
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func lz4Compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lz4 write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lz4 close: %v", err)
	}
	return buf.Bytes()
}

func TestFSSource(t *testing.T) {
	data := buildBlob(t)
	name := func(id uint64) string { return fmt.Sprintf(npdm.DefaultPattern, id) }

	fsys := fstest.MapFS{
		name(1):          {Data: data},
		name(2) + ".zst": {Data: zstdCompress(t, data)},
		name(3) + ".lz4": {Data: lz4Compress(t, data)},
		name(4):          {Mode: fs.ModeDir},
	}
	src := npdm.FSSource{FS: fsys}

	tests := []struct {
		id       uint64
		wantSize int64
	}{
		{1, int64(len(data))},
		{2, -1},
		{3, -1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("program %d", tt.id), func(t *testing.T) {
			s, err := src.Open(tt.id)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			if s.Size() != tt.wantSize {
				t.Errorf("Size = %d, want %d", s.Size(), tt.wantSize)
			}
			got, err := io.ReadAll(s)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("stream content differs from blob")
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := src.Open(99)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		if _, err := src.Open(4); err == nil {
			t.Error("expected error opening a directory")
		}
	})
}

func TestFSSourceThroughCache(t *testing.T) {
	data := buildBlob(t)
	fsys := fstest.MapFS{
		fmt.Sprintf("%x.npdm", testProgram) + ".zst": {Data: zstdCompress(t, data)},
	}
	cache := npdm.NewCache(npdm.FSSource{FS: fsys, Pattern: "%x.npdm"})

	v, err := cache.Load(testProgram)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Header.Name != "testapp" {
		t.Errorf("Name = %q", v.Header.Name)
	}

	small := npdm.NewCache(npdm.FSSource{FS: fsys, Pattern: "%x.npdm"}, npdm.WithCapacity(npdm.HeaderSize))
	if _, err := small.Load(testProgram); !errors.Is(err, loadererrors.ErrOversize) {
		t.Errorf("expected oversize for decompressed stream, got %v", err)
	}
}

func TestFSSourceNoFilesystem(t *testing.T) {
	if _, err := (npdm.FSSource{}).Open(1); err == nil {
		t.Error("expected error without filesystem")
	}
}

func TestFileSource(t *testing.T) {
	data := buildBlob(t)
	path := filepath.Join(t.TempDir(), "main.npdm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cache := npdm.NewCache(npdm.FileSource(path))
	for _, id := range []uint64{1, 2} {
		v, err := cache.Load(id)
		if err != nil {
			t.Fatalf("Load(%d): %v", id, err)
		}
		if v.Identity != id {
			t.Errorf("Identity = %d, want %d", v.Identity, id)
		}
	}

	missing := npdm.NewCache(npdm.FileSource(filepath.Join(t.TempDir(), "absent")))
	if _, err := missing.Load(1); !errors.Is(err, loadererrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemorySourceMissing(t *testing.T) {
	_, err := npdm.MemorySource{}.Open(7)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

// zstdLargeWindow streams data through an encoder declaring window as its
// history size, without a content size in the frame header.
func zstdLargeWindow(t *testing.T, data []byte, window int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithWindowSize(window))
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return buf.Bytes()
}

func TestFSSourceZstdWindowBound(t *testing.T) {
	frame := zstdLargeWindow(t, bytes.Repeat([]byte{'A'}, 1<<20), 1<<29)
	fsys := fstest.MapFS{
		fmt.Sprintf("%x.npdm", testProgram) + ".zst": {Data: frame},
	}
	cache := npdm.NewCache(npdm.FSSource{FS: fsys, Pattern: "%x.npdm"})

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := cache.Load(testProgram)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, loadererrors.ErrOversize) {
		t.Fatalf("expected oversize, got %v", err)
	}
	if !errors.Is(err, npdm.ErrStreamTooLarge) {
		t.Errorf("expected the frame to be rejected by the decoder, got %v", err)
	}
	if delta := after.TotalAlloc - before.TotalAlloc; delta > 64<<20 {
		t.Errorf("load allocated %d bytes for a %d-byte frame", delta, len(frame))
	}
}

func TestFSSourceZstdMaxSize(t *testing.T) {
	data := buildBlob(t)
	padded := append(append([]byte(nil), data...), make([]byte, 4096)...)
	fsys := fstest.MapFS{
		"small-0.zst": {Data: zstdCompress(t, data)},
		"large-0.zst": {Data: zstdCompress(t, padded)},
	}

	tests := []struct {
		name    string
		maxSize int
		wantErr bool
	}{
		{"small", 2048, false},
		{"large", 2048, true},
		{"large", 8192, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s within %d", tt.name, tt.maxSize), func(t *testing.T) {
			s, err := npdm.FSSource{FS: fsys, Pattern: tt.name + "-%d", MaxSize: tt.maxSize}.Open(0)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			_, err = io.ReadAll(s)
			if tt.wantErr {
				if !errors.Is(err, npdm.ErrStreamTooLarge) {
					t.Errorf("expected ErrStreamTooLarge, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ReadAll: %v", err)
			}
		})
	}
}
