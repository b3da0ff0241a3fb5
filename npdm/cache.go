package npdm

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	npdmloader "github.com/wippyai/npdm-loader"
	loadererrors "github.com/wippyai/npdm-loader/errors"
)

// Cache holds the metadata of exactly one program: a fixed-capacity buffer
// and the view parsed from it. A request for another identity discards the
// slot and refills it from the Source.
//
// Cache is safe for concurrent use; a miss holds the lock for the whole
// open, read and parse sequence.
type Cache struct {
	source npdmloader.Source
	log    *zap.Logger
	buf    []byte
	view   View
	stats  Stats
	mu     sync.Mutex
	valid  bool
}

// Stats counts cache outcomes.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Failures uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity sets the buffer capacity in bytes.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.buf = make([]byte, n)
		}
	}
}

// WithCacheLogger sets the cache logger. Defaults to the package logger.
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCache creates an empty cache reading from source.
func NewCache(source npdmloader.Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source: source,
		log:    Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.buf == nil {
		c.buf = make([]byte, DefaultBufferSize)
	}
	return c
}

// Capacity returns the buffer capacity in bytes.
func (c *Cache) Capacity() int {
	return len(c.buf)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Invalidate empties the slot so the next Load re-reads its source.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Load returns the view for identity, parsing it on a miss.
func (c *Cache) Load(identity uint64) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(identity)
}

// Do loads identity and calls fn with the view while holding the cache
// lock, so fn may read view bytes without racing a refill.
func (c *Cache) Do(identity uint64, fn func(View) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.load(identity)
	if err != nil {
		return err
	}
	return fn(v)
}

func (c *Cache) load(identity uint64) (View, error) {
	if c.valid && c.view.Identity == identity {
		c.stats.Hits++
		c.log.Debug("metadata cache hit", zap.Uint64("identity", identity))
		return c.view, nil
	}

	c.stats.Misses++
	c.reset()
	c.log.Debug("metadata cache miss", zap.Uint64("identity", identity))

	view, err := c.parse(identity)
	if err != nil {
		c.stats.Failures++
		c.log.Debug("metadata load failed", zap.Uint64("identity", identity), zap.Error(err))
		return View{}, err
	}

	c.view = view
	c.valid = true
	return view, nil
}

func (c *Cache) parse(identity uint64) (View, error) {
	s, err := c.source.Open(identity)
	if err != nil {
		return View{}, loadererrors.NotFound("metadata", err)
	}
	defer s.Close()

	n, err := c.fill(s)
	if err != nil {
		return View{}, err
	}
	return Parse(c.buf[:n], identity)
}

// fill reads the whole stream into the buffer.
func (c *Cache) fill(s npdmloader.Stream) (int, error) {
	size := s.Size()
	if size > int64(len(c.buf)) {
		return 0, loadererrors.Oversize(size, len(c.buf))
	}

	if size >= 0 {
		n, err := io.ReadFull(s, c.buf[:size])
		if err != nil {
			return 0, loadererrors.ShortRead(n, int(size), err)
		}
		return n, nil
	}

	// Unknown length: fill the buffer, then probe for one more byte.
	n, err := io.ReadFull(s, c.buf)
	switch {
	case err == nil:
		var probe [1]byte
		if m, _ := io.ReadFull(s, probe[:]); m > 0 {
			return 0, loadererrors.Oversize(int64(n+m), len(c.buf))
		}
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, nil
	case errors.Is(err, ErrStreamTooLarge):
		return 0, loadererrors.Wrap(loadererrors.PhaseRead, loadererrors.KindOversize, err, "decompressed metadata exceeds buffer")
	default:
		return 0, loadererrors.Wrap(loadererrors.PhaseRead, loadererrors.KindShortRead, err, "read metadata stream")
	}
}

// reset marks the slot invalid. The identity field is cleared as well, but
// validity is tracked separately so identity 0 is an ordinary key.
func (c *Cache) reset() {
	c.valid = false
	c.view = View{}
}
