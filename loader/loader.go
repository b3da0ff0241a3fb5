package loader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	npdmloader "github.com/wippyai/npdm-loader"
	"github.com/wippyai/npdm-loader/config"
	loadererrors "github.com/wippyai/npdm-loader/errors"
	"github.com/wippyai/npdm-loader/kac"
	"github.com/wippyai/npdm-loader/npdm"
)

// Result is an accepted program's metadata. The view owns its bytes.
// Results of loads that hit the same cached metadata share the view bytes
// and capability slices; treat them as read-only.
type Result struct {
	View       npdm.View
	Declared   []uint32
	Restricted []uint32
	Flags      kac.AppFlags
}

// Loader resolves, validates and classifies program metadata.
// Thread-safe; loads are serialized by the underlying cache.
type Loader struct {
	cache *npdm.Cache
	host  npdmloader.Host
	log   *zap.Logger
	// last is the detached copy of the cached metadata. Only touched
	// inside cache.Do.
	last *snapshot
}

type snapshot struct {
	view       npdm.View
	declared   []uint32
	restricted []uint32
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	host       npdmloader.Host
	log        *zap.Logger
	bufferSize int
}

// WithBufferSize sets the metadata cache capacity.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithHost sets the host capability provider. Defaults to a host without
// extended debug flags.
func WithHost(h npdmloader.Host) Option {
	return func(o *options) { o.host = h }
}

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a loader with its own cache reading from source.
func New(source npdmloader.Source, opts ...Option) *Loader {
	o := options{
		host:       npdmloader.StaticHost{},
		log:        Logger(),
		bufferSize: npdm.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.host == nil {
		o.host = npdmloader.StaticHost{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	return &Loader{
		cache: npdm.NewCache(source, npdm.WithCapacity(o.bufferSize), npdm.WithCacheLogger(o.log)),
		host:  o.host,
		log:   o.log,
	}
}

// FromConfig creates a loader reading metadata from cfg.Metadata.Root.
func FromConfig(cfg *config.Config, opts ...Option) *Loader {
	root := cfg.Metadata.Root
	if root == "" {
		root = "."
	}
	source := npdm.FSSource{
		FS:      os.DirFS(root),
		Pattern: cfg.Metadata.Path,
		MaxSize: cfg.BufferSize,
	}
	base := []Option{
		WithBufferSize(cfg.BufferSize),
		WithHost(cfg.Host),
	}
	return New(source, append(base, opts...)...)
}

// Cache returns the loader's metadata cache.
func (l *Loader) Cache() *npdm.Cache {
	return l.cache
}

// Host returns the host capability provider.
func (l *Loader) Host() npdmloader.Host {
	return l.host
}

// Load resolves the metadata of identity and validates its declared
// capabilities against its restricted ones.
//
// On a capability violation the partially filled Result (without Flags) is
// returned together with the error for diagnostics. Any error means the
// program must not run.
func (l *Loader) Load(identity uint64) (*Result, error) {
	var res *Result
	err := l.cache.Do(identity, func(v npdm.View) error {
		snap := l.snapshot(v)
		res = &Result{
			View:       snap.view,
			Declared:   snap.declared,
			Restricted: snap.restricted,
		}
		return nil
	})
	if err != nil {
		l.log.Warn("metadata load failed", zap.String("identity", formatIdentity(identity)), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("identity", formatIdentity(identity)),
		zap.String("digest", hex.EncodeToString(res.View.Digest[:8])),
	}

	if err := kac.Validate(res.Restricted, res.Declared); err != nil {
		var le *loadererrors.Error
		if errors.As(err, &le) {
			fields = append(fields,
				zap.String("category", le.Category),
				zap.String("reason", string(le.Reason)),
				zap.String("code", fmt.Sprintf("%#x", le.Code())))
		}
		l.log.Warn("capability rejected", append(fields, zap.Error(err))...)
		return res, err
	}

	// TODO: enforce production/development consistency against
	// Restricted.Flags once the policy for mixed-mode hosts is defined;
	// every flag value is currently accepted.
	if !res.View.Restricted.IsProduction() {
		l.log.Debug("restricted section not marked production", fields...)
	}

	res.Flags = kac.Classify(res.Declared, l.host)
	l.log.Info("program metadata accepted", append(fields, zap.Stringer("flags", res.Flags))...)
	return res, nil
}

// snapshot returns the detached copy of v, copying the blob only when the
// cache slot holds different metadata than the previous load.
func (l *Loader) snapshot(v npdm.View) *snapshot {
	if l.last != nil && l.last.view.Identity == v.Identity && l.last.view.Digest == v.Digest {
		return l.last
	}
	l.last = &snapshot{
		view:       v.Detach(),
		declared:   v.DeclaredKernelCapabilities(),
		restricted: v.RestrictedKernelCapabilities(),
	}
	return l.last
}

func formatIdentity(id uint64) string {
	return fmt.Sprintf("%016x", id)
}
