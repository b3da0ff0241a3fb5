// Package npdm parses program metadata blobs and caches the last parsed one.
//
// A blob starts with a fixed header that locates two sections: the declared
// section, describing what the program asks for, and the restricted section,
// describing what the trust anchor permits. Each section holds three
// variable regions: file access, service access and kernel capabilities.
//
// # Parsing
//
// Parse validates the layout and returns a View:
//
//	view, err := npdm.Parse(data, programID)
//	if err != nil {
//	    // errors.Is(err, loadererrors.ErrMalformed)
//	}
//	caps := view.DeclaredKernelCapabilities()
//
// Checks run in a fixed order and stop at the first failure: header size,
// header magic, mmu flags, declared section bounds and magic, the declared
// sub-regions, then the same for the restricted section. Every failure is
// a malformed-metadata error whose Path names the failing check.
//
// # Caching
//
// Cache keeps exactly one program. Load returns the cached view when the
// identity matches and otherwise re-reads the Source into a fixed buffer:
//
//	cache := npdm.NewCache(npdm.FSSource{FS: os.DirFS(root)})
//	view, err := cache.Load(programID)
//
// Streams larger than the buffer fail with an oversize error. Any failure
// leaves the slot empty so the next call starts from scratch.
//
// # Sources
//
// FSSource reads "<identity>/main.npdm" style paths from an fs.FS and falls
// back to ".zst" and ".lz4" compressed variants. MemorySource and SourceFunc
// cover tests and custom transports.
//
// # Building
//
// Builder produces well-formed blobs for tests and tooling:
//
//	b := &npdm.Builder{Name: "app", Declared: npdm.Access{KernelCapabilities: caps}}
//	data, err := b.Build()
package npdm
