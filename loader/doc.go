// Package loader ties the metadata cache, the capability validator and the
// classifier together into the per-program load step.
//
// A Loader owns one single-slot cache. Load resolves the program's
// metadata, rejects it if any declared capability exceeds the restricted
// set, and derives the program's application flags:
//
//	l := loader.New(npdm.FSSource{FS: os.DirFS("/programs")},
//		loader.WithHost(npdmloader.StaticHost{ExtendedDebugFlags: true}))
//	res, err := l.Load(0x0100000000001000)
//	if err != nil {
//		// refuse to run the program
//	}
//	_ = res.Flags
package loader
