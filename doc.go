// Package npdmloader validates program metadata before a process is allowed to run.
//
// A program package carries a metadata blob with two capability sets: the
// declared set the program asks for and a restricted set anchored by a trust
// mechanism. The loader parses the blob, checks every declared capability
// against the restricted set and derives the flags used to pick an execution
// profile.
//
// # Architecture Overview
//
//	npdmloader/          Root package with the Source, Stream and Host collaborator interfaces
//	├── npdm/            Metadata layout, parser, single-slot cache, sources and builder
//	├── kac/             Kernel capability words: decoding, validation, classification
//	├── loader/          Parse, validate and classify in one call
//	├── config/          YAML configuration
//	├── report/          Inspection reports (text, YAML, CBOR)
//	├── errors/          Structured error types and loader result codes
//	└── cmd/npdm-inspect Developer tool for inspecting and building metadata
//
// # Quick Start
//
//	src := npdm.FSSource{FS: os.DirFS("/packages"), Pattern: npdm.DefaultPattern}
//	ldr := loader.New(src, loader.WithHost(npdmloader.StaticHost{ExtendedDebugFlags: true}))
//
//	res, err := ldr.Load(0x0100000000001000)
//	if err != nil {
//	    log.Fatal(err) // refuse to run the program
//	}
//	fmt.Printf("flags %#x\n", res.Flags)
//
// # Thread Safety
//
// Loader and npdm.Cache are safe for concurrent use. A cache miss holds the
// cache lock for the whole read-and-parse sequence. A View aliases the cache
// buffer and is only valid until the cache is refilled for another identity;
// use Cache.Do or the slices copied into loader.Result when that matters.
package npdmloader
