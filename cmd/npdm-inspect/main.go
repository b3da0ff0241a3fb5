// npdm-inspect loads, validates and renders program metadata blobs.
//
// Usage:
//
//	npdm-inspect inspect [--identity N] [--format text|yaml|cbor] [--extended-debug] [--config F] PATH
//	npdm-inspect build --out FILE [--compress none|zstd|lz4] DESCRIPTION.yaml
//	npdm-inspect tui [--identity N] [--extended-debug] [--config F] PATH
//
// PATH is a metadata file or a directory laid out by the configured path
// template. The exit status is 1 when a blob fails to load or validate.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	npdmloader "github.com/wippyai/npdm-loader"
	"github.com/wippyai/npdm-loader/config"
	"github.com/wippyai/npdm-loader/loader"
	"github.com/wippyai/npdm-loader/npdm"
	"github.com/wippyai/npdm-loader/report"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "inspect":
		return runInspect(args[1:], stdout)
	case "build":
		return runBuild(args[1:], stdout)
	case "tui":
		return runTUI(args[1:])
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	}
	usage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  npdm-inspect inspect [--identity N] [--format text|yaml|cbor] [--extended-debug] [--config F] PATH
  npdm-inspect build --out FILE [--compress none|zstd|lz4] DESCRIPTION.yaml
  npdm-inspect tui [--identity N] [--extended-debug] [--config F] PATH
`)
}

// loadOptions are the flags shared by inspect and tui.
type loadOptions struct {
	identity      string
	configPath    string
	logLevel      string
	extendedDebug bool
}

func (o *loadOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.identity, "identity", "", "program identity (default: program id declared in a file PATH)")
	fs.StringVar(&o.configPath, "config", "", "config file (default: $"+config.EnvVar+" when set)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	fs.BoolVar(&o.extendedDebug, "extended-debug", false, "host supports extended debug flags")
}

// session is a loader ready to resolve one identity.
type session struct {
	loader   *loader.Loader
	log      *zap.Logger
	identity uint64
}

func (o *loadOptions) open(fs *pflag.FlagSet, path string) (*session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log, err := cfg.Log.Logger()
	if err != nil {
		return nil, err
	}

	host := npdmloader.Host(cfg.Host)
	if fs.Changed("extended-debug") {
		host = npdmloader.StaticHost{ExtendedDebugFlags: o.extendedDebug}
	}

	source, declaredID, err := openSource(path, cfg.Metadata.Path, cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	id := declaredID
	if o.identity != "" {
		if id, err = strconv.ParseUint(o.identity, 0, 64); err != nil {
			return nil, fmt.Errorf("invalid --identity %q: %w", o.identity, err)
		}
	} else if declaredID == 0 && isDir(path) {
		return nil, fmt.Errorf("--identity is required when PATH is a directory")
	}

	l := loader.New(source,
		loader.WithBufferSize(cfg.BufferSize),
		loader.WithHost(host),
		loader.WithLogger(log))
	return &session{loader: l, log: log, identity: id}, nil
}

// config loads --config, then $NPDM_LOADER_CONFIG, then the defaults with
// warn-level logging.
func (o *loadOptions) config() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	if os.Getenv(config.EnvVar) != "" {
		return config.LoadFromEnv()
	}
	cfg := config.Default()
	cfg.Log.Level = "warn"
	return cfg, nil
}

// openSource returns a source for path. For a single file it also returns
// the program id declared in it.
func openSource(path, pattern string, maxSize int) (npdmloader.Source, uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return npdm.FSSource{FS: os.DirFS(path), Pattern: pattern, MaxSize: maxSize}, 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var id uint64
	if v, err := npdm.Parse(data, 0); err == nil {
		id = v.Declared.ProgramID
	}
	return npdm.FileSource(path), id, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func runInspect(args []string, stdout io.Writer) error {
	var (
		opts   loadOptions
		format string
	)
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	opts.addFlags(fs)
	fs.StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, yaml or cbor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect takes exactly one PATH")
	}

	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	s, err := opts.open(fs, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.log.Sync()

	res, loadErr := s.loader.Load(s.identity)
	if res == nil {
		return loadErr
	}
	if err := report.Write(stdout, report.New(res, loadErr), f); err != nil {
		return err
	}
	return loadErr
}
