// Command ivanalyse loads I-V experiments and groups, compares them with a
// reference and exports the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/ivcurve/internal/config"
	"github.com/banshee-data/ivcurve/internal/fsutil"
	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/iv/cache"
	"github.com/banshee-data/ivcurve/internal/iv/fit"
	"github.com/banshee-data/ivcurve/internal/iv/session"
	"github.com/banshee-data/ivcurve/internal/monitoring"
	"github.com/banshee-data/ivcurve/internal/timeutil"
	"github.com/banshee-data/ivcurve/internal/version"
)

type options struct {
	configPath string
	cache      string
	dbPath     string
	discover   bool
	group      string
	reference  string
	exclude    string
	fitted     bool
	xlsx       string
	csvPrefix  string
	plotDir    string
	chart      string
	chartKey   string
	verbose    bool
	version    bool
	paths      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("ivanalyse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ivanalyse [flags] <experiment folder | group file>...\n")
		fmt.Fprintf(stderr, "       ivanalyse -group out%s [flags] <trace file>...\n\n", bundle.GroupExt)
		fs.PrintDefaults()
	}

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Analysis config JSON (default "+config.DefaultConfigPath+" if present)")
	fs.StringVar(&o.cache, "cache", "", "Snapshot backend: file, sqlite or none (overrides config)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite snapshot database path (overrides config)")
	fs.BoolVar(&o.discover, "discover", false, "Treat arguments as roots and load every experiment and group below them")
	fs.StringVar(&o.group, "group", "", "Create a group file from the trace files given as arguments")
	fs.StringVar(&o.reference, "reference", "", "Bundle path to compare the others against")
	fs.StringVar(&o.exclude, "exclude", "", "Comma separated path:trace pairs to exclude, e.g. exp1:IV_Curve_3")
	fs.BoolVar(&o.fitted, "fitted", false, "Report and export fitted instead of direct values")
	fs.StringVar(&o.xlsx, "xlsx", "", "Write an XLSX workbook to this path")
	fs.StringVar(&o.csvPrefix, "csv", "", "Write <prefix>_summary.csv and <prefix>_traces.csv")
	fs.StringVar(&o.plotDir, "plot", "", "Write I-V and P-V PNG plots into this directory")
	fs.StringVar(&o.chart, "chart", "", "Write an HTML efficiency chart to this path")
	fs.StringVar(&o.chartKey, "chart-key", "pmax", "Characteristic shown by -chart (voc, isc, pmax, ff, tavg, i1avg..i4avg)")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.paths = fs.Args()
	if !o.version && len(o.paths) == 0 {
		fs.Usage()
		return nil, errors.New("no input paths")
	}
	return o, nil
}

func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.DefaultAnalysisConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadAnalysisConfig(path)
}

func fitOptions(cfg *config.AnalysisConfig) fit.Options {
	return fit.Options{
		IscPoints:     cfg.GetIscFitPoints(),
		VocPoints:     cfg.GetVocFitPoints(),
		PmaxPoints:    cfg.GetPmaxFitPoints(),
		I0Seed:        cfg.GetDiodeI0Seed(),
		VtSeed:        cfg.GetDiodeVtSeed(),
		MaxIterations: cfg.GetMaxFitIterations(),
	}
}

// openStore returns the snapshot store selected by backend and a closer.
func openStore(fsys fsutil.FileSystem, backend, dbPath string) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case config.CacheBackendFile:
		return cache.NewFileStore(fsys), noop, nil
	case config.CacheBackendNone:
		return cache.Disabled{}, noop, nil
	case config.CacheBackendSQLite:
		st, err := cache.OpenSQLite(dbPath, timeutil.RealClock{})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, "ivanalyse", version.String())
		return nil
	}
	monitoring.SetVerbose(o.verbose)

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	backend, dbPath := cfg.GetCacheBackend(), cfg.GetCacheDBPath()
	if o.cache != "" {
		backend = o.cache
	}
	if o.dbPath != "" {
		dbPath = o.dbPath
	}

	fsys := fsutil.OSFileSystem{}
	store, closeStore, err := openStore(fsys, backend, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	loader := &bundle.Loader{
		FS:            fsys,
		Store:         store,
		Settings:      bundle.FileSettings{FS: fsys},
		SkipBadTraces: cfg.GetSkipBadTraces(),
	}
	if cfg.GetFitEnabled() {
		loader.Refiner = fit.New(fitOptions(cfg))
	}
	s := session.New(loader, cfg.GetLoadConcurrency())

	if err := populate(ctx, s, fsys, o); err != nil {
		if len(s.Bundles()) == 0 {
			return err
		}
		// partial loads are reported and the rest is still analysed
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	if err := applyExclusions(s, o.exclude); err != nil {
		return err
	}
	if o.reference != "" {
		if err := s.SetReference(o.reference); err != nil {
			return err
		}
	}

	if err := report(stdout, s.Bundles(), o.fitted); err != nil {
		return err
	}
	if err := writeOutputs(s.Bundles(), o); err != nil {
		return err
	}
	return s.Close()
}

func populate(ctx context.Context, s *session.Session, fsys fsutil.FileSystem, o *options) error {
	if o.group != "" {
		_, err := s.AddGroup(o.group, o.paths)
		return err
	}
	if !o.discover {
		return s.Add(ctx, o.paths...)
	}
	folders, err := bundle.DiscoverExperiments(fsys, o.paths)
	if err != nil {
		return err
	}
	groups, err := bundle.DiscoverGroups(fsys, o.paths)
	if err != nil {
		return err
	}
	monitoring.Logf("[discover] %d experiments, %d groups", len(folders), len(groups))
	return s.Add(ctx, append(folders, groups...)...)
}

// applyExclusions parses "path:key" pairs. The key follows the last colon
// so paths may contain colons.
func applyExclusions(s *session.Session, list string) error {
	if list == "" {
		return nil
	}
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		i := strings.LastIndex(pair, ":")
		if i <= 0 || i == len(pair)-1 {
			return fmt.Errorf("invalid exclusion %q, want path:trace", pair)
		}
		if err := s.SetIncluded(pair[:i], pair[i+1:], false); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("ivanalyse: %v", err)
	}
}
