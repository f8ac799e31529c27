package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/snapdeck"
	"github.com/root4loot/snapdeck/internal/config"
	"github.com/root4loot/snapdeck/internal/history"
	"github.com/root4loot/snapdeck/internal/report"
	"github.com/root4loot/snapdeck/pkg/resolver"
	"github.com/root4loot/snapdeck/pkg/screener"
	"github.com/root4loot/snapdeck/pkg/targets"
	"github.com/spf13/cobra"
)

// newCapturer is replaced in tests.
var newCapturer = screener.New

type rootFlags struct {
	configPath string
	verbose    bool
	silence    bool

	url        string
	subdomains string
	urlfile    string

	outdir             string
	concurrency        int
	timeout            int
	width              int
	height             int
	userAgent          string
	engine             string
	stealth            bool
	useHTTP2           bool
	respectCertErr     bool
	delay              int
	attribution        string
	font               string
	avoidDuplicates    bool
	duplicateThreshold int
	resolverKind       string
	nameserver         string
	wordlist           string
	report             bool
	history            bool
	failOnEmpty        bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "snapdeck",
		Short: "Screenshot web pages into a single PDF",
		Long: `Snapdeck visits every target in headless Chrome, captures a full-page
screenshot, labels it with its URL and compiles all screenshots into one PDF.

Targets come from exactly one of --url, --subdomains or --urlfile.`,
		Version:       snapdeck.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.url == "" && f.subdomains == "" && f.urlfile == "" {
				return cmd.Usage()
			}
			return runCapture(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "configuration file (default $XDG_CONFIG_HOME/snapdeck/config.yaml)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&f.silence, "silence", "s", false, "suppress all output except fatal errors")

	fs := cmd.Flags()
	fs.StringVar(&f.url, "url", "", "capture a single URL")
	fs.StringVar(&f.subdomains, "subdomains", "", "capture every discovered subdomain of a domain")
	fs.StringVar(&f.urlfile, "urlfile", "", "capture every URL listed in a file, one per line")
	cmd.MarkFlagsMutuallyExclusive("url", "subdomains", "urlfile")

	fs.StringVarP(&f.outdir, "outdir", "o", defaults.OutputDir, "directory receiving the PDF")
	fs.IntVarP(&f.concurrency, "concurrency", "c", defaults.Concurrency, "number of concurrent browsing contexts")
	fs.IntVar(&f.timeout, "timeout", defaults.Capture.Timeout, "navigation timeout in seconds")
	fs.IntVar(&f.width, "width", defaults.Capture.CaptureWidth, "viewport width")
	fs.IntVar(&f.height, "height", defaults.Capture.CaptureHeight, "viewport height")
	fs.StringVar(&f.userAgent, "user-agent", defaults.Capture.UserAgent, "user agent")
	fs.StringVar(&f.engine, "engine", defaults.Capture.Engine, "browser driver (rod|chromedp)")
	fs.BoolVar(&f.stealth, "stealth", defaults.Capture.Stealth, "apply stealth evasions (rod only)")
	fs.BoolVar(&f.useHTTP2, "use-http2", defaults.Capture.UseHTTP2, "allow HTTP/2")
	fs.BoolVar(&f.respectCertErr, "respect-cert-err", defaults.Capture.RespectCertificateErrors, "fail on certificate errors")
	fs.IntVar(&f.delay, "delay", defaults.Capture.DelayBeforeCapture, "seconds to wait after load before capturing")
	fs.StringVar(&f.attribution, "attribution", defaults.Attribution, "text of the top banner")
	fs.StringVar(&f.font, "font", defaults.FontPath, "TrueType font for the banners")
	fs.BoolVar(&f.avoidDuplicates, "avoid-duplicates", defaults.AvoidDuplicates, "skip near-identical screenshots")
	fs.IntVar(&f.duplicateThreshold, "duplicate-threshold", defaults.DuplicateThreshold, "similarity (1-100) considered a duplicate")
	fs.StringVar(&f.resolverKind, "resolver", defaults.Resolver.Kind, "subdomain resolver (assetfinder|dns)")
	fs.StringVar(&f.nameserver, "nameserver", defaults.Resolver.Nameserver, "nameserver for the dns resolver")
	fs.StringVar(&f.wordlist, "wordlist", defaults.Resolver.Wordlist, "labels for the dns resolver, one per line")
	fs.BoolVar(&f.report, "report", defaults.Report, "write a Markdown report next to the PDF")
	fs.BoolVar(&f.history, "history", defaults.History.Enabled, "record the run in the history database")
	fs.BoolVar(&f.failOnEmpty, "fail-on-empty", defaults.FailOnEmpty, "exit 1 when nothing was captured")

	cmd.AddCommand(NewHistoryCmd(f))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig merges the configuration file, the environment and the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}

	set("outdir", func() { cfg.OutputDir = f.outdir })
	set("concurrency", func() { cfg.Concurrency = f.concurrency })
	set("timeout", func() { cfg.Capture.Timeout = f.timeout })
	set("width", func() { cfg.Capture.CaptureWidth = f.width })
	set("height", func() { cfg.Capture.CaptureHeight = f.height })
	set("user-agent", func() { cfg.Capture.UserAgent = f.userAgent })
	set("engine", func() { cfg.Capture.Engine = f.engine })
	set("stealth", func() { cfg.Capture.Stealth = f.stealth })
	set("use-http2", func() { cfg.Capture.UseHTTP2 = f.useHTTP2 })
	set("respect-cert-err", func() { cfg.Capture.RespectCertificateErrors = f.respectCertErr })
	set("delay", func() { cfg.Capture.DelayBeforeCapture = f.delay })
	set("attribution", func() { cfg.Attribution = f.attribution })
	set("font", func() { cfg.FontPath = f.font })
	set("avoid-duplicates", func() { cfg.AvoidDuplicates = f.avoidDuplicates })
	set("duplicate-threshold", func() { cfg.DuplicateThreshold = f.duplicateThreshold })
	set("resolver", func() { cfg.Resolver.Kind = f.resolverKind })
	set("nameserver", func() { cfg.Resolver.Nameserver = f.nameserver })
	set("wordlist", func() { cfg.Resolver.Wordlist = f.wordlist })
	set("report", func() { cfg.Report = f.report })
	set("history", func() { cfg.History.Enabled = f.history })
	set("fail-on-empty", func() { cfg.FailOnEmpty = f.failOnEmpty })

	cfg.Verbose = f.verbose
	cfg.Silence = f.silence

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCapture(cmd *cobra.Command, f *rootFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	snapdeck.SetLogLevel(&cfg.Options)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	source, err := buildSource(ctx, cfg, f)
	if err != nil {
		return err
	}
	log.Infof("Capturing %d target(s) into %s", len(source.Targets), source.Name)

	runner := snapdeck.NewRunnerWithOptions(cfg.Options)
	runner.NewCapturer = newCapturer

	summary, err := runner.Run(ctx, source.Targets, source.Name)
	if err != nil {
		return err
	}

	if cfg.Report {
		if summary.HasOutput() {
			path, err := report.WriteFile(summary.Output, source.Name, summary)
			if err != nil {
				log.Errorf("Could not write report: %v", err)
			} else {
				log.Infof("Report saved: %s", path)
			}
		} else {
			log.Debug("No document written, skipping report")
		}
	}

	if cfg.History.Enabled {
		recordHistory(ctx, cfg, source, summary)
	}

	if cfg.FailOnEmpty && !summary.HasOutput() {
		return snapdeck.ErrNoResults
	}
	return nil
}

func buildSource(ctx context.Context, cfg *config.Config, f *rootFlags) (targets.Source, error) {
	switch {
	case f.url != "":
		return targets.FromURL(f.url), nil
	case f.urlfile != "":
		return targets.FromFile(f.urlfile)
	default:
		rc, err := cfg.ResolverSettings()
		if err != nil {
			return targets.Source{}, err
		}
		r, err := resolver.New(rc)
		if err != nil {
			return targets.Source{}, err
		}
		return targets.FromResolver(ctx, r, f.subdomains), nil
	}
}

// recordHistory stores the run. Failures are logged; the document is already
// written at this point.
func recordHistory(ctx context.Context, cfg *config.Config, source targets.Source, summary *snapdeck.Summary) {
	db, err := history.Open(cfg.History.Dir)
	if err != nil {
		log.Errorf("Could not open history: %v", err)
		return
	}
	defer db.Close()

	id, err := db.RecordRun(context.WithoutCancel(ctx), source.Name, source.Mode, summary)
	if err != nil {
		log.Errorf("Could not record run: %v", err)
		return
	}
	log.Debugf("Recorded run %d in %s", id, db.Path())
}
