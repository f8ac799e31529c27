package snapdeck

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/snapdeck/pkg/document"
	"github.com/root4loot/snapdeck/pkg/label"
	"github.com/root4loot/snapdeck/pkg/screener"
	"golang.org/x/sync/semaphore"
)

const Version = "0.1.0"

// ErrNoResults signals that a batch produced no document because every
// capture failed or was filtered out.
var ErrNoResults = errors.New("no screenshots were captured")

type Runner struct {
	Options *Options

	// NewCapturer creates the browser-backed capturer shared by one run.
	NewCapturer func(screener.Options) (screener.Capturer, error)
}

// Options contains options for the runner
type Options struct {
	Concurrency        int              `yaml:"concurrency"`         // number of concurrent browsing contexts
	OutputDir          string           `yaml:"output_dir"`          // directory receiving the document
	Attribution        string           `yaml:"attribution"`         // text of the top banner
	FontPath           string           `yaml:"font"`                // TrueType font for the banners
	AvoidDuplicates    bool             `yaml:"avoid_duplicates"`    // drop near-identical screenshots
	DuplicateThreshold int              `yaml:"duplicate_threshold"` // similarity (1-100) considered a duplicate
	Capture            screener.Options `yaml:"capture"`             // options passed to the capturer
	Silence            bool             `yaml:"-"`                   // Silence output
	Verbose            bool             `yaml:"-"`                   // Verbose logging
}

// Outcome is the fate of a single target.
type Outcome struct {
	Index     int // position in the input list
	Target    string
	URL       string
	Err       error
	Duplicate bool
}

// Summary describes a finished batch.
type Summary struct {
	Attempted  int
	Succeeded  int
	Failed     int
	Duplicates int
	Pages      int
	Output     string // path of the written document, empty if none
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// HasOutput reports whether a document was written.
func (s *Summary) HasOutput() bool {
	return s.Output != ""
}

func init() {
	log.Init("snapdeck")
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		Concurrency:        12,
		OutputDir:          "output/screenshots",
		Attribution:        label.DefaultAttribution,
		DuplicateThreshold: 96,
		Capture:            screener.NewOptions(),
	}
}

// NewRunner returns a new runner
func NewRunner() *Runner {
	return &Runner{
		Options:     DefaultOptions(),
		NewCapturer: screener.New,
	}
}

// NewRunnerWithOptions returns a new runner with the specified options
func NewRunnerWithOptions(options Options) *Runner {
	SetLogLevel(&options)
	return &Runner{
		Options:     &options,
		NewCapturer: screener.New,
	}
}

// Run captures every target with bounded concurrency, labels the screenshots
// and writes them, in target order, to one document named after baseName.
//
// Per-target failures never abort the batch. When nothing was captured no
// document is written and the returned error is nil; callers that treat that
// as a failure check Summary.HasOutput. Only setup errors (no capturer,
// unwritable output directory) are returned.
func (r *Runner) Run(ctx context.Context, targets []string, baseName string) (*Summary, error) {
	summary := &Summary{
		Attempted: len(targets),
		Outcomes:  make([]Outcome, len(targets)),
		StartedAt: time.Now(),
	}
	defer func() { summary.FinishedAt = time.Now() }()

	if len(targets) == 0 {
		log.Warn("No targets to capture")
		return summary, nil
	}

	newCapturer := r.NewCapturer
	if newCapturer == nil {
		newCapturer = screener.New
	}

	capturer, err := newCapturer(r.Options.Capture)
	if err != nil {
		return summary, fmt.Errorf("creating capturer: %w", err)
	}

	slots := r.captureAll(ctx, capturer, targets)

	if err := capturer.Close(); err != nil {
		log.Debugf("Closing browser: %v", err)
	}

	images := r.collect(slots, summary)
	summary.Pages = len(images)

	if len(images) == 0 {
		log.Warn(ErrNoResults.Error())
		return summary, nil
	}

	output, err := document.Assemble(r.Options.OutputDir, baseName, images)
	if err != nil {
		return summary, fmt.Errorf("writing document: %w", err)
	}
	summary.Output = output

	log.Infof("Screenshots saved to PDF: %s", output)
	return summary, nil
}

// captureAll launches one task per target and waits for all of them. At most
// Options.Concurrency tasks hold a browsing context at any time. Each task
// writes only to its own slot.
func (r *Runner) captureAll(ctx context.Context, capturer screener.Capturer, targets []string) []slot {
	concurrency := r.Options.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	log.Debugf("Capturing %d targets with concurrency %d", len(targets), concurrency)

	gate := semaphore.NewWeighted(int64(concurrency))
	slots := make([]slot, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// The gate is acquired without ctx so that every target is
			// attempted. Cancellation still reaches the capture itself.
			if err := gate.Acquire(context.Background(), 1); err != nil {
				slots[i] = slot{target: target, err: err}
				return
			}
			defer gate.Release(1)

			slots[i] = r.worker(ctx, capturer, target)
		}()
	}
	wg.Wait()

	return slots
}

// collect walks the slots in target order, applies the duplicate filter and
// fills the summary. It returns the images that make up the document.
func (r *Runner) collect(slots []slot, summary *Summary) []image.Image {
	var kept []screener.Result
	images := make([]image.Image, 0, len(slots))

	for i, s := range slots {
		outcome := Outcome{Index: i, Target: s.target, URL: s.url, Err: s.err}

		if s.err != nil {
			summary.Failed++
			summary.Outcomes[i] = outcome
			continue
		}
		summary.Succeeded++

		if r.Options.AvoidDuplicates {
			duplicate, err := s.result.IsSimilarToAny(kept, r.Options.DuplicateThreshold)
			if err != nil {
				log.Warnf("Could not perform similarity check: %v", err)
			} else if duplicate {
				log.Infof("Duplicate screenshot found for %s. Skipping.", s.url)
				outcome.Duplicate = true
				summary.Duplicates++
				summary.Outcomes[i] = outcome
				continue
			}
			kept = append(kept, *s.result)
		}

		summary.Outcomes[i] = outcome
		images = append(images, s.image)
	}

	return images
}

// SetLogLevel sets the log level based on the options
func SetLogLevel(options *Options) {
	if options.Silence {
		log.SetLevel(log.FatalLevel)
	} else if options.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
