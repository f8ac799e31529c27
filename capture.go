package snapdeck

import (
	"context"
	"fmt"
	"image"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/snapdeck/pkg/label"
	"github.com/root4loot/snapdeck/pkg/screener"
)

// slot holds what one capture task produced.
type slot struct {
	target string
	url    string
	result *screener.Result
	image  image.Image
	err    error
}

// worker captures and labels a single target. Failures are logged and
// recorded in the slot.
func (r *Runner) worker(ctx context.Context, capturer screener.Capturer, target string) slot {
	s := slot{target: target, url: target}

	if u, err := screener.NormalizeURL(target); err == nil {
		s.url = u
	}

	log.Infof("Visiting: %s", s.url)

	result, err := capturer.Capture(ctx, target)
	if err != nil {
		s.err = err
		handleCaptureError(s.url, err)
		return s
	}
	if result == nil || len(result.Image) == 0 {
		s.err = fmt.Errorf("capture %s: empty screenshot", s.url)
		log.Errorf("Failed to capture %s: empty screenshot", s.url)
		return s
	}

	labeler := label.Labeler{
		Attribution: r.Options.Attribution,
		FontPath:    r.Options.FontPath,
	}

	img, err := labeler.LabelPNG(result.Image, s.url)
	if err != nil {
		s.err = fmt.Errorf("label %s: %w", s.url, err)
		log.Errorf("Error adding text to image for %s: %v", s.url, err)
		return s
	}

	s.result = result
	s.image = img
	log.Debugf("Captured %s (landed on %s)", s.url, result.LandingURL)
	return s
}

func handleCaptureError(target string, err error) {
	switch {
	case screener.IsDNSError(err):
		log.Warnf("Failed to capture %s: DNS lookup failed", target)
	case screener.IsTimeout(err):
		log.Warnf("Failed to capture %s: timed out", target)
	default:
		log.Errorf("Failed to capture %s: %s", target, screener.RootCause(err))
	}
}
