package screener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyTarget is returned when Capture is called with a blank target.
var ErrEmptyTarget = errors.New("empty target")

// Engines that can drive the shared browser.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// Capturer renders a target into a full-page screenshot.
//
// Implementations share one browser process between calls and open an
// isolated browsing context per call. Close releases the browser and must be
// called once after every Capture has returned.
type Capturer interface {
	Capture(ctx context.Context, target string) (*Result, error)
	Close() error
}

// Result contains the result of a screenshot capture.
type Result struct {
	TargetURL  string
	LandingURL string
	Image      Image
}

// Image holds PNG encoded screenshot data.
type Image []byte

// Options contains the options for capturing screenshots.
type Options struct {
	Engine                   string `yaml:"engine"`                     // rod or chromedp
	CaptureHeight            int    `yaml:"capture_height"`             // Height of the viewport
	CaptureWidth             int    `yaml:"capture_width"`              // Width of the viewport
	Timeout                  int    `yaml:"timeout"`                    // Timeout for each capture (seconds)
	RespectCertificateErrors bool   `yaml:"respect_certificate_errors"` // Respect certificate errors
	UseHTTP2                 bool   `yaml:"use_http2"`                  // Use HTTP2
	UserAgent                string `yaml:"user_agent"`                 // User agent
	DelayBeforeCapture       int    `yaml:"delay_before_capture"`       // Delay before capture (seconds)
	Stealth                  bool   `yaml:"stealth"`                    // Apply stealth evasions (rod only)
	BrowserBin               string `yaml:"browser_bin"`                // Browser binary, empty to auto-detect
}

// NewOptions returns an Options struct initialized with default values.
func NewOptions() Options {
	return Options{
		Engine:        EngineRod,
		CaptureHeight: 768,
		CaptureWidth:  1366,
		Timeout:       60,
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	}
}

// New returns the Capturer for the configured engine. The browser is not
// launched until the first capture.
func New(options Options) (Capturer, error) {
	switch options.Engine {
	case "", EngineRod:
		return NewRodCapturer(options), nil
	case EngineChromedp:
		return NewChromedpCapturer(options), nil
	default:
		return nil, fmt.Errorf("unknown capture engine %q", options.Engine)
	}
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return time.Duration(NewOptions().Timeout) * time.Second
	}
	return time.Duration(o.Timeout) * time.Second
}

// NormalizeURL trims the target and prepends http:// when no scheme is given.
func NormalizeURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", ErrEmptyTarget
	}

	if !hasScheme(target) {
		target = "http://" + target
	}

	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", target, err)
	}

	return target, nil
}

// hasScheme checks if the target has a scheme
func hasScheme(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
