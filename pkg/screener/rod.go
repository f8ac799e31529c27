package screener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/root4loot/goutils/log"
)

// RodCapturer captures pages through a single rod-controlled browser. Every
// capture runs in its own incognito browser context.
type RodCapturer struct {
	options Options

	once     sync.Once
	browser  *rod.Browser
	launcher *launcher.Launcher
	err      error

	mutex  sync.Mutex
	closed bool
}

// NewRodCapturer creates a RodCapturer. The browser is launched on first use.
func NewRodCapturer(options Options) *RodCapturer {
	return &RodCapturer{options: options}
}

func (c *RodCapturer) connect() (*rod.Browser, error) {
	c.once.Do(func() {
		path := c.options.BrowserBin
		if path == "" {
			path, _ = launcher.LookPath()
		}

		l := launcher.New().
			Headless(true).
			NoSandbox(true)

		if path != "" {
			l = l.Bin(path)
		}

		if c.options.UserAgent != "" {
			l.Set("user-agent", c.options.UserAgent)
		}

		if !c.options.RespectCertificateErrors {
			l.Set("ignore-certificate-errors", "true")
		}

		if !c.options.UseHTTP2 {
			l.Set("disable-http2", "true")
		}

		controlURL, err := l.Launch()
		if err != nil {
			c.err = fmt.Errorf("launching browser: %w", err)
			return
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			l.Cleanup()
			c.err = fmt.Errorf("connecting to browser: %w", err)
			return
		}

		log.Debugf("Browser launched at %s", controlURL)
		c.browser = browser
		c.launcher = l
	})

	return c.browser, c.err
}

// Capture takes a full-page screenshot of target in a fresh incognito context.
func (c *RodCapturer) Capture(ctx context.Context, target string) (*Result, error) {
	captureURL, err := NormalizeURL(target)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	closed := c.closed
	c.mutex.Unlock()
	if closed {
		return nil, captureError(captureURL, fmt.Errorf("capturer is closed"))
	}

	browser, err := c.connect()
	if err != nil {
		return nil, captureError(captureURL, err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, captureError(captureURL, fmt.Errorf("creating browser context: %w", err))
	}
	defer func() {
		if err := incognito.Close(); err != nil {
			log.Debugf("Could not dispose browser context for %s: %v", captureURL, err)
		}
	}()

	var page *rod.Page
	if c.options.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, captureError(captureURL, fmt.Errorf("opening page: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.options.timeout())
	defer cancel()
	page = page.Context(ctx)

	if c.options.CaptureWidth != 0 && c.options.CaptureHeight != 0 {
		viewport := &proto.EmulationSetDeviceMetricsOverride{
			Width:             c.options.CaptureWidth,
			Height:            c.options.CaptureHeight,
			DeviceScaleFactor: 1,
			Mobile:            false,
		}

		if err := page.SetViewport(viewport); err != nil {
			return nil, captureError(captureURL, fmt.Errorf("setting viewport: %w", err))
		}
	}

	if err := page.Navigate(captureURL); err != nil {
		return nil, captureError(captureURL, fmt.Errorf("navigating: %w", err))
	}

	if err := page.WaitLoad(); err != nil {
		return nil, captureError(captureURL, fmt.Errorf("timed out after %v: %w", c.options.timeout(), err))
	}

	if c.options.DelayBeforeCapture > 0 {
		select {
		case <-time.After(time.Duration(c.options.DelayBeforeCapture) * time.Second):
		case <-ctx.Done():
			return nil, captureError(captureURL, ctx.Err())
		}
	}

	result := &Result{TargetURL: captureURL, LandingURL: captureURL}
	if info, err := page.Info(); err == nil {
		result.LandingURL = info.URL
	}

	result.Image, err = page.Screenshot(true, nil)
	if err != nil {
		return nil, captureError(captureURL, fmt.Errorf("capturing screenshot: %w", err))
	}

	return result, nil
}

// Close shuts the shared browser down. It is safe to call when no capture
// ever launched the browser.
func (c *RodCapturer) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	// no browser may be launched after this point
	c.once.Do(func() {})

	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Cleanup()
	}
	return err
}
