package screener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

// ChromedpCapturer captures pages through a single chromedp-allocated browser.
// Every capture gets its own browser context.
type ChromedpCapturer struct {
	options Options

	once          sync.Once
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	err           error

	mutex  sync.Mutex
	closed bool
}

// NewChromedpCapturer creates a ChromedpCapturer. The browser is allocated on
// first use.
func NewChromedpCapturer(options Options) *ChromedpCapturer {
	return &ChromedpCapturer{options: options}
}

// execAllocatorOptions returns the allocator flags derived from the options.
func (c *ChromedpCapturer) execAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	if c.options.BrowserBin != "" {
		opts = append(opts, chromedp.ExecPath(c.options.BrowserBin))
	}

	if c.options.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.options.UserAgent))
	}

	if !c.options.RespectCertificateErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	if !c.options.UseHTTP2 {
		opts = append(opts, chromedp.Flag("disable-http2", true))
	}

	return opts
}

func (c *ChromedpCapturer) connect() (context.Context, error) {
	c.once.Do(func() {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), c.execAllocatorOptions()...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

		// An empty run starts the browser so that later contexts can attach to it.
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			c.err = fmt.Errorf("launching browser: %w", err)
			return
		}

		log.Debug("Browser allocated")
		c.browserCtx = browserCtx
		c.cancelBrowser = cancelBrowser
		c.cancelAlloc = cancelAlloc
	})

	return c.browserCtx, c.err
}

// Capture takes a full-page screenshot of target in a fresh browser context.
func (c *ChromedpCapturer) Capture(ctx context.Context, target string) (*Result, error) {
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

	browserCtx, err := c.connect()
	if err != nil {
		return nil, captureError(captureURL, err)
	}

	// Cancelling tabCtx disposes of the browser context it created.
	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, c.options.timeout())
	defer cancel()

	result := &Result{TargetURL: captureURL}

	tasks := chromedp.Tasks{}
	if c.options.CaptureWidth != 0 && c.options.CaptureHeight != 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(c.options.CaptureWidth), int64(c.options.CaptureHeight)))
	}

	tasks = append(tasks, chromedp.Navigate(captureURL))

	if c.options.DelayBeforeCapture > 0 {
		tasks = append(tasks, chromedp.Sleep(time.Duration(c.options.DelayBeforeCapture)*time.Second))
	}

	var image []byte
	tasks = append(tasks,
		chromedp.Location(&result.LandingURL),
		chromedp.FullScreenshot(&image, 100),
	)

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		if tabCtx.Err() == context.DeadlineExceeded {
			return nil, captureError(captureURL, fmt.Errorf("timed out after %v: %w", c.options.timeout(), context.DeadlineExceeded))
		}
		return nil, captureError(captureURL, err)
	}

	result.Image = image
	return result, nil
}

// Close shuts the shared browser down.
func (c *ChromedpCapturer) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.once.Do(func() {})

	if c.cancelBrowser != nil {
		c.cancelBrowser()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	return nil
}
