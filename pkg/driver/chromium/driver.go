// Package chromium implements core.Session on a Chromium page driven by playwright-go.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/todo-runner/pkg/core"
	"github.com/devicelab-dev/todo-runner/pkg/logger"
)

// DefaultActionTimeout bounds every single browser call.
const DefaultActionTimeout = 10 * time.Second

// Options configures the browser launch.
type Options struct {
	Headless  bool
	SlowMo    time.Duration
	Timeout   time.Duration // per-call budget applied to the page
	Width     int
	Height    int
	Locale    string
	Install   bool   // download the driver and Chromium before starting
	DriverDir string // where the driver and browsers live; empty uses the playwright default
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultActionTimeout
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 1280, 720
	}
	if o.Locale == "" {
		o.Locale = "en-US"
	}
	return o
}

// Driver is one Chromium page and the processes behind it.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// Launch starts playwright, Chromium, a fresh context and one page.
// Partially started resources are released when a later step fails.
func Launch(opts Options) (*Driver, error) {
	opts = opts.withDefaults()

	runOpts := &playwright.RunOptions{
		DriverDirectory: opts.DriverDir,
		Browsers:        []string{"chromium"},
	}
	if opts.Install {
		logger.Info("Installing playwright driver and Chromium")
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	d := &Driver{pw: pw}

	d.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args:     []string{"--lang=" + opts.Locale, "--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	d.context, err = d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
		Locale:   playwright.String(opts.Locale),
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	d.page, err = d.context.NewPage()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	logger.Info("Chromium started (headless=%t)", opts.Headless)
	return d, nil
}

// Open navigates to url and waits for the load event.
func (d *Driver) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return d.classify(err)
}

// Find returns the first element matching selector.
func (d *Driver) Find(selector string) (core.Element, error) {
	h, err := d.page.QuerySelector(selector)
	if err != nil {
		return nil, d.classify(err)
	}
	if h == nil {
		return nil, core.ErrElementNotFound.WithMessage("element not found: " + selector)
	}
	return &element{d: d, h: h}, nil
}

// FindAll returns every element matching selector in document order.
func (d *Driver) FindAll(selector string) ([]core.Element, error) {
	handles, err := d.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, d.classify(err)
	}
	out := make([]core.Element, len(handles))
	for i, h := range handles {
		out[i] = &element{d: d, h: h}
	}
	return out, nil
}

// ExecuteScript evaluates a JavaScript expression in the page.
func (d *Driver) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	v, err := d.page.Evaluate(script, args...)
	return v, d.classify(err)
}

// Screenshot captures the full page as PNG.
func (d *Driver) Screenshot() ([]byte, error) {
	data, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	return data, d.classify(err)
}

// Close releases the page, context, browser and playwright driver in that order.
func (d *Driver) Close() error {
	var errs []error
	if d.page != nil {
		if err := d.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}

// classify maps playwright failures onto the engine's error taxonomy.
func (d *Driver) classify(err error) error {
	if err == nil {
		return nil
	}
	closed := d.page != nil && d.page.IsClosed()
	return classifyError(err, closed)
}

func classifyError(err error, pageClosed bool) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case pageClosed, errors.Is(err, playwright.ErrTargetClosed),
		strings.Contains(msg, "Target page, context or browser has been closed"),
		strings.Contains(msg, "Browser has been closed"):
		return core.ErrSessionLost.WithCause(err)
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Element is not attached"):
		return core.ErrStaleElement.WithCause(err)
	case errors.Is(err, playwright.ErrTimeout):
		return core.ErrTimeout.WithCause(err)
	}
	return err
}
