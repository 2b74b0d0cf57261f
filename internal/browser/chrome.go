package browser

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/ddihound/ddihound/internal/logger"
)

// stealthScript masks the usual headless-automation tells before any page
// script runs. Interaction checkers sit behind aggressive bot detection;
// a bare headless Chrome gets challenged on the first visit.
const stealthScript = `
(function() {
    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    Object.defineProperty(navigator, 'languages', {
        get: () => ['en-US', 'en']
    });
    Object.defineProperty(navigator, 'plugins', {
        get: () => [1, 2, 3, 4, 5]
    });
    window.chrome = window.chrome || { runtime: {} };
    const originalQuery = window.navigator.permissions.query;
    window.navigator.permissions.query = (parameters) => (
        parameters.name === 'notifications' ?
            Promise.resolve({ state: Notification.permission }) :
            originalQuery(parameters)
    );
})();
`

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config holds Chrome backend configuration.
type Config struct {
	Headless    bool
	UserAgent   string
	StepTimeout time.Duration // per-primitive ceiling
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		UserAgent:   defaultUserAgent,
		StepTimeout: 30 * time.Second,
	}
}

// Chrome drives a single headless Chrome tab via chromedp. One instance
// models one visible user session: the pipeline deliberately keeps a
// single tab alive for the whole run instead of opening one per item.
type Chrome struct {
	config      Config
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc
}

// NewChrome launches the browser and opens the session tab.
func NewChrome(cfg Config) (*Chrome, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("lang", "en-US,en"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	if chromePath := FindChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	c := &Chrome{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
	}

	// Start the browser and arm the stealth script for every navigation.
	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("browser started",
		"headless", cfg.Headless,
		"step_timeout", cfg.StepTimeout)

	return c, nil
}

// run executes actions in the session tab under the per-step ceiling.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(c.tabCtx, c.config.StepTimeout)
	defer cancel()

	// Honor caller cancellation without tying tab lifetime to it.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(stepCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the document body to be ready.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	logger.Debug("navigate", "url", url)
	if err := c.run(ctx,
		chromedp.Navigate(url),
		// WaitVisible has a bug causing infinite polling; WaitReady is enough
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Type clears the field and types text into it.
func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	if err := c.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	if err := c.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// PressEnter sends Enter to the focused element.
func (c *Chrome) PressEnter(ctx context.Context) error {
	if err := c.run(ctx, chromedp.KeyEvent(kb.Enter)); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

// WaitStable waits for document.readyState to reach "complete", then a
// short settle period for late-rendering widgets. Returns an error
// wrapping context.DeadlineExceeded if the ceiling elapses first; the
// page stays in whatever state it reached.
func (c *Chrome) WaitStable(ctx context.Context, ceiling time.Duration) error {
	waitCtx, cancel := context.WithTimeout(c.tabCtx, ceiling)
	defer cancel()

	const settle = time.Second
	for {
		var state string
		if err := chromedp.Run(waitCtx,
			chromedp.Evaluate("document.readyState", &state),
		); err != nil {
			if waitCtx.Err() != nil {
				return fmt.Errorf("page never stabilized: %w", context.DeadlineExceeded)
			}
			return fmt.Errorf("wait stable: %w", err)
		}
		if state == "complete" {
			break
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("page never stabilized: %w", context.DeadlineExceeded)
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settle):
	}
	return nil
}

// ReadText returns the visible text of the first matching element.
func (c *Chrome) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := c.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// Candidates returns the visible text of every matching element.
func (c *Chrome) Candidates(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(e => e.innerText.trim()).filter(t => t.length > 0)`,
		selector)
	if err := c.run(ctx, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, fmt.Errorf("list candidates %s: %w", selector, err)
	}
	return texts, nil
}

// ClickCandidate clicks the index-th element matching selector.
func (c *Chrome) ClickCandidate(ctx context.Context, selector string, index int) error {
	script := fmt.Sprintf(`(() => {
		const nodes = document.querySelectorAll(%q);
		if (%d >= nodes.length) return false;
		nodes[%d].click();
		return true;
	})()`, selector, index, index)

	var clicked bool
	if err := c.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click candidate %s[%d]: %w", selector, index, err)
	}
	if !clicked {
		return fmt.Errorf("click candidate %s[%d]: element not present", selector, index)
	}
	return nil
}

// Snapshot captures the rendered HTML, title and a full-page screenshot.
// A failed screenshot does not fail the snapshot; the HTML alone is
// enough for extraction.
func (c *Chrome) Snapshot(ctx context.Context) (Snapshot, error) {
	var html, title string
	if err := c.run(ctx,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	snap := Snapshot{HTML: html, Title: title, Taken: time.Now()}

	var shot []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&shot, 80)); err != nil {
		logger.Debug("screenshot capture failed", "error", err)
	} else {
		snap.Screenshot = shot
	}
	return snap, nil
}

// Close releases the tab and the browser.
func (c *Chrome) Close() error {
	if c.cancelTab != nil {
		c.cancelTab()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	return nil
}

// Common Chrome/Chromium binary names across different systems
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	// macOS paths
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	// Common Linux paths
	"/usr/bin/google-chrome-stable",
	"/usr/bin/google-chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
}

// FindChromePath searches for a Chrome/Chromium binary on the system.
// Returns empty string if no Chrome binary is found.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found - browser automation may not work")
	return ""
}
