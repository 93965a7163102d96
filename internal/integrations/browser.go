package integrations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"longhaul/internal/logging"
)

// BrowserSession owns a lazily-launched headless Chrome instance used for
// capture and scrape capabilities. The browser starts on first use and is
// reused across dispatches until Close.
type BrowserSession struct {
	mu       sync.Mutex
	browser  *rod.Browser
	headless bool
	timeout  time.Duration
}

// NewBrowserSession creates an unstarted browser session.
func NewBrowserSession(headless bool, timeout time.Duration) *BrowserSession {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserSession{headless: headless, timeout: timeout}
}

// ensureStarted launches Chrome on first use, or reconnects if the previous
// instance died.
func (b *BrowserSession) ensureStarted(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return nil
		}
		logging.Browser("stale browser connection, relaunching")
		_ = b.browser.Close()
		b.browser = nil
	}

	controlURL, err := launcher.New().Headless(b.headless).Launch()
	if err != nil {
		return fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to chrome: %w", err)
	}

	b.browser = browser
	logging.Browser("browser launched (headless=%v)", b.headless)
	return nil
}

// openPage navigates a fresh page to the URL within the session timeout.
func (b *BrowserSession) openPage(ctx context.Context, url string) (*rod.Page, error) {
	if err := b.ensureStarted(ctx); err != nil {
		return nil, err
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := page.Context(ctx).Timeout(b.timeout).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Context(ctx).Timeout(b.timeout).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("page load timed out for %s: %w", url, err)
	}
	return page, nil
}

// Capture navigates to the URL and returns a PNG screenshot.
func (b *BrowserSession) Capture(ctx context.Context, url string, fullPage bool) ([]byte, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "Capture")
	defer timer.Stop()

	page, err := b.openPage(ctx, url)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	logging.BrowserDebug("capturing %s (full_page=%v)", url, fullPage)
	return page.Context(ctx).Screenshot(fullPage, nil)
}

// Scrape navigates to the URL and returns the text content of the first
// element matching the selector.
func (b *BrowserSession) Scrape(ctx context.Context, url, selector string) (string, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "Scrape")
	defer timer.Stop()

	page, err := b.openPage(ctx, url)
	if err != nil {
		return "", err
	}
	defer page.Close()

	if selector == "" {
		selector = "body"
	}

	el, err := page.Context(ctx).Timeout(b.timeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element not found for selector %q: %w", selector, err)
	}

	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read element text: %w", err)
	}

	logging.BrowserDebug("scraped %d bytes from %s %q", len(text), url, selector)
	return text, nil
}

// Close shuts the browser down.
func (b *BrowserSession) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
