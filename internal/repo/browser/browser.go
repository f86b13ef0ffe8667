// Package browser opens off-site payment pages in the user's web browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"go.uber.org/fx"
)

var ErrUnsupportedScheme = errors.New("browser: refusing to open non-web url")

type Launcher interface {
	// Open shows u to the user. It blocks until the page started loading.
	Open(ctx context.Context, u *url.URL) error
}

func NewLauncher(lc fx.Lifecycle, conf *config.Config) Launcher {
	if conf.Browser.Mode == "none" {
		return &logLauncher{}
	}
	l := &chromeLauncher{
		execPath: detectChromePath(conf.Browser.ChromePath),
		timeout:  conf.Browser.Timeout,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Close()
			return nil
		},
	})
	return l
}

func checkURL(u *url.URL) error {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %v", ErrUnsupportedScheme, u)
	}
	return nil
}

// logLauncher only logs the URL; the control API shows it to the user.
type logLauncher struct{}

func (logLauncher) Open(ctx context.Context, u *url.URL) error {
	if err := checkURL(u); err != nil {
		return err
	}
	logctx.Infow(ctx, "open this page to complete the purchase", "url", u.String())
	return nil
}

// chromeLauncher drives one visible Chrome window and opens each URL in a
// new tab of it. The window stays open after Open returns.
type chromeLauncher struct {
	execPath string
	timeout  time.Duration

	mu      sync.Mutex
	browser context.Context
	cancels []context.CancelFunc
}

func (l *chromeLauncher) start() (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != nil && l.browser.Err() == nil {
		return l.browser, nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
	)
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	l.browser = browserCtx
	l.cancels = append(l.cancels, browserCancel, allocCancel)
	return browserCtx, nil
}

func (l *chromeLauncher) Open(ctx context.Context, u *url.URL) error {
	if err := checkURL(u); err != nil {
		return err
	}
	browserCtx, err := l.start()
	if err != nil {
		return err
	}
	tabCtx, _ := chromedp.NewContext(browserCtx)

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, chromedp.Navigate(u.String()))
	}()
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		logctx.Infow(ctx, "opened payment page", "host", u.Host)
		return nil
	case <-timer.C:
		return fmt.Errorf("navigate: timed out after %s", l.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *chromeLauncher) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cancel := range l.cancels {
		cancel()
	}
	l.cancels = nil
	l.browser = nil
}

func detectChromePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}
	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	// let chromedp look it up
	return ""
}
