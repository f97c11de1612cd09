// Package browser renders pages in a shared headless Chrome instance and
// captures full-page PNG screenshots.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"readnext/internal/resilience/circuitbreaker"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Config holds the headless browser settings.
type Config struct {
	// ExecPath points at the Chrome/Chromium binary; empty lets chromedp search PATH.
	ExecPath string

	// Width and Height define the viewport (default 1280x800).
	Width  int
	Height int

	// Timeout bounds navigation plus capture of one page.
	Timeout time.Duration

	// MaxConcurrent bounds the number of tabs rendering at once.
	MaxConcurrent int64

	// SettleDelay is waited after the load event so late content can paint.
	SettleDelay time.Duration

	// NoSandbox disables the Chrome sandbox, needed when running as root in containers.
	NoSandbox bool

	UserAgent string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Width:         1280,
		Height:        800,
		Timeout:       30 * time.Second,
		MaxConcurrent: 2,
		SettleDelay:   time.Second,
	}
}

// Renderer captures pages with chromedp. One browser process is started
// lazily on the first render and shared by all tabs.
type Renderer struct {
	cfg     Config
	slots   *semaphore.Weighted
	breaker *circuitbreaker.CircuitBreaker

	startOnce     sync.Once
	startErr      error
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewRenderer creates a renderer. Call Close to stop the browser.
func NewRenderer(cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}

	return &Renderer{
		cfg:     cfg,
		slots:   semaphore.NewWeighted(cfg.MaxConcurrent),
		breaker: circuitbreaker.New(circuitbreaker.RenderConfig()),
	}
}

// Render navigates to pageURL and returns a full-page PNG capture.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for render slot: %w", err)
	}
	defer r.slots.Release(1)

	if err := r.start(); err != nil {
		return nil, err
	}

	png, err := circuitbreaker.Do(r.breaker, func() ([]byte, error) {
		return r.capture(ctx, pageURL)
	})
	if err != nil {
		if circuitbreaker.Rejected(err) {
			slog.Warn("render circuit breaker open, request rejected",
				slog.String("url", pageURL))
		}
		return nil, err
	}
	return png, nil
}

func (r *Renderer) start() error {
	r.startOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(r.cfg.Width, r.cfg.Height),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("mute-audio", true),
		)
		if r.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
		}
		if r.cfg.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		if r.cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// an empty Run launches the browser and its first tab
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			r.startErr = fmt.Errorf("start browser: %w", err)
			return
		}

		r.allocCancel = allocCancel
		r.browserCtx = browserCtx
		r.browserCancel = browserCancel
		slog.Debug("headless browser started",
			slog.Int("width", r.cfg.Width),
			slog.Int("height", r.cfg.Height))
	})
	return r.startErr
}

// capture renders one page in a fresh tab.
func (r *Renderer) capture(ctx context.Context, pageURL string) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer timeoutCancel()

	// the tab context descends from the browser, not from ctx
	stop := context.AfterFunc(ctx, timeoutCancel)
	defer stop()

	var png []byte
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(r.cfg.Width), int64(r.cfg.Height)),
		chromedp.Navigate(pageURL),
	}
	if r.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.SettleDelay))
	}
	actions = append(actions, chromedp.FullScreenshot(&png, 100))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("render %s: empty capture", pageURL)
	}
	return png, nil
}

// Close stops the browser if it was started.
func (r *Renderer) Close() error {
	if r.browserCtx == nil {
		return nil
	}
	err := chromedp.Cancel(r.browserCtx)
	r.browserCancel()
	r.allocCancel()
	return err
}
