// Package chrome drives headless Chrome sessions over the DevTools protocol.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/chromedp/chromedp"
)

const BackendName = "chromedp"

const defaultNavigationTimeout = 60 * time.Second

type Options struct {
	// ExecPath overrides Chrome discovery.
	ExecPath          string
	NavigationTimeout time.Duration
}

// Backend starts one Chrome process per session.
type Backend struct {
	opts Options
}

var _ ports.SessionBackend = (*Backend)(nil)

func NewBackend(opts Options) *Backend {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}

	return &Backend{opts: opts}
}

func (b *Backend) Name() string {
	return BackendName
}

// NewSession launches a browser and opens a tab. ctx bounds the startup only;
// the session lives until Close.
func (b *Backend) NewSession(ctx context.Context) (ports.Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(b.opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx)
	if !stop() || err != nil {
		cancelTab()
		cancelAlloc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.SessionCreationError{Backend: BackendName, Err: err}
	}

	return &Session{
		tab:               tabCtx,
		cancelTab:         cancelTab,
		cancelAlloc:       cancelAlloc,
		navigationTimeout: b.opts.NavigationTimeout,
	}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options,
		chromedp.Flag("incognito", true),
		chromedp.Flag("no-zygote", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disk-cache-size", "1"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("log-level", "3"),
	)
	if opts.ExecPath != "" {
		options = append(options, chromedp.ExecPath(opts.ExecPath))
	}
	return options
}

// Session is a single Chrome tab. It is not safe for concurrent use.
type Session struct {
	tab               context.Context
	cancelTab         context.CancelFunc
	cancelAlloc       context.CancelFunc
	navigationTimeout time.Duration
}

var _ ports.Session = (*Session)(nil)

// Navigate loads url. Hitting the navigation timeout while ctx is still live
// reports domain.ErrRendererTimeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(s.tab, s.navigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", domain.ErrRendererTimeout, s.navigationTimeout)
	}
	return err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// Close shuts the browser down and releases the allocator.
func (s *Session) Close() error {
	defer s.cancelAlloc()
	defer s.cancelTab()

	if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
