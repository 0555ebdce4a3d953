// Package webkit drives headless WebKit sessions through Playwright.
package webkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/playwright-community/playwright-go"
)

const BackendName = "playwright"

const defaultNavigationTimeout = 60 * time.Second

type Options struct {
	NavigationTimeout time.Duration
	// InstallBrowsers downloads the driver and WebKit before the first launch.
	InstallBrowsers bool
}

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

// NewSession starts a Playwright driver, a WebKit browser and one page.
func (b *Backend) NewSession(ctx context.Context) (ports.Session, error) {
	type started struct {
		session *Session
		err     error
	}

	result := make(chan started, 1)
	go func() {
		session, err := b.launch()
		result <- started{session: session, err: err}
	}()

	select {
	case <-ctx.Done():
		// The launch keeps going; close whatever it produces.
		go func() {
			if r := <-result; r.session != nil {
				_ = r.session.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return nil, &domain.SessionCreationError{Backend: BackendName, Err: r.err}
		}
		return r.session, nil
	}
}

func (b *Backend) launch() (*Session, error) {
	runOptions := &playwright.RunOptions{Browsers: []string{"webkit"}, Verbose: false}
	if b.opts.InstallBrowsers {
		if err := playwright.Install(runOptions); err != nil {
			return nil, fmt.Errorf("install webkit: %w", err)
		}
	}

	pw, err := playwright.Run(runOptions)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.WebKit.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("launch webkit: %w", err), pw.Stop())
	}

	page, err := browser.NewPage()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open page: %w", err), browser.Close(), pw.Stop())
	}

	return &Session{pw: pw, browser: browser, page: page, navigationTimeout: b.opts.NavigationTimeout}, nil
}

// navigator is the part of playwright.Page a session drives.
type navigator interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	URL() string
}

// Session is a single WebKit page. It is not safe for concurrent use.
type Session struct {
	pw                *playwright.Playwright
	browser           playwright.Browser
	page              navigator
	navigationTimeout time.Duration
	// pending receives the result of a navigation whose caller gave up.
	pending chan error
}

var _ ports.Session = (*Session)(nil)

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.settle(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.page.Goto(url, playwright.PageGotoOptions{
			Timeout:   playwright.Float(float64(s.navigationTimeout.Milliseconds())),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		done <- err
	}()

	select {
	case <-ctx.Done():
		s.pending = done
		return ctx.Err()
	case err := <-done:
		return navigationError(err, s.navigationTimeout)
	}
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.settle(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

// settle waits out a navigation abandoned by a cancelled caller, so the page
// never runs two navigations at once. Goto is bounded by the navigation
// timeout, so the wait is too.
func (s *Session) settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.pending == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.pending:
		s.pending = nil
		return nil
	}
}

func (s *Session) Close() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close webkit: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

func navigationError(err error, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w after %s: %w", domain.ErrRendererTimeout, timeout, err)
	}
	return err
}
