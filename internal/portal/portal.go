// Package portal drives the bezoek.parkeer.nl web portal through a headless
// Chrome instance. It owns the single browser page all operations share;
// callers must not overlap calls.
package portal

import (
	"context"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/registrar"
	"github.com/DanielTromp/bezoekersparkeren/internal/scraper"
	"github.com/chromedp/chromedp"
	"log/slog"
	"strings"
	"time"
)

var ErrNotStarted = errors.New("portal: not started")

type Config struct {
	Municipality string
	Username     string
	Password     string
	Headless     bool
	Timeout      time.Duration
}

type Portal struct {
	cfg     Config
	parser  *scraper.Parser
	logger  *slog.Logger
	browser context.Context
	cancels []context.CancelFunc
}

var _ registrar.Driver = &Portal{}

func New(cfg Config, logger *slog.Logger) *Portal {
	if cfg.Municipality == "" {
		cfg.Municipality = "almere"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Portal{
		cfg:    cfg,
		parser: scraper.New(logger.With("component", "scraper")),
		logger: logger,
	}
}

// Start launches the browser. Stop must be called to shut it down.
func (p *Portal) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	p.browser = browserCtx
	p.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}

	// start the browser process up front so later calls fail fast
	if err := chromedp.Run(browserCtx); err != nil {
		p.Stop()
		return fmt.Errorf("portal: start browser: %w", err)
	}
	p.logger.Debug("browser started", "headless", p.cfg.Headless)
	return nil
}

func (p *Portal) Stop() {
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = nil
	p.browser = nil
}

func (p *Portal) url(path string) string {
	return "https://bezoek.parkeer.nl/" + p.cfg.Municipality + path
}

func (p *Portal) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.browser == nil {
		return ErrNotStarted
	}
	runCtx, cancel := context.WithTimeout(p.browser, p.cfg.Timeout)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return chromedp.Run(runCtx, actions...)
}

// Login signs in with the configured credentials and waits until the portal
// redirects into the application.
func (p *Portal) Login(ctx context.Context) error {
	p.logger.Info("logging in", "municipality", p.cfg.Municipality)

	err := p.run(ctx,
		chromedp.Navigate(p.url("/login")),
		chromedp.WaitVisible(`input#username`, chromedp.ByQuery),
		chromedp.SendKeys(`input#username`, p.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input#password`, p.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button#_submit`, chromedp.ByQuery),
	)
	if err != nil {
		loginCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("portal: login: %w", err)
	}

	if err = p.waitForURL(ctx, "/app"); err != nil {
		loginCounter.WithLabelValues("failed").Inc()
		message, _ := p.errorMessage(ctx)
		if message != "" {
			return fmt.Errorf("portal: login failed: %s", message)
		}
		return fmt.Errorf("portal: login failed: %w", err)
	}

	loginCounter.WithLabelValues("ok").Inc()
	p.logger.Info("login successful")
	return nil
}

// waitForURL polls the page location until it contains fragment.
func (p *Portal) waitForURL(ctx context.Context, fragment string) error {
	deadline := time.Now().Add(p.cfg.Timeout)
	for time.Now().Before(deadline) {
		var location string
		if err := p.run(ctx, chromedp.Location(&location)); err != nil {
			return err
		}
		if strings.Contains(location, fragment) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return errors.New("timed out waiting for " + fragment)
}

func (p *Portal) errorMessage(ctx context.Context) (string, error) {
	var message string
	err := p.run(ctx, chromedp.Evaluate(
		`document.querySelector('div.notification, .alert-danger, .error-message, [role="alert"]')?.textContent?.trim() || ''`,
		&message,
	))
	return message, err
}

// ensureDashboard navigates to the active-sessions page unless we're already
// on it.
func (p *Portal) ensureDashboard(ctx context.Context) error {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return err
	}

	dashboard := p.url("/app/park")
	onDashboard := strings.Contains(location, dashboard) &&
		!strings.Contains(location, "/app/park/new")
	if onDashboard {
		return nil
	}

	p.logger.Debug("navigating to dashboard", "from", location)
	return p.run(ctx,
		chromedp.Navigate(dashboard),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// FetchActiveSessions returns the raw markup of the active-sessions page.
func (p *Portal) FetchActiveSessions(ctx context.Context) (string, error) {
	if err := p.ensureDashboard(ctx); err != nil {
		return "", fmt.Errorf("portal: dashboard: %w", err)
	}
	var markup string
	if err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("portal: fetch sessions: %w", err)
	}
	return markup, nil
}

// FetchBalance reads the balance field on the user page, e.g. "€ 19,10".
func (p *Portal) FetchBalance(ctx context.Context) (string, error) {
	var value string
	err := p.run(ctx,
		chromedp.Navigate(p.url("/app/user")),
		chromedp.WaitVisible(`input[name="balance"]`, chromedp.ByQuery),
		chromedp.Value(`input[name="balance"]`, &value, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("portal: fetch balance: %w", err)
	}
	return value, nil
}
