// Package headless contains the browser-driven points extractor.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// Default deadlines applied when the config leaves them unset.
const (
	DefaultPageLoadTimeout = 30 * time.Second
	DefaultElementTimeout  = 20 * time.Second
	DefaultSettleDelay     = 500 * time.Millisecond
)

// maskWebdriverScript hides the navigator.webdriver flag before page scripts run.
const maskWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls the behavior of the headless browser session.
type Config struct {
	PageLoadTimeout time.Duration
	ElementTimeout  time.Duration
	SettleDelay     time.Duration
	Headless        bool
	UserAgent       string
	ExecPath        string
}

func (c Config) withDefaults() Config {
	if c.PageLoadTimeout <= 0 {
		c.PageLoadTimeout = DefaultPageLoadTimeout
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = DefaultElementTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// Browser implements points.Browser using chromedp and Chrome.
type Browser struct {
	cfg    Config
	target points.Target
	clock  points.Clock
	logger *zap.Logger
}

// NewBrowser validates the target and returns a Browser ready to Open sessions.
func NewBrowser(cfg Config, target points.Target, clock points.Clock, logger *zap.Logger) (*Browser, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{
		cfg:    cfg.withDefaults(),
		target: target,
		clock:  clock,
		logger: logger,
	}, nil
}

// Open launches Chrome and returns a warmed-up session. A failure here means no
// browser could be started at all.
func (b *Browser) Open(ctx context.Context) (points.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(b.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, b.stealthAction()); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	b.logger.Info("browser session opened", zap.Bool("headless", b.cfg.Headless))

	return &Session{
		cfg:           b.cfg,
		target:        b.target,
		clock:         b.clock,
		logger:        b.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

func (b *Browser) stealthAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(maskWebdriverScript).Do(ctx); err != nil {
			return fmt.Errorf("mask webdriver: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// Session is one live Chrome tab reused across fetches.
type Session struct {
	cfg    Config
	target points.Target
	clock  points.Clock
	logger *zap.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Fetch navigates to the key's page, waits for the points node and reads it.
// Expected failures are reported through the result, never as an error.
func (s *Session) Fetch(ctx context.Context, key points.Key) points.FetchResult {
	log := s.logger.With(zap.String("key", key.String()))
	if s.isClosed() {
		log.Warn("fetch on closed session")
		return points.Absent(points.OutcomeSessionFault, "session closed")
	}

	url := s.target.URL(key)
	log.Info("scraping url", zap.String("url", url))

	if err := s.run(ctx, s.cfg.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return s.absent(log, "navigate", err)
	}

	var html string
	err := s.run(ctx, s.cfg.ElementTimeout,
		chromedp.WaitReady(s.target.Selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return s.absent(log, "wait element", err)
	}

	text, found, err := extractText(html, s.target.Selector)
	if err != nil {
		return s.absent(log, "parse dom", err)
	}
	if !found {
		log.Warn("element not found in rendered page")
		return points.Absent(points.OutcomeMissingElement, "selector absent from rendered DOM")
	}

	point, err := points.NewPricePoint(text, s.clock.Now())
	if err != nil {
		log.Warn("unparseable points text", zap.String("text", text), zap.Error(err))
		return points.Absent(points.OutcomeUnexpected, truncate(err.Error(), detailLimit))
	}
	log.Info("element found", zap.String("text", text))

	if err := s.clock.Sleep(ctx, s.cfg.SettleDelay); err != nil {
		log.Debug("settle delay interrupted", zap.Error(err))
	}
	return points.Found(point)
}

// run executes actions against the session tab, bounded by timeout and by the
// caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("chromedp run: %w", ctxErr)
		}
		if taskCtx.Err() != nil && s.browserCtx.Err() == nil {
			return fmt.Errorf("chromedp run: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (s *Session) absent(log *zap.Logger, stage string, err error) points.FetchResult {
	outcome := classify(err, s.browserCtx.Err() != nil)
	detail := truncate(err.Error(), detailLimit)
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("outcome", string(outcome)),
		zap.String("detail", detail),
	}
	switch outcome {
	case points.OutcomeTimeout:
		log.Warn("loading took too much time or element not found", fields...)
	case points.OutcomeMissingElement:
		log.Warn("element not found", fields...)
	case points.OutcomeSessionFault:
		log.Error("browser session fault", fields...)
	default:
		log.Error("unexpected extraction error", fields...)
	}
	return points.Absent(outcome, detail)
}

// Close releases the tab, browser and allocator. It is safe to call on a nil,
// unopened or already closed session.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if s.logger != nil {
		s.logger.Info("browser session closed")
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

var (
	_ points.Browser = (*Browser)(nil)
	_ points.Session = (*Session)(nil)
)
