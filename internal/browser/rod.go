package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/NutriGoat/internal/config"
)

// RodLauncher starts Chromium through Rod.
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// NewRodLauncher creates a launcher from browser settings.
func NewRodLauncher(cfg config.BrowserConfig, logger *slog.Logger) *RodLauncher {
	return &RodLauncher{
		cfg:    cfg,
		logger: logger.With("component", "browser"),
	}
}

// Launch starts a browser bound to ctx. Cancelling ctx aborts every
// in-flight page operation of the returned session.
func (rl *RodLauncher) Launch(ctx context.Context) (Session, error) {
	l := launcher.New().
		Headless(rl.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080")
	if rl.cfg.Bin != "" {
		l = l.Bin(rl.cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if rl.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	limit := rate.Inf
	if rl.cfg.NavigationsPerSec > 0 {
		limit = rate.Limit(rl.cfg.NavigationsPerSec)
	}

	rl.logger.Info("browser ready",
		"headless", rl.cfg.Headless,
		"stealth", rl.cfg.Stealth,
	)

	return &rodSession{
		launcher: l,
		browser:  b,
		page:     page,
		timeout:  rl.cfg.NavigationTimeout,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   rl.logger,
	}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	url      string
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	p := s.page.Context(ctx).Timeout(s.timeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.Warn("page load timeout, continuing", "url", url, "error", err)
	}
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}
	s.url = url
	if info, err := s.page.Info(); err == nil && info != nil {
		s.url = info.URL
	}
	return nil
}

func (s *rodSession) Eval(ctx context.Context, js string, out any, args ...any) error {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("eval result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) ScrollToBottom(ctx context.Context) error {
	return s.Eval(ctx, scrollJS, nil)
}

func (s *rodSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.Eval(ctx, countJS, &n, selector)
	return n, err
}

func (s *rodSession) ClickLoadMore(ctx context.Context) (bool, error) {
	var clicked bool
	err := s.Eval(ctx, loadMoreJS, &clicked)
	return clicked, err
}

func (s *rodSession) ExpandSection(ctx context.Context, text string) (bool, error) {
	var clicked bool
	err := s.Eval(ctx, expandJS, &clicked, text)
	return clicked, err
}

func (s *rodSession) URL() string { return s.url }

// Close shuts down the browser and releases resources.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.logger.Info("browser closed")
	return err
}
