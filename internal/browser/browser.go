// Package browser exposes the headless browser as a small page capability
// that discovery and extraction drive.
package browser

import (
	"context"
	"time"
)

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string) error
	// Eval runs a JS function expression and decodes its JSON result into out.
	// out may be nil when the result is not needed.
	Eval(ctx context.Context, js string, out any, args ...any) error
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error
	// Count returns how many elements match a CSS selector.
	Count(ctx context.Context, selector string) (int, error)
	// ClickLoadMore clicks a visible "load more" button, reporting whether one was found.
	ClickLoadMore(ctx context.Context) (bool, error)
	// ExpandSection clicks the first button whose text contains text.
	ExpandSection(ctx context.Context, text string) (bool, error)
	// URL is the address of the current document.
	URL() string
}

// Session is a page backed by a live browser process.
type Session interface {
	Page
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Session, error)

// Launch calls f(ctx).
func (f LauncherFunc) Launch(ctx context.Context) (Session, error) { return f(ctx) }

const (
	loadMoreJS = `() => {
		const btn = document.querySelector("button[class*='load-more']");
		if (!btn || btn.offsetParent === null) return false;
		btn.click();
		return true;
	}`

	expandJS = `(text) => {
		const buttons = document.querySelectorAll('button');
		for (const b of buttons) {
			if ((b.textContent || '').toLowerCase().includes(text.toLowerCase())) {
				b.click();
				return true;
			}
		}
		return false;
	}`

	countJS = `(sel) => document.querySelectorAll(sel).length`

	scrollJS = `() => window.scrollTo(0, document.body.scrollHeight)`
)

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
