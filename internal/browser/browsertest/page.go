// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/IshaanNene/NutriGoat/internal/browser"
)

const blankHTML = `<html><head></head><body></body></html>`

// Doc is the canned state of one URL.
type Doc struct {
	HTML string
	// Counts are returned by successive Count calls; the last value repeats.
	Counts []int
	// Eval maps a substring of the evaluated script to its result.
	Eval map[string]any
	// NavigateErr fails navigation to this URL.
	NavigateErr error

	countCalls int
}

// Page is a scripted browser.Page. It is safe for concurrent use.
type Page struct {
	mu      sync.Mutex
	docs    map[string]*Doc
	current string

	Navigations []string
	Expanded    []string
	Scrolls     int
	Closed      bool
}

var _ browser.Session = (*Page)(nil)

// NewPage returns a page serving docs keyed by exact URL.
func NewPage(docs map[string]*Doc) *Page {
	if docs == nil {
		docs = map[string]*Doc{}
	}
	return &Page{docs: docs}
}

// Launcher returns a launcher that always hands out p.
func (p *Page) Launcher() browser.Launcher {
	return browser.LauncherFunc(func(ctx context.Context) (browser.Session, error) {
		return p, nil
	})
}

func (p *Page) doc() *Doc {
	return p.docs[p.current]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if d, ok := p.docs[url]; ok && d.NavigateErr != nil {
		return d.NavigateErr
	}
	p.current = url
	if d := p.doc(); d != nil {
		d.countCalls = 0
	}
	return nil
}

func (p *Page) Eval(ctx context.Context, js string, out any, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.doc()
	if d == nil || out == nil {
		return nil
	}
	for marker, v := range d.Eval {
		if !strings.Contains(js, marker) {
			continue
		}
		if err, ok := v.(error); ok {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("browsertest: %w", err)
		}
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if d := p.doc(); d != nil && d.HTML != "" {
		return d.HTML, nil
	}
	return blankHTML, nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Scrolls++
	p.mu.Unlock()
	return nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.doc()
	if d == nil || len(d.Counts) == 0 {
		return 0, nil
	}
	i := d.countCalls
	if i >= len(d.Counts) {
		i = len(d.Counts) - 1
	}
	d.countCalls++
	return d.Counts[i], nil
}

func (p *Page) ClickLoadMore(ctx context.Context) (bool, error) {
	return false, ctx.Err()
}

func (p *Page) ExpandSection(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	p.Expanded = append(p.Expanded, text)
	p.mu.Unlock()
	return true, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
	return nil
}

// NavigationCount reports how many navigations were made.
func (p *Page) NavigationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Navigations)
}
