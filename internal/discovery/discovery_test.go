package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/NutriGoat/internal/browser/browsertest"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listing = "https://www.paodeacucar.com/categoria/alimentos/acougue"

var acougue = types.CategoryRef{ID: "1", DisplayName: "Açougue", ListingURL: listing}

func cardsHTML(paths ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="shelf">`)
	for i, p := range paths {
		fmt.Fprintf(&b, `<div data-testid="product-card"><a href="%s"><h2 class="product-card__title-x">Produto %d</h2></a></div>`, p, i+1)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func pageURL(t *testing.T, n int) string {
	t.Helper()
	u, err := PageURL(listing, n)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func newDiscoverer() *Discoverer {
	return New(Options{ScrollStallThreshold: 3, PageStallThreshold: 3}, testLogger)
}

func TestDiscoverStopsAfterThreePagesWithoutNew(t *testing.T) {
	first := cardsHTML("/produto/1/picanha", "/produto/2/alcatra", "/produto/3/fraldinha")
	dup := cardsHTML("/produto/1/picanha", "/produto/2/alcatra")

	page := browsertest.NewPage(map[string]*browsertest.Doc{
		pageURL(t, 1): {HTML: first},
		pageURL(t, 2): {HTML: dup},
		pageURL(t, 3): {HTML: dup},
		pageURL(t, 4): {HTML: dup},
		pageURL(t, 5): {HTML: first},
	})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if n := page.NavigationCount(); n != 4 {
		t.Errorf("expected 4 page loads, got %d", n)
	}

	want := "https://www.paodeacucar.com/produto/1/picanha"
	if refs[0].URL != want {
		t.Errorf("url = %q, want %q", refs[0].URL, want)
	}
	if refs[0].DisplayName != "Produto 1" || refs[0].Category != "Açougue" || refs[0].DiscoveredAtPage != 1 {
		t.Errorf("unexpected ref: %+v", refs[0])
	}
}

func TestDiscoverEndsOnEmptyPage(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Doc{
		pageURL(t, 1): {HTML: cardsHTML("/produto/1/a", "/produto/2/b")},
		pageURL(t, 2): {HTML: cardsHTML("/produto/3/c")},
	})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 3 {
		t.Errorf("expected 3 refs, got %d", len(refs))
	}
	// page 3 is blank and ends the walk at once
	if n := page.NavigationCount(); n != 3 {
		t.Errorf("expected 3 page loads, got %d", n)
	}
	if refs[2].DiscoveredAtPage != 2 {
		t.Errorf("page = %d, want 2", refs[2].DiscoveredAtPage)
	}
}

func TestDiscoverHonorsConstraints(t *testing.T) {
	var paths []string
	for i := 0; i < 40; i++ {
		paths = append(paths, fmt.Sprintf("/produto/%d/item", i))
	}
	page := browsertest.NewPage(map[string]*browsertest.Doc{
		pageURL(t, 1): {HTML: cardsHTML(paths[:30]...)},
		pageURL(t, 2): {HTML: cardsHTML(paths[30:]...)},
		pageURL(t, 3): {HTML: cardsHTML(paths...)},
	})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{MaxPages: 2, MaxURLsPerPage: 25, MaxScrollSteps: 3})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 35 {
		t.Errorf("expected 25+10 refs, got %d", len(refs))
	}
	if n := page.NavigationCount(); n != 2 {
		t.Errorf("expected 2 page loads, got %d", n)
	}
	if page.Scrolls > 6 {
		t.Errorf("expected at most 3 scroll steps per page, got %d total", page.Scrolls)
	}
}

func TestScrollStallCounter(t *testing.T) {
	d := newDiscoverer()
	url := pageURL(t, 1)

	// grows twice, then stalls three times
	page := browsertest.NewPage(map[string]*browsertest.Doc{url: {Counts: []int{10, 20, 30, 30}}})
	if err := page.Navigate(context.Background(), url); err != nil {
		t.Fatal(err)
	}
	if err := d.scroll(context.Background(), page, 0); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if page.Scrolls != 5 {
		t.Errorf("expected 5 scroll steps, got %d", page.Scrolls)
	}

	capped := browsertest.NewPage(map[string]*browsertest.Doc{url: {Counts: []int{1, 2, 3, 4, 5, 6}}})
	_ = capped.Navigate(context.Background(), url)
	if err := d.scroll(context.Background(), capped, 3); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if capped.Scrolls != 3 {
		t.Errorf("expected max 3 scroll steps, got %d", capped.Scrolls)
	}
}

func TestCardSelectorFallback(t *testing.T) {
	html := `<html><body>
		<ul>
			<li><a href="/produto/10/banana" title="Banana Prata">Banana</a></li>
			<li><a href="/produto/11/maca">  Maçã   Fuji </a></li>
			<li><a href="/sobre">Sobre</a></li>
		</ul>
	</body></html>`
	page := browsertest.NewPage(map[string]*browsertest.Doc{pageURL(t, 1): {HTML: html}})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{MaxPages: 1})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].DisplayName != "Banana Prata" || refs[1].DisplayName != "Maçã Fuji" {
		t.Errorf("names = %q, %q", refs[0].DisplayName, refs[1].DisplayName)
	}
}

func TestCardNameFallsBackToSlug(t *testing.T) {
	html := `<html><body>
		<div data-testid="product-card"><a href="/produto/1/picanha-bovina-kg"><img src="p.jpg"></a></div>
	</body></html>`
	page := browsertest.NewPage(map[string]*browsertest.Doc{pageURL(t, 1): {HTML: html}})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{MaxPages: 1})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if refs[0].DisplayName != "Picanha Bovina Kg" {
		t.Errorf("name = %q, want %q", refs[0].DisplayName, "Picanha Bovina Kg")
	}
}

func TestDiscoverNavigationError(t *testing.T) {
	boom := errors.New("timeout")
	page := browsertest.NewPage(map[string]*browsertest.Doc{
		pageURL(t, 1): {HTML: cardsHTML("/produto/1/a")},
		pageURL(t, 2): {NavigateErr: boom},
	})

	refs, err := newDiscoverer().Discover(context.Background(), page, acougue, Constraints{})
	var de *types.DiscoveryError
	if !errors.As(err, &de) || de.Page != 2 || !errors.Is(err, boom) {
		t.Fatalf("expected DiscoveryError on page 2, got %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("expected partial results, got %d", len(refs))
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		in   string
		page int
		want string
	}{
		{listing, 1, listing + "?p=1"},
		{listing + "?p=7", 2, listing + "?p=2"},
		{listing + "?o=price&p=3", 4, listing + "?o=price&p=4"},
	}
	for _, tt := range tests {
		got, err := PageURL(tt.in, tt.page)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("PageURL(%q, %d) = %q, want %q", tt.in, tt.page, got, tt.want)
		}
	}
}
