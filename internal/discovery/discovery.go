// Package discovery walks paginated, infinitely scrolling category listings
// and collects the product links they render.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// cardSelectors are tried in order; the first one matching anything wins.
var cardSelectors = []string{
	"div[data-testid='product-card']",
	"div.product-card",
	"div[class*='product-card']",
	"div[class*='ProductCard']",
	"div.vtex-product-summary-2-x-container",
	"div.shelf-product",
	"article[data-testid='product-card']",
}

var nameSelectors = []string{
	"h2[class*='product-card__title']",
	"h2[class*='ProductCard__title']",
	"span[class*='product-name']",
	"div[class*='product-name']",
	"h2",
	"h3",
	"span[class*='title']",
}

// Constraints bound a single category walk. Zero means unbounded.
type Constraints struct {
	MaxPages       int
	MaxURLsPerPage int
	MaxScrollSteps int
}

// Options tune the discovery loop.
type Options struct {
	SettleDelay          time.Duration
	ScrollDelay          time.Duration
	ScrollStallThreshold int
	PageStallThreshold   int
	ProductPathMarker    string
}

// Discoverer collects product references from category listings.
type Discoverer struct {
	opts         Options
	linkSelector string
	countSel     string
	logger       *slog.Logger
}

// New creates a Discoverer.
func New(opts Options, logger *slog.Logger) *Discoverer {
	if opts.ScrollStallThreshold < 1 {
		opts.ScrollStallThreshold = 3
	}
	if opts.PageStallThreshold < 1 {
		opts.PageStallThreshold = 3
	}
	if opts.ProductPathMarker == "" {
		opts.ProductPathMarker = "/produto/"
	}
	link := fmt.Sprintf("a[href*='%s']", opts.ProductPathMarker)
	return &Discoverer{
		opts:         opts,
		linkSelector: link,
		countSel:     cardSelectors[0] + ", " + link,
		logger:       logger.With("component", "discovery"),
	}
}

// Discover walks cat page by page until the listing is exhausted or a
// constraint is hit. It returns every reference found so far together with
// a *types.DiscoveryError when a page could not be loaded.
func (d *Discoverer) Discover(ctx context.Context, page browser.Page, cat types.CategoryRef, c Constraints) ([]types.ProductReference, error) {
	logger := d.logger.With("category", cat.DisplayName)
	seen := make(map[string]struct{})
	var found []types.ProductReference
	pagesWithoutNew := 0

	for pageNum := 1; c.MaxPages == 0 || pageNum <= c.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		pageURL, err := PageURL(cat.ListingURL, pageNum)
		if err != nil {
			return found, &types.DiscoveryError{Category: cat.DisplayName, Page: pageNum, Err: err}
		}
		logger.Info("loading listing page", "page", pageNum, "url", pageURL)

		if err := page.Navigate(ctx, pageURL); err != nil {
			return found, d.pageErr(ctx, cat, pageNum, err)
		}
		if err := browser.Sleep(ctx, d.opts.SettleDelay); err != nil {
			return found, err
		}
		if err := d.scroll(ctx, page, c.MaxScrollSteps); err != nil {
			return found, d.pageErr(ctx, cat, pageNum, err)
		}

		raw, err := page.HTML(ctx)
		if err != nil {
			return found, d.pageErr(ctx, cat, pageNum, err)
		}
		refs, rendered, err := d.extractCards(raw, pageBase(page.URL(), pageURL), seen, c.MaxURLsPerPage)
		if err != nil {
			return found, d.pageErr(ctx, cat, pageNum, err)
		}

		now := time.Now()
		for i := range refs {
			refs[i].Category = cat.DisplayName
			refs[i].DiscoveredAtPage = pageNum
			refs[i].CollectedAt = now
		}
		found = append(found, refs...)
		logger.Info("listing page processed", "page", pageNum, "new", len(refs), "total", len(found))

		if len(refs) > 0 {
			pagesWithoutNew = 0
			continue
		}
		if rendered == 0 {
			logger.Info("category exhausted, page rendered no products", "page", pageNum)
			break
		}
		pagesWithoutNew++
		if pagesWithoutNew >= d.opts.PageStallThreshold {
			logger.Info("category exhausted, no new products", "pages", pagesWithoutNew)
			break
		}
	}

	return found, nil
}

func (d *Discoverer) pageErr(ctx context.Context, cat types.CategoryRef, pageNum int, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &types.DiscoveryError{Category: cat.DisplayName, Page: pageNum, Err: err}
}

// scroll triggers lazy loading until the visible product count stops growing
// for ScrollStallThreshold steps or maxSteps is reached.
func (d *Discoverer) scroll(ctx context.Context, page browser.Page, maxSteps int) error {
	last, err := page.Count(ctx, d.countSel)
	if err != nil {
		return err
	}

	stall := 0
	for step := 0; maxSteps == 0 || step < maxSteps; step++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			return err
		}
		if clicked, err := page.ClickLoadMore(ctx); err == nil && clicked {
			d.logger.Debug("clicked load more", "step", step+1)
		}
		if err := browser.Sleep(ctx, d.opts.ScrollDelay); err != nil {
			return err
		}

		n, err := page.Count(ctx, d.countSel)
		if err != nil {
			return err
		}
		if n > last {
			last = n
			stall = 0
			continue
		}
		stall++
		if stall >= d.opts.ScrollStallThreshold {
			break
		}
	}
	return nil
}

// extractCards returns the unseen references on the page and how many
// product elements were rendered in total.
func (d *Discoverer) extractCards(raw string, base *url.URL, seen map[string]struct{}, maxURLs int) ([]types.ProductReference, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}

	var cards *goquery.Selection
	for _, sel := range cardSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			cards = s
			break
		}
	}
	if cards == nil {
		cards = doc.Find(d.linkSelector)
	}

	var refs []types.ProductReference
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		href, link := d.cardLink(card)
		if href == "" {
			return true
		}
		abs := resolve(base, href)
		if _, ok := seen[abs]; ok {
			return true
		}
		seen[abs] = struct{}{}
		name := cardName(card, link)
		if name == "" {
			name = normalize.NameFromURL(abs)
		}
		refs = append(refs, types.ProductReference{URL: abs, DisplayName: name})
		return maxURLs == 0 || len(refs) < maxURLs
	})

	return refs, cards.Length(), nil
}

func (d *Discoverer) cardLink(card *goquery.Selection) (string, *goquery.Selection) {
	link := card
	if goquery.NodeName(card) != "a" {
		link = card.Find(d.linkSelector).First()
		if link.Length() == 0 {
			link = card.Find("a[href]").First()
		}
	}
	href, _ := link.Attr("href")
	return strings.TrimSpace(href), link
}

func cardName(card, link *goquery.Selection) string {
	for _, sel := range nameSelectors {
		if t := clean(card.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	if t, ok := link.Attr("title"); ok && clean(t) != "" {
		return clean(t)
	}
	return clean(link.Text())
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func pageBase(current, requested string) *url.URL {
	for _, s := range []string{current, requested} {
		if u, err := url.Parse(s); err == nil && u.IsAbs() {
			return u
		}
	}
	return nil
}

// PageURL sets the page query parameter of a listing URL, replacing any
// page number it already carries.
func PageURL(listing string, page int) (string, error) {
	u, err := url.Parse(listing)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL %q: %w", listing, err)
	}
	q := u.Query()
	q.Set("p", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
