package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/browser/browsertest"
	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/discovery"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const shop = "https://shop.test"

type recorder struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (r *recorder) Emit(ev types.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressEvent(nil), r.events...)
}

func (r *recorder) messages() []string {
	var out []string
	for _, ev := range r.all() {
		out = append(out, ev.Message)
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = shop
	cfg.Site.Categories = []types.CategoryRef{
		{ID: "1", DisplayName: "Açougue", ListingURL: shop + "/categoria/acougue"},
		{ID: "2", DisplayName: "Cereais", ListingURL: shop + "/categoria/cereais"},
	}
	cfg.Collector.SettleDelay = 0
	cfg.Collector.ScrollDelay = 0
	cfg.Server.CancelGrace = 20 * time.Millisecond
	return cfg
}

func listingPage(t *testing.T, listing string, n int) string {
	t.Helper()
	u, err := discovery.PageURL(listing, n)
	require.NoError(t, err)
	return u
}

func cardsHTML(paths ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for i, p := range paths {
		fmt.Fprintf(&b, `<div data-testid="product-card"><a href="%s"><h2>Produto %d</h2></a></div>`, p, i+1)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func productHTML(name string) string {
	return `<html><body><h1>` + name + `</h1>
<table>
  <tr><th>Item</th><th>Quantidade por porção</th></tr>
  <tr><td>Valor energético</td><td>117 kcal</td></tr>
  <tr><td>Proteínas</td><td>4,4 g</td></tr>
</table></body></html>`
}

// site builds a scripted browser serving one listing per category and a
// page for every product path.
func site(t *testing.T, cfg *config.Config, listings map[string][]string) *browsertest.Page {
	t.Helper()
	docs := map[string]*browsertest.Doc{}
	for _, cat := range cfg.Site.Categories {
		paths, ok := listings[cat.ID]
		if !ok {
			continue
		}
		docs[listingPage(t, cat.ListingURL, 1)] = &browsertest.Doc{HTML: cardsHTML(paths...)}
		for _, p := range paths {
			docs[shop+p] = &browsertest.Doc{HTML: productHTML("Produto " + strings.TrimPrefix(p, "/produto/"))}
		}
	}
	return browsertest.NewPage(docs)
}

func newCollector(t *testing.T, cfg *config.Config, launcher browser.Launcher) (*Collector, *storage.CSVStore, *recorder) {
	t.Helper()
	store, err := storage.NewCSVStore(filepath.Join(t.TempDir(), "data.csv"), testLogger)
	require.NoError(t, err)
	rec := &recorder{}
	c := New(cfg, store, launcher, testLogger)
	c.SetSink(rec)
	return c, store, rec
}

func TestCollectorSkipsKnownProducts(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/picanha", "/produto/2/alcatra"}})
	c, store, events := newCollector(t, cfg, page.Launcher())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []*types.NutritionRecord{{URL: shop + "/produto/1/picanha", ProductName: "Picanha"}}))

	run, err := c.Run(ctx, ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())

	snap := run.Stats.Snapshot()
	assert.Equal(t, int64(1), snap["successes"])
	assert.Equal(t, int64(1), snap["already_existing"])
	assert.Equal(t, int64(0), snap["failures"])
	assert.Equal(t, int64(1), snap["categories_processed"])
	assert.NotContains(t, page.Navigations, shop+"/produto/1/picanha")
	assert.True(t, page.Closed)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, shop+"/produto/2/alcatra", all[1].URL)
	assert.Equal(t, "Açougue", all[1].Category)
	assert.Equal(t, 117.0, all[1].Calories)
	assert.Contains(t, events.messages(), "1 products previously collected")
	assert.Contains(t, events.messages(), "Found 2 products in Açougue, 1 new")

	// a second pass over an unchanged site appends nothing
	run, err = c.Run(ctx, ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())
	assert.Equal(t, int64(0), run.Stats.Successes.Load())
	assert.Contains(t, events.messages(), "No new products to collect")

	all, err = store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCollectorProgressEvents(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{
		"1": {"/produto/1/picanha", "/produto/2/alcatra"},
		"2": {"/produto/3/aveia"},
	})
	c, _, events := newCollector(t, cfg, page.Launcher())

	run, err := c.Run(context.Background(), ModeFull, []string{"1", "2"})
	require.NoError(t, err)

	evs := events.all()
	require.NotEmpty(t, evs)

	last := -1.0
	var sawHalf bool
	for _, ev := range evs {
		assert.Equal(t, run.ID, ev.RunID)
		if ev.ProgressPercent == nil {
			continue
		}
		p := *ev.ProgressPercent
		assert.GreaterOrEqual(t, p, last, "progress went backwards at %q", ev.Message)
		assert.LessOrEqual(t, p, 100.0)
		if p == 50 {
			sawHalf = true
		}
		last = p
	}
	assert.Equal(t, 100.0, last)
	assert.True(t, sawHalf, "discovery should end at 50%")

	final := evs[len(evs)-1]
	assert.Equal(t, types.SeveritySystem, final.Severity)

	var done *types.ProgressEvent
	for i := range evs {
		if strings.HasPrefix(evs[i].Message, "Collection complete") {
			done = &evs[i]
		}
	}
	require.NotNil(t, done)
	require.NotNil(t, done.SuccessCount)
	assert.Equal(t, 3, *done.SuccessCount)
	assert.Equal(t, 3, *done.TotalCount)
	assert.Equal(t, types.SeveritySuccess, done.Severity)

	assert.Equal(t, int64(3), c.Metrics().ProductsCollected.Load())
	assert.Equal(t, int64(1), c.Metrics().RunsCompleted.Load())
	assert.Equal(t, int32(0), c.Metrics().RunActive.Load())
}

func TestCollectorCountsFailures(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/picanha", "/produto/2/alcatra"}})
	c, store, events := newCollector(t, cfg, page.Launcher())
	c.SetExtractor(extractorFunc(func(ctx context.Context, p browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
		if strings.HasSuffix(ref.URL, "alcatra") {
			return nil, &types.ExtractError{URL: ref.URL, Phase: "navigate", Err: fmt.Errorf("timeout")}
		}
		return types.NewNutritionRecord(ref), nil
	}))

	run, err := c.Run(context.Background(), ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())
	assert.Equal(t, int64(1), run.Stats.Successes.Load())
	assert.Equal(t, int64(1), run.Stats.Failures.Load())

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	var sawError bool
	for _, ev := range events.all() {
		if ev.Severity == types.SeverityError && strings.Contains(ev.Message, "Produto 2") {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestCollectorRejectsBadRequests(t *testing.T) {
	c, _, _ := newCollector(t, testConfig(), browsertest.NewPage(nil).Launcher())

	_, err := c.Start(Mode("turbo"), []string{"1"})
	assert.ErrorIs(t, err, types.ErrInvalidMode)

	_, err = c.Start(ModeFull, nil)
	assert.ErrorIs(t, err, types.ErrNoCategories)

	_, err = c.Start(ModeTest, []string{"1", "99"})
	assert.ErrorIs(t, err, types.ErrUnknownCategory)

	assert.Equal(t, StateIdle, c.GetState())
	assert.ErrorIs(t, c.Cancel(), types.ErrNotRunning)
}

func TestCollectorSingleRunAndCancel(t *testing.T) {
	launched := make(chan struct{})
	launcher := browser.LauncherFunc(func(ctx context.Context) (browser.Session, error) {
		close(launched)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c, _, events := newCollector(t, testConfig(), launcher)

	run, err := c.Start(ModeTest, []string{"1"})
	require.NoError(t, err)
	<-launched

	_, err = c.Start(ModeTest, []string{"2"})
	assert.ErrorIs(t, err, types.ErrAlreadyRunning)

	st := c.Status()
	assert.Equal(t, "running", st.State)
	require.NotNil(t, st.Current)
	assert.Equal(t, run.ID, st.Current.ID)

	require.NoError(t, c.Cancel())
	require.NoError(t, c.Cancel(), "a second cancel is a no-op")

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.Equal(t, OutcomeCancelled, run.Outcome())
	assert.Equal(t, StateIdle, c.GetState())

	st = c.Status()
	assert.Equal(t, "idle", st.State)
	assert.Nil(t, st.Current)
	require.NotNil(t, st.Last)
	assert.Equal(t, OutcomeCancelled, st.Last.Outcome)
	assert.NotNil(t, st.Last.FinishedAt)

	evs := events.all()
	assert.Equal(t, types.SeveritySystem, evs[len(evs)-1].Severity)
	assert.Equal(t, int64(1), c.Metrics().RunsCancelled.Load())
}

func TestCollectorCancelKeepsCollectedRecords(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/a", "/produto/2/b", "/produto/3/c"}})
	c, store, _ := newCollector(t, cfg, page.Launcher())

	calls := 0
	c.SetExtractor(extractorFunc(func(ctx context.Context, p browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
		calls++
		assert.NoError(t, c.Cancel())
		return types.NewNutritionRecord(ref), nil
	}))

	run, err := c.Run(context.Background(), ModeFull, []string{"1"})
	require.ErrorIs(t, err, types.ErrRunCancelled)
	assert.Equal(t, OutcomeCancelled, run.Outcome())
	assert.Equal(t, 1, calls, "remaining products are dropped")

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, shop+"/produto/1/a", all[0].URL)
}

func TestCollectorCancelDoesNotCarryOver(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/a", "/produto/2/b", "/produto/3/c"}})
	c, store, _ := newCollector(t, cfg, page.Launcher())
	ctx := context.Background()

	c.SetExtractor(extractorFunc(func(ctx context.Context, p browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
		assert.NoError(t, c.Cancel())
		return types.NewNutritionRecord(ref), nil
	}))
	_, err := c.Run(ctx, ModeFull, []string{"1"})
	require.ErrorIs(t, err, types.ErrRunCancelled)

	c.SetExtractor(extractorFunc(func(ctx context.Context, p browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
		st := c.Status()
		if assert.NotNil(t, st.Current) {
			assert.False(t, st.Current.CancelRequested)
		}
		return types.NewNutritionRecord(ref), nil
	}))
	run, err := c.Run(ctx, ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())
	assert.Equal(t, int64(2), run.Stats.Successes.Load())

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCollectorCancelRightAfterStart(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/a"}})
	release := make(chan struct{})
	launcher := browser.LauncherFunc(func(ctx context.Context) (browser.Session, error) {
		<-release
		return page.Launcher().Launch(ctx)
	})
	c, store, _ := newCollector(t, cfg, launcher)

	run, err := c.Start(ModeFull, []string{"1"})
	require.NoError(t, err)
	require.NoError(t, c.Cancel())
	close(release)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.Equal(t, OutcomeCancelled, run.Outcome())

	_, err = store.ReadAll(context.Background())
	assert.ErrorIs(t, err, types.ErrDatasetMissing)
}

func TestCollectorDiscoverURLs(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/picanha", "/produto/2/alcatra"}})
	c, store, events := newCollector(t, cfg, page.Launcher())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []*types.NutritionRecord{{URL: shop + "/produto/1/picanha", ProductName: "Picanha"}}))

	run, err := c.DiscoverURLs(ctx, ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())
	require.Len(t, run.Candidates, 1)
	assert.Equal(t, shop+"/produto/2/alcatra", run.Candidates[0].URL)
	assert.Empty(t, run.Records)
	assert.NotContains(t, page.Navigations, shop+"/produto/2/alcatra", "no product page is opened")
	assert.Contains(t, events.messages(), "Discovery complete: 1 new products")

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCollectorCollectURLs(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/picanha", "/produto/2/alcatra"}})
	c, store, _ := newCollector(t, cfg, page.Launcher())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []*types.NutritionRecord{{URL: shop + "/produto/1/picanha", ProductName: "Picanha"}}))

	run, err := c.CollectURLs(ctx, []types.ProductReference{
		{URL: shop + "/produto/1/picanha", Category: "Açougue"},
		{URL: shop + "/produto/2/alcatra", Category: "Açougue"},
		{URL: shop + "/produto/2/alcatra", Category: "Açougue"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, run.Outcome())
	require.Len(t, run.Records, 1)
	assert.Equal(t, shop+"/produto/2/alcatra", run.Records[0].URL)
	assert.Equal(t, "Açougue", run.Records[0].Category)
	assert.Equal(t, int64(1), run.Stats.AlreadyExisting.Load())
	for _, nav := range page.Navigations {
		assert.NotContains(t, nav, "/categoria/", "no listing is walked")
	}

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = c.CollectURLs(ctx, nil)
	assert.ErrorIs(t, err, types.ErrNoProducts)
	_, err = c.CollectURLs(ctx, []types.ProductReference{{URL: "produto/3"}})
	assert.ErrorIs(t, err, types.ErrInvalidURL)
}

func TestCollectorRecoversFromPanic(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{"1": {"/produto/1/a"}})
	c, _, events := newCollector(t, cfg, page.Launcher())
	c.SetExtractor(extractorFunc(func(context.Context, browser.Page, types.ProductReference) (*types.NutritionRecord, error) {
		panic("boom")
	}))

	run, err := c.Run(context.Background(), ModeFull, []string{"1"})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, run.Outcome())
	assert.Equal(t, StateIdle, c.GetState())
	assert.True(t, page.Closed)

	evs := events.all()
	assert.Equal(t, types.SeveritySystem, evs[len(evs)-1].Severity)
	assert.Equal(t, types.SeverityError, evs[len(evs)-2].Severity)

	// the collector accepts a new run afterwards
	c.SetExtractor(extractorFunc(func(_ context.Context, _ browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
		return types.NewNutritionRecord(ref), nil
	}))
	run, err = c.Run(context.Background(), ModeFull, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Stats.Successes.Load())
}

func TestCollectorTestModeCapsTotal(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.TestMode.MaxTotalURLs = 2
	page := site(t, cfg, map[string][]string{
		"1": {"/produto/1/a", "/produto/2/b", "/produto/3/c"},
		"2": {"/produto/4/d"},
	})
	c, store, _ := newCollector(t, cfg, page.Launcher())

	run, err := c.Run(context.Background(), ModeTest, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), run.Stats.Successes.Load())
	assert.Equal(t, int64(1), run.Stats.CategoriesProcessed.Load(), "second category is never visited")

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCollectorDedupsAcrossCategories(t *testing.T) {
	cfg := testConfig()
	page := site(t, cfg, map[string][]string{
		"1": {"/produto/1/a", "/produto/2/b"},
		"2": {"/produto/2/b", "/produto/3/c"},
	})
	c, store, _ := newCollector(t, cfg, page.Launcher())

	run, err := c.Run(context.Background(), ModeFull, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.Stats.Successes.Load())

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCollectorRunHonoursContext(t *testing.T) {
	launcher := browser.LauncherFunc(func(ctx context.Context) (browser.Session, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c, _, _ := newCollector(t, testConfig(), launcher)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	run, err := c.Run(ctx, ModeFull, []string{"1"})
	require.ErrorIs(t, err, types.ErrRunCancelled)
	assert.Equal(t, OutcomeCancelled, run.Outcome())
}

func TestURLSet(t *testing.T) {
	s := NewURLSet(map[string]struct{}{"u1": {}})
	assert.True(t, s.Has("u1"))
	assert.False(t, s.Add("u1"))
	assert.True(t, s.Add("u2"))
	assert.Equal(t, 2, s.Len())

	snap := s.Snapshot()
	s.Add("u3")
	assert.Len(t, snap, 2)
}

func TestParseModeAndETA(t *testing.T) {
	m, err := ParseMode("full")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, types.ErrInvalidMode)

	assert.Equal(t, "30s", etaLabel(1.5, 20))
	assert.Equal(t, "", etaLabel(0, 20))
}

type extractorFunc func(ctx context.Context, page browser.Page, ref types.ProductReference) (*types.NutritionRecord, error)

func (f extractorFunc) Extract(ctx context.Context, page browser.Page, ref types.ProductReference) (*types.NutritionRecord, error) {
	return f(ctx, page, ref)
}
