package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/discovery"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Discovery fills the first half of the progress bar, extraction the second.
const discoveryShare = 50.0

func (c *Collector) execute(ctx context.Context, run *Run) {
	outcome := OutcomeFailed
	var session browser.Session

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collection panicked", "run", run.ID, "panic", r, "stack", string(debug.Stack()))
			c.emit(run, types.NewProgressEvent(types.SeverityError, fmt.Sprintf("Unexpected error: %v", r)))
			outcome = OutcomeFailed
		}
		if session != nil {
			if err := session.Close(); err != nil {
				c.logger.Warn("browser close failed", "run", run.ID, "error", err)
			}
		}
		c.finish(run, outcome)
	}()

	start := fmt.Sprintf("Starting %s collection over %d categories", run.Mode, len(run.Categories))
	if run.preset != nil {
		start = fmt.Sprintf("Starting collection of %d products", len(run.preset))
	}
	c.emit(run, types.NewProgressEvent(types.SeveritySystem, start).WithProgress(0))

	known, err := c.store.LoadKnownURLs(ctx)
	if err != nil {
		c.emit(run, types.NewProgressEvent(types.SeverityError, fmt.Sprintf("Could not read the dataset: %v", err)))
		return
	}
	knownSet := NewURLSet(known)
	c.emit(run, types.NewProgressEvent(types.SeverityInfo,
		fmt.Sprintf("%d products previously collected", len(known))))

	session, err = c.launcher.Launch(ctx)
	if err != nil {
		if c.cancelled(ctx) {
			outcome = c.cancelledOutcome(run)
			return
		}
		c.emit(run, types.NewProgressEvent(types.SeverityError, fmt.Sprintf("Could not start the browser: %v", err)))
		return
	}

	var candidates []types.ProductReference
	if run.preset != nil {
		candidates = c.filterPreset(run, knownSet)
	} else {
		candidates = c.discover(ctx, run, session, knownSet)
	}
	run.Candidates = candidates
	if c.cancelled(ctx) {
		outcome = c.cancelledOutcome(run)
		return
	}

	if run.discoverOnly {
		ev := types.NewProgressEvent(types.SeveritySuccess,
			fmt.Sprintf("Discovery complete: %d new products", len(candidates))).
			WithProgress(100).
			WithCounts(0, len(candidates))
		ev.Stats = run.Stats.Snapshot()
		c.emit(run, ev)
		outcome = OutcomeCompleted
		return
	}

	if len(candidates) == 0 {
		c.emit(run, types.NewProgressEvent(types.SeveritySuccess, "No new products to collect").
			WithProgress(100).WithCounts(0, 0))
		outcome = OutcomeCompleted
		return
	}

	c.collect(ctx, run, session, candidates, knownSet)
	if c.cancelled(ctx) {
		outcome = c.cancelledOutcome(run)
		return
	}

	ev := types.NewProgressEvent(types.SeveritySuccess,
		fmt.Sprintf("Collection complete: %d collected, %d failed", run.Stats.Successes.Load(), run.Stats.Failures.Load())).
		WithProgress(100).
		WithCounts(int(run.Stats.Successes.Load()), len(candidates))
	ev.Stats = run.Stats.Snapshot()
	c.emit(run, ev)
	outcome = OutcomeCompleted
}

func (c *Collector) cancelledOutcome(run *Run) Outcome {
	ev := types.NewProgressEvent(types.SeverityWarning,
		fmt.Sprintf("Collection cancelled: %d collected before stopping", run.Stats.Successes.Load()))
	ev.Stats = run.Stats.Snapshot()
	c.emit(run, ev)
	return OutcomeCancelled
}

// filterPreset drops the given products that are already in the dataset.
func (c *Collector) filterPreset(run *Run, known *URLSet) []types.ProductReference {
	fresh := storage.FilterNew(run.preset, known.Snapshot())
	existing := len(run.preset) - len(fresh)
	run.Stats.AlreadyExisting.Add(int64(existing))
	c.metrics.URLsAlreadyKnown.Add(int64(existing))
	c.emit(run, types.NewProgressEvent(types.SeverityInfo,
		fmt.Sprintf("%d of %d requested products are new", len(fresh), len(run.preset))).
		WithProgress(discoveryShare))
	return fresh
}

// discover walks every selected category and returns the references that
// are neither in the dataset nor already queued by an earlier category.
func (c *Collector) discover(ctx context.Context, run *Run, page browser.Page, known *URLSet) []types.ProductReference {
	limits := c.cfg.Collector.Limits(string(run.Mode))
	constraints := discovery.Constraints{
		MaxPages:       limits.MaxPages,
		MaxURLsPerPage: limits.MaxURLsPerPage,
		MaxScrollSteps: limits.MaxScrollSteps,
	}
	total := len(run.Categories)

	queued := NewURLSet(nil)
	var candidates []types.ProductReference
	for i, cat := range run.Categories {
		if c.cancelled(ctx) {
			break
		}

		ev := types.NewProgressEvent(types.SeverityInfo,
			fmt.Sprintf("Collecting product links from %s (%d/%d)", cat.DisplayName, i+1, total)).
			WithProgress(discoveryShare * float64(i) / float64(total))
		ev.CategoryLabel = cat.DisplayName
		c.emit(run, ev)

		refs, err := c.discoverer.Discover(ctx, page, cat, constraints)
		if err != nil {
			if c.cancelled(ctx) {
				break
			}
			run.Stats.Failures.Add(1)
			var de *types.DiscoveryError
			if errors.As(err, &de) {
				c.emit(run, types.NewProgressEvent(types.SeverityWarning,
					fmt.Sprintf("Listing for %s stopped at page %d: %v", cat.DisplayName, de.Page, de.Err)))
			} else {
				c.emit(run, types.NewProgressEvent(types.SeverityWarning,
					fmt.Sprintf("Listing for %s failed: %v", cat.DisplayName, err)))
			}
		}

		newRefs := storage.FilterNew(refs, known.Snapshot())
		existing := len(refs) - len(newRefs)
		fresh := 0
		for _, ref := range newRefs {
			if queued.Add(ref.URL) {
				candidates = append(candidates, ref)
				fresh++
			}
		}
		run.Stats.AlreadyExisting.Add(int64(existing))
		run.Stats.CategoriesProcessed.Add(1)
		c.metrics.URLsDiscovered.Add(int64(len(refs)))
		c.metrics.URLsAlreadyKnown.Add(int64(existing))
		c.metrics.CategoriesProcessed.Add(1)

		ev = types.NewProgressEvent(types.SeverityInfo,
			fmt.Sprintf("Found %d products in %s, %d new", len(refs), cat.DisplayName, fresh)).
			WithProgress(discoveryShare * float64(i+1) / float64(total))
		ev.CategoryLabel = cat.DisplayName
		c.emit(run, ev)

		if limits.MaxTotalURLs > 0 && len(candidates) >= limits.MaxTotalURLs {
			candidates = candidates[:limits.MaxTotalURLs]
			c.emit(run, types.NewProgressEvent(types.SeverityInfo,
				fmt.Sprintf("Reached the limit of %d products for this mode", limits.MaxTotalURLs)))
			break
		}
	}
	return candidates
}

// collect extracts each candidate and appends successes as they arrive, so
// a cancelled or crashed run keeps everything collected so far. known grows
// with every stored record.
func (c *Collector) collect(ctx context.Context, run *Run, page browser.Page, candidates []types.ProductReference, known *URLSet) {
	total := len(candidates)
	writeCtx := context.WithoutCancel(ctx)

	for i, ref := range candidates {
		if c.cancelled(ctx) {
			return
		}
		if known.Has(ref.URL) {
			run.Stats.AlreadyExisting.Add(1)
			continue
		}

		name := ref.DisplayName
		if name == "" {
			name = ref.URL
		}
		successes := int(run.Stats.Successes.Load())
		ev := types.NewProgressEvent(types.SeverityInfo,
			fmt.Sprintf("Processing product %d/%d: %s", i+1, total, name)).
			WithProgress(discoveryShare + (100-discoveryShare)*float64(i)/float64(total)).
			WithCounts(successes, total)
		ev.CategoryLabel = ref.Category
		ev.ProductLabel = name
		ev.ETALabel = etaLabel(run.Stats.AvgSecondsPerProduct(), total-i)
		c.emit(run, ev)

		started := time.Now()
		rec, err := c.extractor.Extract(ctx, page, ref)
		if err != nil {
			if c.cancelled(ctx) {
				return
			}
			run.Stats.Failures.Add(1)
			c.metrics.ProductsFailed.Add(1)
			run.Stats.ObserveDuration(time.Since(started))
			c.emit(run, types.NewProgressEvent(types.SeverityError,
				fmt.Sprintf("Failed to collect %s: %v", name, err)))
			continue
		}

		if err := c.store.Append(writeCtx, []*types.NutritionRecord{rec}); err != nil {
			run.Stats.Failures.Add(1)
			c.metrics.ProductsFailed.Add(1)
			run.Stats.ObserveDuration(time.Since(started))
			c.emit(run, types.NewProgressEvent(types.SeverityError,
				fmt.Sprintf("Could not save %s: %v", name, err)))
			continue
		}
		known.Add(ref.URL)
		run.Records = append(run.Records, rec)

		run.Stats.Successes.Add(1)
		run.Stats.ObserveDuration(time.Since(started))
		c.metrics.ProductsCollected.Add(1)
		c.metrics.RecordsStored.Add(1)

		done := run.Stats.Successes.Load()
		ev = types.NewProgressEvent(types.SeveritySuccess, fmt.Sprintf("Collected %s", rec.ProductName)).
			WithProgress(discoveryShare + (100-discoveryShare)*float64(i+1)/float64(total)).
			WithCounts(int(done), total)
		ev.CategoryLabel = ref.Category
		ev.ProductLabel = rec.ProductName
		ev.Stats = run.Stats.Snapshot()
		c.emit(run, ev)
	}
}
