package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// Paginator drives the listing page through a bounded number of pagination
// iterations and captures one PageBatch per iteration.
//
// Each iteration moves through load → wait-for-content → extract → advance.
// Load and wait-for-content failures are fatal to the invocation; any
// failure while advancing terminates pagination early and keeps the batches
// collected so far.
type Paginator struct {
	Cfg config.HarvestConfig
}

// Collect runs pagination to exhaustion on a fresh page in the session.
//
// Extraction always re-queries the live DOM: by the time it runs, elements
// present during the content wait may have been detached, so a fragment that
// can no longer be captured is skipped rather than aborting the batch.
func (p *Paginator) Collect(ctx context.Context, sess *session.Session, listURL string, emit *progress.Emitter) ([]models.PageBatch, error) {
	page, err := sess.NewPage()
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	emit.Emit(models.PhaseScraping, "navigating to listing page")
	if err := page.Timeout(p.Cfg.PageLoadTimeout).Navigate(listURL); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeNavigation, "failed to load listing page", err)
	}
	emit.Emit(models.PhaseScraping, "listing page loaded")

	var batches []models.PageBatch
	for iter := 0; iter < p.Cfg.MaxIterations; iter++ {
		emit.Emit(models.PhaseScraping, fmt.Sprintf("waiting for results on page %d", iter+1))
		if _, err := page.Timeout(p.Cfg.ContentTimeout).Element(p.Cfg.EntrySelector); err != nil {
			return nil, models.NewHarvestError(models.ErrCodeContentTimeout,
				fmt.Sprintf("no results rendered on page %d", iter+1), err)
		}

		batch := p.extractBatch(page, iter)
		batches = append(batches, batch)
		emit.Emit(models.PhaseScraping,
			fmt.Sprintf("captured %d entries from page %d", len(batch.Fragments), iter+1))

		if iter+1 >= p.Cfg.MaxIterations {
			break
		}
		if !p.advance(ctx, page, emit) {
			break
		}
	}

	return batches, nil
}

// extractBatch captures the outer HTML of every currently-present listing
// entry, in DOM order. Entries detached between the content wait and the
// capture are skipped.
func (p *Paginator) extractBatch(page *rod.Page, iter int) models.PageBatch {
	batch := models.PageBatch{Page: iter}

	els, err := page.Elements(p.Cfg.EntrySelector)
	if err != nil {
		slog.Warn("entry query failed, keeping empty batch", "page", iter, "error", err)
		return batch
	}
	for i, el := range els {
		html, err := el.HTML()
		if err != nil {
			slog.Warn("entry detached before capture, skipping", "page", iter, "index", i, "error", err)
			continue
		}
		batch.Fragments = append(batch.Fragments, html)
	}
	return batch
}

// advance scrolls to trigger lazy content, waits a fixed settle delay, then
// clicks the last matching next control and waits for the resulting
// navigation. It returns false when pagination is done: no control found, or
// the click/navigation failed (early termination, never an error).
func (p *Paginator) advance(ctx context.Context, page *rod.Page, emit *progress.Emitter) bool {
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		slog.Warn("scroll failed before advancing", "error", err)
	}
	select {
	case <-time.After(p.Cfg.SettleDelay):
	case <-ctx.Done():
		return false
	}

	els, err := page.Elements(p.Cfg.NextSelector)
	if err != nil || len(els) == 0 {
		emit.Emit(models.PhaseScraping, "no next control found, pagination complete")
		return false
	}
	// When several controls match, the last one is the authoritative
	// pagination control; earlier matches may be decorative.
	next := els[len(els)-1]

	emit.Emit(models.PhaseScraping, "advancing to next page")
	np := page.Timeout(p.Cfg.NextNavTimeout)
	wait := np.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
		slog.Warn("next control click failed, ending pagination early", "error", err)
		emit.Emit(models.PhaseScraping, "next page did not load, pagination complete")
		return false
	}
	wait()
	if np.GetContext().Err() != nil {
		slog.Warn("navigation after click timed out, ending pagination early",
			"error", np.GetContext().Err())
		emit.Emit(models.PhaseScraping, "next page did not load, pagination complete")
		return false
	}
	emit.Emit(models.PhaseScraping, "advanced to next page")
	return true
}
