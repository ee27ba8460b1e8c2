// Package harvest composes the browser session, the pagination controller,
// the per-entity enricher and the extraction fallback engine into one
// observable end-to-end invocation.
package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/llm"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// Sessions acquires exclusively-owned browser sessions.
type Sessions interface {
	Acquire(ctx context.Context, cookies []models.AuthCookie, emit *progress.Emitter) (*session.Session, error)
}

// Collector runs pagination and returns the captured batches in order.
type Collector interface {
	Collect(ctx context.Context, sess *session.Session, listURL string, emit *progress.Emitter) ([]models.PageBatch, error)
}

// Transformer converts batches into structured records, degrading instead of
// failing.
type Transformer interface {
	Transform(ctx context.Context, batches []models.PageBatch, opts llm.Options) []models.StructuredRecord
}

// Enricher resolves per-entity detail attributes for the enrichment mode.
type Enricher interface {
	Enrich(ctx context.Context, sess *session.Session, batches []models.PageBatch, maxEntities int, domain string, emit *progress.Emitter) []models.EnrichedRecord
}

// Harvester is the single entry point of one harvest invocation.
type Harvester struct {
	Sessions    Sessions
	Collector   Collector
	Transformer Transformer
	Enricher    Enricher
	LLM         config.LLMConfig

	// LinkSelector narrows the anchor lookup when a profile link is
	// recovered locally from a fragment.
	LinkSelector string
}

// New wires a Harvester from configuration with the rod-backed components.
// The session manager is passed in so callers can also surface its counters.
func New(cfg *config.Config, sm *session.Manager) *Harvester {
	return &Harvester{
		Sessions:    sm,
		Collector:   &Paginator{Cfg: cfg.Harvest},
		Transformer: llm.NewTransformer(llm.NewClient(&http.Client{Timeout: cfg.LLM.Timeout})),
		Enricher:    &DetailEnricher{Cfg: cfg.Harvest},
		LLM:         cfg.LLM,

		LinkSelector: cfg.Harvest.ProfileLinkSelector,
	}
}

// Run executes one harvest: acquire session → paginate → transform (or
// enrich) → release → assemble result. The session is released on every
// exit path. A fatal pagination failure ends the invocation with an error
// event and no result; an extraction failure degrades content but still
// yields a complete result.
func (h *Harvester) Run(ctx context.Context, req *models.HarvestRequest, emit *progress.Emitter) (*models.HarvestResult, error) {
	req.Defaults()

	sess, err := h.Sessions.Acquire(ctx, req.Cookies, emit)
	if err != nil {
		emit.Error("failed to set up browser session", err)
		return nil, err
	}
	defer sess.Release()

	batches, err := h.Collector.Collect(ctx, sess, req.URL, emit)
	if err != nil {
		emit.Error("scraping failed", err)
		return nil, err
	}
	total := 0
	for _, b := range batches {
		total += len(b.Fragments)
	}
	emit.Emit(models.PhaseScraping, fmt.Sprintf("scraping complete: %d entries across %d pages", total, len(batches)))

	result := &models.HarvestResult{}
	if req.Mode == models.ModeCompanyPeople {
		result.Enriched = h.Enricher.Enrich(ctx, sess, batches, req.MaxEntities, domainOf(req.URL), emit)
	} else {
		emit.Emit(models.PhaseExtracting, "starting structured extraction")
		result.Results = h.Transformer.Transform(ctx, batches, llm.Options{
			Params:       h.resolveParams(req),
			FailureMode:  req.FailureMode,
			Domain:       domainOf(req.URL),
			LinkSelector: h.LinkSelector,
			Emit:         emit,
		})
		emit.Emit(models.PhaseExtracting, "structured extraction complete")
	}

	emit.Emit(models.PhaseFinishing, fmt.Sprintf("assembled %d records", result.Len()))
	return result, nil
}

// resolveParams layers the caller's BYOK overrides over the server defaults.
func (h *Harvester) resolveParams(req *models.HarvestRequest) llm.Params {
	p := llm.Params{
		APIKey:  h.LLM.APIKey,
		Model:   h.LLM.Model,
		BaseURL: h.LLM.BaseURL,
	}
	if req.LLMAPIKey != "" {
		p.APIKey = req.LLMAPIKey
	}
	if req.LLMModel != "" {
		p.Model = req.LLMModel
	}
	if req.LLMBaseURL != "" {
		p.BaseURL = req.LLMBaseURL
	}
	return p
}

// domainOf extracts the scheme+host base used to absolutize relative links.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
