package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/fragment"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// DetailEnricher visits each entity's detail page in a fresh page and reads
// one attribute from a labelled control. Every failure is per-entity: it is
// encoded in the entity's record and never stops the remaining entities.
type DetailEnricher struct {
	Cfg config.HarvestConfig
}

// Enrich produces exactly one EnrichedRecord per selected entity.
// maxEntities restricts processing to the last N entities of each batch
// (0 processes all), exposing the narrowed testing configuration as an
// explicit parameter. domain is the listing's scheme+host base, used to
// absolutize site-relative detail links before navigating.
func (e *DetailEnricher) Enrich(ctx context.Context, sess *session.Session, batches []models.PageBatch, maxEntities int, domain string, emit *progress.Emitter) []models.EnrichedRecord {
	labelPattern := regexp.MustCompile(`^` + regexp.QuoteMeta(e.Cfg.CompanyLabelPrefix) + `:\s*(.+?)\.`)

	var records []models.EnrichedRecord
	for _, batch := range batches {
		fragments := batch.Fragments
		if maxEntities > 0 && len(fragments) > maxEntities {
			fragments = fragments[len(fragments)-maxEntities:]
		}
		for i, frag := range fragments {
			emit.Emit(models.PhaseScraping,
				fmt.Sprintf("enriching entry %d of page %d", i+1, batch.Page+1))
			records = append(records, e.enrichOne(ctx, sess, frag, domain, labelPattern))
		}
	}
	return records
}

// enrichOne resolves one entity: fragment anchor → detail page → labelled
// control → attribute. The secondary page is released regardless of outcome.
func (e *DetailEnricher) enrichOne(ctx context.Context, sess *session.Session, frag models.RawFragment, domain string, labelPattern *regexp.Regexp) models.EnrichedRecord {
	link := fragment.ProfileURL(frag, e.Cfg.ProfileLinkSelector)
	if link == "" {
		return models.EnrichedRecord{Profile: nil, Error: "link not found"}
	}
	link = fragment.Absolutize(domain, link)

	page, err := sess.NewPage()
	if err != nil {
		return models.EnrichedRecord{Profile: &link, Error: err.Error()}
	}
	defer sess.ClosePage(page)
	page = page.Context(ctx)

	if err := page.Timeout(e.Cfg.DetailNavTimeout).Navigate(link); err != nil {
		slog.Warn("detail navigation failed", "link", link, "error", err)
		return models.EnrichedRecord{Profile: &link, Error: "detail page failed to load"}
	}

	selector := fmt.Sprintf(`[aria-label^=%q]`, e.Cfg.CompanyLabelPrefix)
	el, err := page.Timeout(e.Cfg.LabelTimeout).Element(selector)
	if err != nil {
		// Missing control is a soft miss: the record ships without the
		// attribute.
		return models.EnrichedRecord{Profile: &link}
	}

	label, err := el.Attribute("aria-label")
	if err != nil || label == nil {
		return models.EnrichedRecord{Profile: &link}
	}
	m := labelPattern.FindStringSubmatch(*label)
	if m == nil {
		return models.EnrichedRecord{Profile: &link}
	}
	return models.EnrichedRecord{Profile: &link, CurrentCompany: m[1]}
}
