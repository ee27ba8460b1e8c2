package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tejasvajaitly/linkedin-scraper-api/fragment"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
)

// degradedError is the marker carried by every degraded record.
const degradedError = "processing failed"

// Extractor is the extraction-service boundary consumed by the Transformer.
type Extractor interface {
	ExtractRecords(ctx context.Context, prompts []string, params Params) ([]models.StructuredRecord, error)
}

// Options configures one Transform call.
type Options struct {
	Params Params

	// FailureMode controls the blast radius of a batch failure:
	// models.FailureModeAll degrades every fragment across all batches,
	// models.FailureModeBatch degrades only the failed batch.
	FailureMode string

	// Domain resolves relative URLs when fragments are rendered to Markdown
	// and when a degraded record's locally recovered link is absolutized.
	Domain string

	// LinkSelector narrows the anchor lookup for degraded-record link
	// recovery (config.HarvestConfig.ProfileLinkSelector).
	LinkSelector string

	Emit *progress.Emitter
}

// Transformer converts captured page batches into structured records via the
// extraction service, submitting one request per batch concurrently. It
// never loses cardinality: every input fragment yields exactly one record,
// structured or degraded.
type Transformer struct {
	Client Extractor
	Pre    *fragment.Preprocessor
}

// NewTransformer wires a Transformer from an extraction client.
func NewTransformer(client Extractor) *Transformer {
	return &Transformer{
		Client: client,
		Pre:    fragment.NewPreprocessor(),
	}
}

// Transform submits every batch to the extraction service and joins the
// results in batch order. Service failure degrades records (per
// opts.FailureMode) rather than failing the call: the caller always gets
// len(results) == total fragment count.
func (t *Transformer) Transform(ctx context.Context, batches []models.PageBatch, opts Options) []models.StructuredRecord {
	if len(batches) == 0 {
		return []models.StructuredRecord{}
	}
	failFast := opts.FailureMode != models.FailureModeBatch

	perBatch := make([][]models.StructuredRecord, len(batches))
	batchErrs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			prompts := make([]string, len(batch.Fragments))
			tokens := 0
			for j, frag := range batch.Fragments {
				prompts[j] = t.Pre.ToPrompt(frag, opts.Domain)
				tokens += fragment.EstimateTokens(prompts[j])
			}
			opts.Emit.Emit(models.PhaseExtracting,
				fmt.Sprintf("submitting page %d (%d fragments, ~%d tokens) for extraction",
					batch.Page+1, len(batch.Fragments), tokens))

			records, err := t.Client.ExtractRecords(gctx, prompts, opts.Params)
			if err != nil {
				batchErrs[i] = err
				opts.Emit.Emit(models.PhaseExtracting,
					fmt.Sprintf("extraction failed for page %d", batch.Page+1))
				if failFast {
					// Fail-fast join: the first rejection cancels the
					// sibling requests via gctx.
					return err
				}
				return nil
			}

			perBatch[i] = alignRecords(records, batch.Fragments, opts)
			opts.Emit.Emit(models.PhaseExtracting,
				fmt.Sprintf("extraction completed for page %d", batch.Page+1))
			return nil
		})
	}
	err := g.Wait()

	if failFast && err != nil {
		slog.Warn("batch extraction failed, degrading all records", "error", err)
		return degradeAll(batches, opts)
	}

	results := make([]models.StructuredRecord, 0, totalFragments(batches))
	for i, batch := range batches {
		if batchErrs[i] != nil || perBatch[i] == nil {
			if batchErrs[i] != nil {
				slog.Warn("batch extraction failed, degrading batch",
					"page", batch.Page, "error", batchErrs[i])
			}
			results = append(results, degradeBatch(batch, opts)...)
			continue
		}
		results = append(results, perBatch[i]...)
	}
	return results
}

// alignRecords pins the service output to the batch's fragment count. The
// service is assumed to mirror input order but not guaranteed to mirror
// cardinality: a shortfall is filled with degraded records, an overrun is
// truncated.
func alignRecords(records []models.StructuredRecord, fragments []models.RawFragment, opts Options) []models.StructuredRecord {
	if len(records) > len(fragments) {
		records = records[:len(fragments)]
	}
	for i := len(records); i < len(fragments); i++ {
		records = append(records, degradeFragment(fragments[i], opts))
	}
	return records
}

// degradeAll produces a degraded record for every fragment across all batches.
func degradeAll(batches []models.PageBatch, opts Options) []models.StructuredRecord {
	results := make([]models.StructuredRecord, 0, totalFragments(batches))
	for _, batch := range batches {
		results = append(results, degradeBatch(batch, opts)...)
	}
	return results
}

func degradeBatch(batch models.PageBatch, opts Options) []models.StructuredRecord {
	records := make([]models.StructuredRecord, len(batch.Fragments))
	for i, frag := range batch.Fragments {
		records[i] = degradeFragment(frag, opts)
	}
	return records
}

// degradeFragment builds the raw-fragment stand-in for one entry, with a
// best-effort locally parsed profile link absolutized against the listing
// domain.
func degradeFragment(frag models.RawFragment, opts Options) models.StructuredRecord {
	return models.StructuredRecord{
		Error:       degradedError,
		RawFragment: frag,
		ProfileURL:  fragment.Absolutize(opts.Domain, fragment.ProfileURL(frag, opts.LinkSelector)),
	}
}

func totalFragments(batches []models.PageBatch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Fragments)
	}
	return n
}
