package harvest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/harvest"
	"github.com/tejasvajaitly/linkedin-scraper-api/llm"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// Compile-time interface checks for the mocks.
var (
	_ harvest.Sessions    = (*mockSessions)(nil)
	_ harvest.Collector   = (*mockCollector)(nil)
	_ harvest.Transformer = (*mockTransformer)(nil)
	_ harvest.Enricher    = (*mockEnricher)(nil)
)

type mockSessions struct {
	AcquireFn func(ctx context.Context, cookies []models.AuthCookie, emit *progress.Emitter) (*session.Session, error)
}

func (m *mockSessions) Acquire(ctx context.Context, cookies []models.AuthCookie, emit *progress.Emitter) (*session.Session, error) {
	return m.AcquireFn(ctx, cookies, emit)
}

type mockCollector struct {
	CollectFn func(ctx context.Context, sess *session.Session, listURL string, emit *progress.Emitter) ([]models.PageBatch, error)
}

func (m *mockCollector) Collect(ctx context.Context, sess *session.Session, listURL string, emit *progress.Emitter) ([]models.PageBatch, error) {
	return m.CollectFn(ctx, sess, listURL, emit)
}

type mockTransformer struct {
	TransformFn func(ctx context.Context, batches []models.PageBatch, opts llm.Options) []models.StructuredRecord
}

func (m *mockTransformer) Transform(ctx context.Context, batches []models.PageBatch, opts llm.Options) []models.StructuredRecord {
	return m.TransformFn(ctx, batches, opts)
}

type mockEnricher struct {
	EnrichFn func(ctx context.Context, sess *session.Session, batches []models.PageBatch, maxEntities int, domain string, emit *progress.Emitter) []models.EnrichedRecord
}

func (m *mockEnricher) Enrich(ctx context.Context, sess *session.Session, batches []models.PageBatch, maxEntities int, domain string, emit *progress.Emitter) []models.EnrichedRecord {
	return m.EnrichFn(ctx, sess, batches, maxEntities, domain, emit)
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:  "server-key",
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
		},
	}
}

// okSessions hands out bare sessions; Release on them is a safe no-op.
func okSessions() *mockSessions {
	return &mockSessions{
		AcquireFn: func(_ context.Context, _ []models.AuthCookie, _ *progress.Emitter) (*session.Session, error) {
			return &session.Session{}, nil
		},
	}
}

func okCollector(batches []models.PageBatch) *mockCollector {
	return &mockCollector{
		CollectFn: func(_ context.Context, _ *session.Session, _ string, _ *progress.Emitter) ([]models.PageBatch, error) {
			return batches, nil
		},
	}
}

// drainEvents collects everything the emitter buffered so far.
func drainEvents(emit *progress.Emitter) []models.ProgressEvent {
	emit.Close()
	var events []models.ProgressEvent
	for ev := range emit.Events() {
		events = append(events, ev)
	}
	return events
}

func TestHarvester_Run(t *testing.T) {
	t.Parallel()

	batches := []models.PageBatch{
		{Page: 0, Fragments: []models.RawFragment{"<li>a</li>", "<li>b</li>"}},
		{Page: 1, Fragments: []models.RawFragment{"<li>c</li>"}},
	}

	t.Run("search mode transforms every captured fragment", func(t *testing.T) {
		t.Parallel()

		h := &harvest.Harvester{
			Sessions:  okSessions(),
			Collector: okCollector(batches),
			Transformer: &mockTransformer{
				TransformFn: func(_ context.Context, got []models.PageBatch, opts llm.Options) []models.StructuredRecord {
					require.Len(t, got, 2)
					assert.Equal(t, models.FailureModeAll, opts.FailureMode)
					return make([]models.StructuredRecord, 3)
				},
			},
		}

		emit := progress.New(64)
		result, err := h.Run(context.Background(), &models.HarvestRequest{URL: "https://example.com/search"}, emit)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Len(t, result.Results, 3)
		assert.Empty(t, result.Enriched)

		events := drainEvents(emit)
		require.NotEmpty(t, events)
		assert.Equal(t, models.PhaseFinishing, events[len(events)-1].Phase)
		for _, ev := range events {
			assert.NotEqual(t, models.PhaseError, ev.Phase)
		}
	})

	t.Run("company-people mode enriches instead of transforming", func(t *testing.T) {
		t.Parallel()

		profile := "https://example.com/in/alice"
		transformed := false
		h := &harvest.Harvester{
			Sessions:  okSessions(),
			Collector: okCollector(batches),
			Transformer: &mockTransformer{
				TransformFn: func(_ context.Context, _ []models.PageBatch, _ llm.Options) []models.StructuredRecord {
					transformed = true
					return nil
				},
			},
			Enricher: &mockEnricher{
				EnrichFn: func(_ context.Context, _ *session.Session, got []models.PageBatch, maxEntities int, domain string, _ *progress.Emitter) []models.EnrichedRecord {
					assert.Len(t, got, 2)
					assert.Equal(t, 1, maxEntities)
					assert.Equal(t, "https://example.com", domain)
					return []models.EnrichedRecord{{Profile: &profile, CurrentCompany: "Acme"}}
				},
			},
		}

		emit := progress.New(64)
		result, err := h.Run(context.Background(), &models.HarvestRequest{
			URL:         "https://example.com/company/people",
			Mode:        models.ModeCompanyPeople,
			MaxEntities: 1,
		}, emit)

		require.NoError(t, err)
		require.Len(t, result.Enriched, 1)
		assert.Equal(t, "Acme", result.Enriched[0].CurrentCompany)
		assert.False(t, transformed)
	})

	t.Run("session acquire failure ends the run with an error event", func(t *testing.T) {
		t.Parallel()

		acquireErr := models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", nil)
		h := &harvest.Harvester{
			Sessions: &mockSessions{
				AcquireFn: func(_ context.Context, _ []models.AuthCookie, _ *progress.Emitter) (*session.Session, error) {
					return nil, acquireErr
				},
			},
		}

		emit := progress.New(64)
		result, err := h.Run(context.Background(), &models.HarvestRequest{URL: "https://example.com"}, emit)

		require.Error(t, err)
		assert.Nil(t, result)

		events := drainEvents(emit)
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, models.PhaseError, last.Phase)
		assert.Contains(t, last.Error, "failed to launch browser")
	})

	t.Run("fatal pagination failure yields no result", func(t *testing.T) {
		t.Parallel()

		h := &harvest.Harvester{
			Sessions: okSessions(),
			Collector: &mockCollector{
				CollectFn: func(_ context.Context, _ *session.Session, _ string, _ *progress.Emitter) ([]models.PageBatch, error) {
					return nil, models.NewHarvestError(models.ErrCodeContentTimeout, "no entries rendered", errors.New("deadline exceeded"))
				},
			},
		}

		emit := progress.New(64)
		result, err := h.Run(context.Background(), &models.HarvestRequest{URL: "https://example.com"}, emit)

		require.Error(t, err)
		assert.Nil(t, result)

		var he *models.HarvestError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, models.ErrCodeContentTimeout, he.Code)

		events := drainEvents(emit)
		assert.Equal(t, models.PhaseError, events[len(events)-1].Phase)
	})

	t.Run("session is released on the fatal pagination path", func(t *testing.T) {
		t.Parallel()

		sm := session.NewManager(config.BrowserConfig{})
		h := &harvest.Harvester{
			Sessions: &mockSessions{
				AcquireFn: func(_ context.Context, _ []models.AuthCookie, _ *progress.Emitter) (*session.Session, error) {
					s := &session.Session{}
					sm.Adopt(s)
					return s, nil
				},
			},
			Collector: &mockCollector{
				CollectFn: func(_ context.Context, _ *session.Session, _ string, _ *progress.Emitter) ([]models.PageBatch, error) {
					assert.Equal(t, 1, sm.ActiveSessions())
					return nil, models.NewHarvestError(models.ErrCodeContentTimeout, "no results rendered on page 1", nil)
				},
			},
		}

		emit := progress.New(64)
		result, err := h.Run(context.Background(), &models.HarvestRequest{URL: "https://example.com"}, emit)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 0, sm.ActiveSessions(), "session must be torn down even when pagination fails fatally")
	})

	t.Run("session is released after a successful run", func(t *testing.T) {
		t.Parallel()

		sm := session.NewManager(config.BrowserConfig{})
		h := &harvest.Harvester{
			Sessions: &mockSessions{
				AcquireFn: func(_ context.Context, _ []models.AuthCookie, _ *progress.Emitter) (*session.Session, error) {
					s := &session.Session{}
					sm.Adopt(s)
					return s, nil
				},
			},
			Collector: okCollector(batches),
			Transformer: &mockTransformer{
				TransformFn: func(_ context.Context, _ []models.PageBatch, _ llm.Options) []models.StructuredRecord {
					return make([]models.StructuredRecord, 3)
				},
			},
		}

		emit := progress.New(64)
		_, err := h.Run(context.Background(), &models.HarvestRequest{URL: "https://example.com"}, emit)

		require.NoError(t, err)
		assert.Equal(t, 0, sm.ActiveSessions())
	})

	t.Run("request overrides layer over server LLM defaults", func(t *testing.T) {
		t.Parallel()

		h := harvest.New(testConfig(), session.NewManager(testConfig().Browser))
		h.Sessions = okSessions()
		h.Collector = okCollector(batches)
		h.Transformer = &mockTransformer{
			TransformFn: func(_ context.Context, _ []models.PageBatch, opts llm.Options) []models.StructuredRecord {
				assert.Equal(t, "caller-key", opts.Params.APIKey)
				assert.Equal(t, "gpt-4o-mini", opts.Params.Model)
				assert.Equal(t, "https://example.com", opts.Domain)
				return nil
			},
		}

		emit := progress.New(64)
		_, err := h.Run(context.Background(), &models.HarvestRequest{
			URL:       "https://example.com/search?q=x",
			LLMAPIKey: "caller-key",
		}, emit)

		require.NoError(t, err)
	})
}
