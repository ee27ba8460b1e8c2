package models

// Pipeline modes supported by the harvester.
const (
	// ModeSearch runs the two-phase pipeline: paginate the listing, then
	// batch-transform the captured fragments via the extraction service.
	ModeSearch = "search"

	// ModeCompanyPeople runs the enrichment pipeline: paginate, then visit
	// each entity's detail page and read one attribute from it.
	ModeCompanyPeople = "company-people"
)

// Failure modes for the batch transform (see llm.Transformer).
const (
	// FailureModeAll degrades every fragment across all batches when any
	// single batch request fails.
	FailureModeAll = "all"

	// FailureModeBatch degrades only the fragments of the failed batch and
	// keeps structured output for the batches that succeeded.
	FailureModeBatch = "batch"
)

// AuthCookie is an opaque authentication cookie supplied pre-formed by the
// caller and injected into the browser context before any navigation.
// The pipeline never mutates it.
type AuthCookie struct {
	Name     string `json:"name" binding:"required"`
	Value    string `json:"value" binding:"required"`
	Domain   string `json:"domain" binding:"required"`
	Path     string `json:"path,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// RawFragment is the serialized markup of one listing entry as rendered at
// extraction time. Immutable once captured; identified only by its position
// within its source batch.
type RawFragment = string

// PageBatch is the ordered set of fragments captured in one pagination
// iteration. Batches are ordered by iteration number.
type PageBatch struct {
	// Page is the zero-based pagination iteration that produced the batch.
	Page int `json:"page"`

	Fragments []RawFragment `json:"fragments"`
}

// StructuredRecord is one profile as produced by the extraction service, or
// its degraded stand-in when extraction fails. Exactly one record exists per
// input fragment; failure degrades content, never cardinality.
type StructuredRecord struct {
	Name            string `json:"name,omitempty"`
	Headline        string `json:"headline,omitempty"`
	Location        string `json:"location,omitempty"`
	CurrentCompany  string `json:"currentCompany,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	ProfileURL      string `json:"profileUrl,omitempty"`

	// Error marks a degraded record. When set, RawFragment carries the
	// original markup so the caller can retry extraction out of band.
	Error       string `json:"error,omitempty"`
	RawFragment string `json:"rawFragment,omitempty"`
}

// EnrichedRecord is the per-entity output of the enrichment pipeline.
// Profile is nil when no detail link could be found on the fragment.
type EnrichedRecord struct {
	Profile        *string `json:"profile"`
	CurrentCompany string  `json:"currentCompany,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HarvestRequest is the payload for POST /api/v1/harvest (streaming) and
// POST /api/v1/harvest/sync.
type HarvestRequest struct {
	// URL is the listing page to harvest. Required.
	URL string `json:"url" binding:"required,url"`

	// Cookies are injected into the browser context before navigation.
	Cookies []AuthCookie `json:"cookies,omitempty"`

	// Fields is accepted for forward compatibility but unused by the fixed
	// extraction schema.
	Fields []string `json:"fields,omitempty"`

	// Mode selects the pipeline. Default: "search".
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=search company-people"`

	// MaxEntities bounds the enrichment pipeline to the last N entities per
	// batch. 0 (default) processes all entities.
	MaxEntities int `json:"max_entities,omitempty" binding:"omitempty,min=0"`

	// FailureMode controls the blast radius of an extraction-service
	// failure. Default: "all".
	FailureMode string `json:"failure_mode,omitempty" binding:"omitempty,oneof=all batch"`

	// LLMAPIKey optionally overrides the server's extraction-service key (BYOK).
	LLMAPIKey string `json:"llm_api_key,omitempty"`

	// LLMModel overrides the extraction model.
	LLMModel string `json:"llm_model,omitempty"`

	// LLMBaseURL overrides the extraction-service base URL.
	LLMBaseURL string `json:"llm_base_url,omitempty" binding:"omitempty,url"`

	// MaxAgeMs enables result caching on the sync endpoint: a cached result
	// younger than this many milliseconds is returned without harvesting.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`

	// WebhookURL, if set, receives a signed completion event (sync endpoint).
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *HarvestRequest) Defaults() {
	if r.Mode == "" {
		r.Mode = ModeSearch
	}
	if r.FailureMode == "" {
		r.FailureMode = FailureModeAll
	}
}

// HarvestResult is the sole terminal payload of one successful invocation.
// Exactly one of Results and Enriched is populated, depending on Mode.
type HarvestResult struct {
	Results  []StructuredRecord `json:"results,omitempty"`
	Enriched []EnrichedRecord   `json:"enriched,omitempty"`
}

// Len returns the record count regardless of pipeline mode.
func (r *HarvestResult) Len() int {
	if len(r.Enriched) > 0 {
		return len(r.Enriched)
	}
	return len(r.Results)
}

// HarvestResponse wraps a HarvestResult for the sync endpoint.
type HarvestResponse struct {
	Success bool           `json:"success"`
	Result  *HarvestResult `json:"result,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}
