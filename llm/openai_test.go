package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejasvajaitly/linkedin-scraper-api/llm"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
)

// chatServer returns an httptest server that replies to /chat/completions
// with the given message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testParams(baseURL string) llm.Params {
	return llm.Params{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: baseURL}
}

func TestClient_ExtractRecords(t *testing.T) {
	t.Parallel()

	t.Run("parses a plain JSON array", func(t *testing.T) {
		t.Parallel()

		srv := chatServer(t, `[{"name":"Alice","headline":"Engineer"},{"name":"Bob"}]`)
		defer srv.Close()

		c := llm.NewClient(nil)
		records, err := c.ExtractRecords(context.Background(), []string{"s1", "s2"}, testParams(srv.URL))

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Alice", records[0].Name)
		assert.Equal(t, "Engineer", records[0].Headline)
		assert.Equal(t, "Bob", records[1].Name)
	})

	t.Run("strips markdown code fences before parsing", func(t *testing.T) {
		t.Parallel()

		srv := chatServer(t, "```json\n[{\"name\":\"Alice\"}]\n```")
		defer srv.Close()

		c := llm.NewClient(nil)
		records, err := c.ExtractRecords(context.Background(), []string{"s1"}, testParams(srv.URL))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Alice", records[0].Name)
	})

	t.Run("fails the batch on unparsable content", func(t *testing.T) {
		t.Parallel()

		srv := chatServer(t, "I could not extract anything, sorry.")
		defer srv.Close()

		c := llm.NewClient(nil)
		_, err := c.ExtractRecords(context.Background(), []string{"s1"}, testParams(srv.URL))

		require.Error(t, err)
		var he *models.HarvestError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, models.ErrCodeLLMFailure, he.Code)
	})

	t.Run("treats an in-body error object as a failure", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
		}))
		defer srv.Close()

		c := llm.NewClient(nil)
		_, err := c.ExtractRecords(context.Background(), []string{"s1"}, testParams(srv.URL))

		require.Error(t, err)
		var he *models.HarvestError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, models.ErrCodeLLMFailure, he.Code)
		assert.Contains(t, he.Message, "model overloaded")
	})

	t.Run("classifies HTTP status codes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			status   int
			wantCode string
		}{
			{"401 is an auth failure", http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
			{"403 is an auth failure", http.StatusForbidden, models.ErrCodeLLMAuthFailure},
			{"429 is rate limited", http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
			{"500 is a generic failure", http.StatusInternalServerError, models.ErrCodeLLMFailure},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":{"message":"nope"}}`))
				}))
				defer srv.Close()

				c := llm.NewClient(nil)
				_, err := c.ExtractRecords(context.Background(), []string{"s1"}, testParams(srv.URL))

				require.Error(t, err)
				var he *models.HarvestError
				require.True(t, errors.As(err, &he))
				assert.Equal(t, tt.wantCode, he.Code)
			})
		}
	})
}
