package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Model)
		assert.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSuccess(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{
		"choices": [{"message": {"role": "assistant", "content": "Score: 8/10 - good fit"}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 25}
	}`)

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 5 * time.Second})
	got, err := c.Complete(context.Background(), Request{
		Model:     "gpt-3.5-turbo",
		Messages:  []Message{{Role: "user", Content: "rate this job"}},
		MaxTokens: 150,
	})
	require.NoError(t, err)

	assert.Equal(t, "Score: 8/10 - good fit", got.Content)
	assert.Equal(t, 120, got.PromptTokens)
	assert.Equal(t, 25, got.OutputTokens)
}

func TestCompleteErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   faults.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, faults.KindRateLimit},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"Invalid API key"}}`, faults.KindAuth},
		{"quota", http.StatusPaymentRequired, `{"error":{"message":"insufficient_quota"}}`, faults.KindQuotaExceeded},
		{"validation", http.StatusBadRequest, `{"error":{"message":"invalid request"}}`, faults.KindValidation},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, faults.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, tt.status, tt.body)
			c := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})

			_, err := c.Complete(context.Background(), Request{
				Model:    "gpt-3.5-turbo",
				Messages: []Message{{Role: "user", Content: "x"}},
			})
			require.Error(t, err)
			assert.Equal(t, tt.kind, faults.KindOf(err), "got %v", err)
		})
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"choices": [], "usage": {}}`)
	c := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})

	_, err := c.Complete(context.Background(), Request{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}
