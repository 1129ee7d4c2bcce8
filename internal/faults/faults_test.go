package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Run("tagged error reports its kind", func(t *testing.T) {
		err := New(KindRateLimit, "llm.complete", "per-minute ceiling reached")
		assert.Equal(t, KindRateLimit, KindOf(err))
	})

	t.Run("wrapped cause keeps outer tag", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(KindNetwork, "store.connect", cause)
		require.Error(t, err)
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("tag survives fmt.Errorf wrapping", func(t *testing.T) {
		inner := New(KindAuth, "llm.complete", "invalid api key")
		outer := fmt.Errorf("evaluating job: %w", inner)
		assert.Equal(t, KindAuth, KindOf(outer))
		assert.True(t, IsKind(outer, KindAuth))
	})

	t.Run("untagged error is unknown", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(KindNetwork, "op", nil))
	})
}

func TestNotImplemented(t *testing.T) {
	err := NotImplemented("captcha.solve.recaptcha")
	require.Error(t, err)
	assert.Equal(t, KindNotImplemented, KindOf(err))
	assert.Contains(t, err.Error(), "not implemented")
	assert.Contains(t, err.Error(), "captcha.solve.recaptcha")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"tagged passes through", New(KindQuotaExceeded, "", "quota"), KindQuotaExceeded},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"rate limit keyword", errors.New("429 Too Many Requests"), KindRateLimit},
		{"auth keyword", errors.New("Invalid API key provided"), KindAuth},
		{"quota keyword", errors.New("insufficient_quota: billing hard limit"), KindQuotaExceeded},
		{"captcha keyword", errors.New("page shows CAPTCHA challenge"), KindCaptchaRequired},
		{"connection keyword", errors.New("database connection failed"), KindNetwork},
		{"timeout keyword", errors.New("operation timed out"), KindTimeout},
		{"unknown", errors.New("something odd"), KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.Equal(t, KindAuth, ClassifyHTTPStatus(401))
	assert.Equal(t, KindAuth, ClassifyHTTPStatus(403))
	assert.Equal(t, KindQuotaExceeded, ClassifyHTTPStatus(402))
	assert.Equal(t, KindRateLimit, ClassifyHTTPStatus(429))
	assert.Equal(t, KindTimeout, ClassifyHTTPStatus(504))
	assert.Equal(t, KindValidation, ClassifyHTTPStatus(422))
	assert.Equal(t, KindNetwork, ClassifyHTTPStatus(500))
	assert.Equal(t, KindUnknown, ClassifyHTTPStatus(204))
}

func TestPolicyHelpers(t *testing.T) {
	assert.True(t, Retryable(New(KindNetwork, "", "")))
	assert.True(t, Retryable(New(KindTimeout, "", "")))
	assert.False(t, Retryable(New(KindRateLimit, "", "")))
	assert.False(t, Retryable(New(KindAuth, "", "")))

	assert.True(t, Critical(New(KindAuth, "", "")))
	assert.False(t, Critical(New(KindNetwork, "", "")))
}
