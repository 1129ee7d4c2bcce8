package faults

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Classify assigns a Kind to an error that arrived without a tag, typically
// from a vendor SDK. Tagged errors pass through with their own kind.
//
// Typed checks run first; the keyword table is the legacy last resort and is
// deliberately small. Phrases like "database connection failed" classify as
// network: at this boundary they describe transport reachability, and our own
// storage layer tags its errors before they ever get here.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return classifyByKeyword(err.Error())
}

var keywordKinds = []struct {
	kind  Kind
	words []string
}{
	{KindRateLimit, []string{"rate limit", "too many requests", "429"}},
	{KindQuotaExceeded, []string{"quota", "insufficient_quota", "billing"}},
	{KindAuth, []string{"unauthorized", "invalid api key", "authentication", "forbidden", "401", "403"}},
	{KindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{KindCaptchaRequired, []string{"captcha", "challenge"}},
	{KindValidation, []string{"invalid request", "validation", "bad request", "400"}},
	{KindNetwork, []string{"connection", "network", "dns", "refused", "reset", "unreachable", "broken pipe", "eof"}},
}

func classifyByKeyword(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, entry := range keywordKinds {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.kind
			}
		}
	}
	return KindUnknown
}

// ClassifyHTTPStatus maps an HTTP status code from a vendor API to a Kind.
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 402:
		return KindQuotaExceeded
	case status == 429:
		return KindRateLimit
	case status == 408 || status == 504:
		return KindTimeout
	case status == 400 || status == 422:
		return KindValidation
	case status >= 500:
		return KindNetwork
	default:
		return KindUnknown
	}
}
