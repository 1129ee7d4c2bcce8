// Package export pushes submitted applications to external trackers. The
// CSV sink keeps a local spreadsheet-importable log; the webhook sink
// posts rows to whatever automation the operator points it at.
package export

import (
	"context"

	"github.com/seekerworks/jobpilot/internal/domain"
)

// Sink receives one row per recorded application. Append must be safe to
// call from the pipeline goroutine; failures are reported, not retried
// here.
type Sink interface {
	Name() string
	Append(ctx context.Context, app domain.Application) error
}
