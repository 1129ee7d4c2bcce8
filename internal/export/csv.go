package export

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

var csvHeader = []string{"submitted_at", "title", "company", "link", "source", "score", "status", "detail"}

// CSV appends applications to a local file, writing the header only when
// creating it.
type CSV struct {
	path string
	mu   sync.Mutex
}

// NewCSV creates the sink; the file is created lazily on first append.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Name() string { return "csv" }

// Append writes one row. The file is opened per call so external log
// rotation does not wedge the sink.
func (c *CSV) Append(_ context.Context, app domain.Application) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, statErr := os.Stat(c.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return faults.Wrap(faults.KindValidation, "export.csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return faults.Wrap(faults.KindValidation, "export.csv", err)
		}
	}
	row := []string{
		app.SubmittedAt.Format(time.RFC3339),
		app.JobTitle,
		app.Company,
		app.Link,
		app.Source,
		strconv.FormatFloat(app.Score, 'f', 1, 64),
		string(app.Status),
		app.Detail,
	}
	if err := w.Write(row); err != nil {
		return faults.Wrap(faults.KindValidation, "export.csv", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return faults.Wrap(faults.KindValidation, "export.csv", err)
	}
	return nil
}
