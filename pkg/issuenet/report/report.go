// Package report describes the outcome of a pipeline run and writes the
// ranked-issue CSV that editors review.
package report

import (
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigent/issuenet/pkg/issuenet/network"
)

// PubDateLayout is the timestamp format used in the CSV.
const PubDateLayout = "2006-01-02 15:04:05"

// IDs hands out monotonic ULIDs for runs.
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates an id source seeded from crypto/rand.
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new id, sortable by creation time.
func (g *IDs) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), g.entropy).String()
}

// Source is one representative article of an issue.
type Source struct {
	Title       string    `json:"title"`
	Press       string    `json:"press"`
	URL         string    `json:"link"`
	PublishedAt time.Time `json:"pub_date"`
	Confidence  float64   `json:"confidence"`
}

// Issue is one ranked issue of a run.
type Issue struct {
	Rank            int           `json:"rank"`
	ID              int64         `json:"id,omitempty"`
	Label           string        `json:"label"`
	Fallback        bool          `json:"label_fallback"`
	TotalCount      int           `json:"total_count"`
	Keywords        []string      `json:"keywords"`
	Graph           network.Graph `json:"graph"`
	Representatives []Source      `json:"representatives"`
}

// Report summarizes a run.
type Report struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Loaded           int       `json:"loaded"`
	RowsSkipped      int       `json:"rows_skipped"`
	Duplicates       int       `json:"duplicates"`
	Clusters         int       `json:"clusters"`
	Unclustered      int       `json:"unclustered"`
	ArticlesInserted int       `json:"articles_inserted"`
	ArticlesSkipped  int       `json:"articles_skipped"`
	DryRun           bool      `json:"dry_run"`
	Issues           []Issue   `json:"issues"`
}

// Fallbacks counts issues whose label fell back to a headline.
func (r Report) Fallbacks() int {
	n := 0
	for _, is := range r.Issues {
		if is.Fallback {
			n++
		}
	}
	return n
}

var csvHeader = []string{"issue_rank", "issue_label", "total_count", "article_rank", "title", "press", "pub_date", "link"}

// WriteCSV writes one row per representative article, UTF-8 with a byte
// order mark so spreadsheet tools detect the encoding.
func (r Report) WriteCSV(w io.Writer) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, is := range r.Issues {
		for i, src := range is.Representatives {
			row := []string{
				strconv.Itoa(is.Rank),
				is.Label,
				strconv.Itoa(is.TotalCount),
				strconv.Itoa(i + 1),
				src.Title,
				src.Press,
				formatPubDate(src.PublishedAt),
				src.URL,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV report to path.
func (r Report) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.WriteCSV(f)
}

func formatPubDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(PubDateLayout)
}
