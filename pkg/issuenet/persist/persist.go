// Package persist writes one clustering run into a store.Store inside a
// single transaction.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aigent/issuenet/internal/logging"
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/network"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

// CountMode selects what an issue's total_count reports.
type CountMode string

const (
	// CountAttempted stores the cluster size, skipped duplicates included.
	CountAttempted CountMode = "attempted"
	// CountStored stores the number of article rows linked to the issue
	// after the write.
	CountStored CountMode = "stored"
)

// Config controls how runs are mapped onto storage rows.
type Config struct {
	Topic            string            `yaml:"topic"`
	CountMode        CountMode         `yaml:"count_mode"`
	PublisherCodes   map[string]string `yaml:"publisher_codes"`
	ArgumentKeywords int               `yaml:"argument_keywords"`
	StatsKeywords    int               `yaml:"stats_keywords"`
}

// DefaultConfig returns the settings used by the nightly job.
func DefaultConfig() Config {
	return Config{
		Topic:            "정치",
		CountMode:        CountAttempted,
		PublisherCodes:   DefaultPublisherCodes(),
		ArgumentKeywords: 5,
		StatsKeywords:    10,
	}
}

// DefaultPublisherCodes maps outlet names to their portal office codes.
func DefaultPublisherCodes() map[string]string {
	return map[string]string{
		"한겨레":  "028",
		"경향신문": "032",
		"조선일보": "023",
		"동아일보": "020",
		"연합뉴스": "001",
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.CountMode {
	case CountAttempted, CountStored:
	default:
		return fmt.Errorf("%w: persist.count_mode %q", internalerr.ErrInvalidConfig, c.CountMode)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: persist.topic is empty", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Member is one clustered article with its extracted keywords.
type Member struct {
	Article    corpus.Article
	Keywords   []string
	Confidence float64
}

// IssueInput is one ranked cluster ready to be stored.
type IssueInput struct {
	Name     string
	Keywords []string
	Edges    []network.Edge
	Members  []Member
}

// Batch is everything one run writes. An empty Topic falls back to the
// configured topic; a zero RunDate means now.
type Batch struct {
	Topic   string
	RunDate time.Time
	Issues  []IssueInput
}

// IssueSummary reports what was written for one issue.
type IssueSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TotalCount int    `json:"total_count"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	Relations  int    `json:"relations"`
}

// Summary reports what a committed run wrote.
type Summary struct {
	TopicID          int64          `json:"topic_id"`
	Issues           []IssueSummary `json:"issues"`
	ArticlesInserted int            `json:"articles_inserted"`
	ArticlesSkipped  int            `json:"articles_skipped"`
	Relations        int            `json:"relations"`
}

// IssueError is returned when writing the issue at Index failed. The
// whole run has been rolled back by then.
type IssueError struct {
	Index int
	Name  string
	Err   error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("persist issue %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *IssueError) Unwrap() error { return e.Err }

// Writer maps cluster results onto store rows.
type Writer struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Writer. A nil logger uses slog.Default().
func New(st store.Store, cfg Config, logger *slog.Logger) *Writer {
	if cfg.CountMode == "" {
		cfg.CountMode = CountAttempted
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}
	return &Writer{
		store:  st,
		cfg:    cfg,
		logger: logging.OrDefault(logger).With("component", "persist"),
		now:    time.Now,
	}
}

// Write stores the batch in one transaction. Articles whose URL is
// already stored are skipped and never updated. Any other failure rolls
// back the entire batch.
func (w *Writer) Write(ctx context.Context, b Batch) (Summary, error) {
	if len(b.Issues) == 0 {
		return Summary{}, nil
	}
	topicName := b.Topic
	if topicName == "" {
		topicName = w.cfg.Topic
	}
	now := w.now().UTC()
	runDate := b.RunDate
	if runDate.IsZero() {
		runDate = now
	}

	var sum Summary
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		sum = Summary{}
		topic, err := tx.EnsureTopic(ctx, topicName)
		if err != nil {
			return err
		}
		sum.TopicID = topic.ID

		publishers := make(map[string]int64)
		for i, in := range b.Issues {
			is, err := w.writeIssue(ctx, tx, topic.ID, publishers, in, runDate, now)
			if err != nil {
				return &IssueError{Index: i, Name: in.Name, Err: err}
			}
			sum.Issues = append(sum.Issues, is)
			sum.ArticlesInserted += is.Inserted
			sum.ArticlesSkipped += is.Skipped
			sum.Relations += is.Relations
		}

		if err := tx.UpsertDailyTopicStats(ctx, store.DailyTopicStats{
			Date:         runDate,
			TopicID:      topic.ID,
			ArticleCount: sum.ArticlesInserted,
			TopKeywords:  topKeywords(b.Issues, w.cfg.StatsKeywords),
		}); err != nil {
			return fmt.Errorf("daily topic stats: %w", err)
		}
		return nil
	})
	if err != nil {
		var ie *IssueError
		if errors.As(err, &ie) {
			w.logger.Error("run rolled back", "issue_index", ie.Index, "issue", ie.Name, "err", ie.Err)
		} else {
			w.logger.Error("run rolled back", "err", err)
		}
		return Summary{}, err
	}

	w.logger.Info("run persisted",
		"topic", topicName,
		"issues", len(sum.Issues),
		"articles_inserted", sum.ArticlesInserted,
		"articles_skipped", sum.ArticlesSkipped,
		"relations", sum.Relations)
	return sum, nil
}

func (w *Writer) writeIssue(ctx context.Context, tx store.Tx, topicID int64, publishers map[string]int64,
	in IssueInput, runDate, now time.Time) (IssueSummary, error) {
	is := IssueSummary{Name: in.Name}
	id, err := tx.CreateIssue(ctx, store.Issue{
		Name:       in.Name,
		Keywords:   in.Keywords,
		TotalCount: len(in.Members),
		CreatedAt:  now,
	})
	if err != nil {
		return is, err
	}
	is.ID = id

	for _, m := range in.Members {
		pubID, err := w.publisherID(ctx, tx, publishers, m.Article.Publisher)
		if err != nil {
			return is, err
		}
		args, err := keyArguments(m.Keywords, w.cfg.ArgumentKeywords)
		if err != nil {
			return is, err
		}
		issueID := id
		analyzed := now
		_, inserted, err := tx.InsertArticle(ctx, store.Article{
			TopicID:      topicID,
			IssueID:      &issueID,
			PublisherID:  pubID,
			Title:        m.Article.Title,
			URL:          m.Article.URL,
			ImageURLs:    m.Article.ImageURLs(),
			PublishedAt:  m.Article.PublishedAt,
			KeyArguments: args,
			AnalyzedAt:   &analyzed,
			Body:         m.Article.Body,
			CollectedAt:  now,
		})
		if err != nil {
			return is, err
		}
		if inserted {
			is.Inserted++
		} else {
			is.Skipped++
		}
	}

	for _, e := range in.Edges {
		if e.A == e.B || e.Weight <= 0 {
			continue
		}
		if err := tx.AddKeywordRelation(ctx, store.KeywordRelation{
			Date:      runDate,
			IssueID:   id,
			KeywordA:  e.A,
			KeywordB:  e.B,
			Frequency: e.Weight,
		}); err != nil {
			return is, err
		}
		is.Relations++
	}

	is.TotalCount = len(in.Members)
	if w.cfg.CountMode == CountStored {
		n, err := tx.CountIssueArticles(ctx, id)
		if err != nil {
			return is, err
		}
		is.TotalCount = n
	}
	if err := tx.SetIssueTotalCount(ctx, id, is.TotalCount); err != nil {
		return is, err
	}
	return is, nil
}

func (w *Writer) publisherID(ctx context.Context, tx store.Tx, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	p, err := tx.EnsurePublisher(ctx, name, w.cfg.PublisherCodes[name])
	if err != nil {
		return 0, err
	}
	cache[name] = p.ID
	return p.ID, nil
}

// keyArguments stores the article's leading keywords as a JSON array
// until a summarisation step fills the field properly.
func keyArguments(keywords []string, n int) (string, error) {
	if n > 0 && len(keywords) > n {
		keywords = keywords[:n]
	}
	if len(keywords) == 0 {
		return "", nil
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// topKeywords merges the issues' keyword lists in rank order.
func topKeywords(issues []IssueInput, n int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range issues {
		for _, kw := range in.Keywords {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
			if n > 0 && len(out) == n {
				return out
			}
		}
	}
	return out
}
