// Package store defines persistence for issues, articles, and keyword
// relations. Implementations live in the sqlite, postgres, and memstore
// subpackages.
package store

import (
	"context"
	"fmt"
	"time"
)

// Store is the main interface for persisting and querying issue data
type Store interface {
	Close() error

	// InTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back on error or panic.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Issues
	TopIssues(ctx context.Context, limit int) ([]Issue, error)
	RecentIssues(ctx context.Context, limit int) ([]Issue, error)
	GetIssue(ctx context.Context, id int64) (Issue, error)

	// Articles
	ArticlesByIssue(ctx context.Context, issueID int64, limit int) ([]Article, error)
	ArticleByURL(ctx context.Context, url string) (Article, bool, error)

	// Keyword relations
	RelationsByIssues(ctx context.Context, issueIDs []int64) ([]KeywordRelation, error)
	RelationsByKeyword(ctx context.Context, keyword string, limit int) ([]KeywordRelation, error)
	MentionSeries(ctx context.Context, keyword string) ([]MentionPoint, error)

	// Stats
	DailyTopicStats(ctx context.Context, topicID int64) ([]DailyTopicStats, error)
	Counts(ctx context.Context) (Counts, error)
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	// EnsureTopic returns the topic with name, creating it if absent.
	EnsureTopic(ctx context.Context, name string) (Topic, error)
	// EnsurePublisher returns the publisher with name, creating it with
	// code if absent. An existing publisher keeps its code. When code is
	// empty or already taken by another publisher, the candidates from
	// PublisherCode are tried in turn.
	EnsurePublisher(ctx context.Context, name, code string) (Publisher, error)
	CreateIssue(ctx context.Context, issue Issue) (int64, error)
	// InsertArticle stores a new article and its body. When the URL is
	// already stored nothing is written and inserted is false.
	InsertArticle(ctx context.Context, a Article) (id int64, inserted bool, err error)
	// AddKeywordRelation adds rel.Frequency to the (date, issue, pair) row.
	AddKeywordRelation(ctx context.Context, rel KeywordRelation) error
	CountIssueArticles(ctx context.Context, issueID int64) (int, error)
	SetIssueTotalCount(ctx context.Context, issueID int64, count int) error
	// UpsertDailyTopicStats adds ArticleCount to the day's row and
	// replaces its keyword and bias summaries.
	UpsertDailyTopicStats(ctx context.Context, s DailyTopicStats) error
}

// Topic is a standing policy or subject category.
type Topic struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a persisted cluster of articles.
type Issue struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Keywords   []string  `json:"keywords"`
	TotalCount int       `json:"total_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher is a news outlet.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Article is a persisted article with its body text.
type Article struct {
	ID            int64      `json:"id"`
	TopicID       int64      `json:"topic_id"`
	IssueID       *int64     `json:"issue_id,omitempty"`
	PublisherID   int64      `json:"publisher_id"`
	PublisherName string     `json:"press,omitempty"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	ImageURLs     []string   `json:"image_urls,omitempty"`
	PublishedAt   time.Time  `json:"published_at"`
	Summary       string     `json:"summary,omitempty"`
	Bias          string     `json:"bias,omitempty"`
	BiasScore     *float64   `json:"bias_score,omitempty"`
	KeyArguments  string     `json:"key_arguments,omitempty"`
	AnalyzedAt    *time.Time `json:"analyzed_at,omitempty"`
	Body          string     `json:"-"`
	CollectedAt   time.Time  `json:"-"`
}

// KeywordRelation is one undirected co-occurrence edge of an issue on a day.
// KeywordA sorts before KeywordB.
type KeywordRelation struct {
	Date      time.Time `json:"date"`
	IssueID   int64     `json:"issue_id"`
	KeywordA  string    `json:"keyword_a"`
	KeywordB  string    `json:"keyword_b"`
	Frequency int64     `json:"frequency"`
}

// MentionPoint is the summed relation frequency of a keyword on one day.
type MentionPoint struct {
	Date      time.Time `json:"date"`
	Frequency int64     `json:"frequency"`
}

// DailyTopicStats summarizes one topic on one day.
type DailyTopicStats struct {
	Date             time.Time      `json:"date"`
	TopicID          int64          `json:"topic_id"`
	ArticleCount     int            `json:"article_count"`
	TopKeywords      []string       `json:"top_keywords"`
	BiasDistribution map[string]int `json:"bias_distribution"`
}

// Counts reports row totals, mostly for checks and tests.
type Counts struct {
	Topics     int `json:"topics"`
	Issues     int `json:"issues"`
	Publishers int `json:"publishers"`
	Articles   int `json:"articles"`
	Relations  int `json:"relations"`
}

// Day truncates t to its calendar date, returned as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanonicalPair orders two keywords so the smaller comes first.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// MaxCodeAttempts bounds the candidate codes tried for a new publisher.
const MaxCodeAttempts = 50

// PublisherCode returns the code to try for a new publisher on the given
// attempt: the requested code, then the name, then the name with a numeric
// suffix. An empty code starts from the name.
func PublisherCode(name, code string, attempt int) string {
	switch {
	case attempt == 0 && code != "":
		return code
	case attempt <= 1:
		return name
	default:
		return fmt.Sprintf("%s-%d", name, attempt)
	}
}
