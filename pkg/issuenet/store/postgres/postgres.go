// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

// pool is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it as well.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type pgStore struct {
	pool pool
	sb   sq.StatementBuilderType
}

// Open connects to dsn, verifies the connection and creates the schema if
// needed.
func Open(ctx context.Context, dsn string) (store.Store, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: ping: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := p.Exec(ctx, schema); err != nil {
		p.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return newStore(p), nil
}

func newStore(p pool) *pgStore {
	return &pgStore{pool: p, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Close releases the pool.
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS topics (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS issues (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	keywords TEXT[] NOT NULL DEFAULT '{}',
	total_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_issues_total_count ON issues(total_count DESC);
CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues(created_at DESC);

CREATE TABLE IF NOT EXISTS publishers (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	code TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id BIGSERIAL PRIMARY KEY,
	topic_id BIGINT NOT NULL REFERENCES topics(id),
	issue_id BIGINT REFERENCES issues(id) ON DELETE SET NULL,
	publisher_id BIGINT NOT NULL REFERENCES publishers(id),
	title TEXT NOT NULL,
	url TEXT UNIQUE NOT NULL,
	image_urls TEXT[] NOT NULL DEFAULT '{}',
	published_at TIMESTAMPTZ NOT NULL,
	summary TEXT,
	bias TEXT,
	bias_score DOUBLE PRECISION,
	key_arguments JSONB,
	analyzed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_articles_issue ON articles(issue_id, published_at DESC);

CREATE TABLE IF NOT EXISTS article_bodies (
	article_id BIGINT PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
	raw_content TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS keyword_relations (
	date DATE NOT NULL,
	issue_id BIGINT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	keyword_a TEXT NOT NULL,
	keyword_b TEXT NOT NULL,
	frequency BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY(date, issue_id, keyword_a, keyword_b),
	CHECK(keyword_a < keyword_b)
);
CREATE INDEX IF NOT EXISTS idx_keyword_relations_a ON keyword_relations(keyword_a);
CREATE INDEX IF NOT EXISTS idx_keyword_relations_b ON keyword_relations(keyword_b);

CREATE TABLE IF NOT EXISTS daily_topic_stats (
	date DATE NOT NULL,
	topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	article_count INTEGER NOT NULL DEFAULT 0,
	bias_distribution JSONB NOT NULL DEFAULT '{}',
	top_keywords TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY(date, topic_id)
);
`

// InTx runs fn in a transaction, rolling back on error or panic.
func (s *pgStore) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", internalerr.ErrStoreUnavailable, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(&pgTx{tx: tx})
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) EnsureTopic(ctx context.Context, name string) (store.Topic, error) {
	const stmt = `
INSERT INTO topics (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, created_at`
	topic := store.Topic{Name: name}
	if err := t.tx.QueryRow(ctx, stmt, name).Scan(&topic.ID, &topic.CreatedAt); err != nil {
		return store.Topic{}, fmt.Errorf("ensure topic %q: %w", name, err)
	}
	topic.CreatedAt = topic.CreatedAt.UTC()
	return topic, nil
}

func (t *pgTx) EnsurePublisher(ctx context.Context, name, code string) (store.Publisher, error) {
	const insert = `
INSERT INTO publishers (name, code) VALUES ($1, $2)
ON CONFLICT DO NOTHING
RETURNING id, code`
	p := store.Publisher{Name: name}
	for attempt := 0; attempt < store.MaxCodeAttempts; attempt++ {
		candidate := store.PublisherCode(name, code, attempt)
		err := t.tx.QueryRow(ctx, insert, name, candidate).Scan(&p.ID, &p.Code)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Publisher{}, fmt.Errorf("ensure publisher %q: %w", name, err)
		}
		// either the name exists or the code belongs to someone else
		err = t.tx.QueryRow(ctx, `SELECT id, code FROM publishers WHERE name = $1`, name).Scan(&p.ID, &p.Code)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return store.Publisher{}, fmt.Errorf("ensure publisher %q: %w", name, err)
		}
	}
	return store.Publisher{}, fmt.Errorf("ensure publisher %q: no free code after %d attempts", name, store.MaxCodeAttempts)
}

func (t *pgTx) CreateIssue(ctx context.Context, issue store.Issue) (int64, error) {
	created := issue.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	keywords := issue.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO issues (name, keywords, total_count, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		issue.Name, keywords, issue.TotalCount, created.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create issue %q: %w", issue.Name, err)
	}
	return id, nil
}

func (t *pgTx) InsertArticle(ctx context.Context, a store.Article) (int64, bool, error) {
	images := a.ImageURLs
	if images == nil {
		images = []string{}
	}
	const stmt = `
INSERT INTO articles (topic_id, issue_id, publisher_id, title, url, image_urls, published_at,
	summary, bias, bias_score, key_arguments, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
ON CONFLICT (url) DO NOTHING
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, stmt,
		a.TopicID, a.IssueID, a.PublisherID, a.Title, a.URL, images, a.PublishedAt.UTC(),
		nullString(a.Summary), nullString(a.Bias), a.BiasScore, nullString(a.KeyArguments), a.AnalyzedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert article %s: %w", a.URL, err)
	}

	collected := a.CollectedAt
	if collected.IsZero() {
		collected = time.Now()
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO article_bodies (article_id, raw_content, collected_at) VALUES ($1, $2, $3)`,
		id, a.Body, collected.UTC()); err != nil {
		return 0, false, fmt.Errorf("insert article body %s: %w", a.URL, err)
	}
	return id, true, nil
}

func (t *pgTx) AddKeywordRelation(ctx context.Context, rel store.KeywordRelation) error {
	if rel.KeywordA == rel.KeywordB {
		return nil
	}
	a, b := store.CanonicalPair(rel.KeywordA, rel.KeywordB)
	const stmt = `
INSERT INTO keyword_relations (date, issue_id, keyword_a, keyword_b, frequency)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (date, issue_id, keyword_a, keyword_b) DO UPDATE SET
	frequency = keyword_relations.frequency + EXCLUDED.frequency`
	if _, err := t.tx.Exec(ctx, stmt, store.Day(rel.Date), rel.IssueID, a, b, rel.Frequency); err != nil {
		return fmt.Errorf("add keyword relation %s-%s: %w", a, b, err)
	}
	return nil
}

func (t *pgTx) CountIssueArticles(ctx context.Context, issueID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE issue_id = $1`, issueID).Scan(&n)
	return n, err
}

func (t *pgTx) SetIssueTotalCount(ctx context.Context, issueID int64, count int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE issues SET total_count = $1 WHERE id = $2`, count, issueID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("issue %d: %w", issueID, internalerr.ErrNotFound)
	}
	return nil
}

func (t *pgTx) UpsertDailyTopicStats(ctx context.Context, s store.DailyTopicStats) error {
	bias, err := encodeJSON(s.BiasDistribution, "{}")
	if err != nil {
		return err
	}
	keywords := s.TopKeywords
	if keywords == nil {
		keywords = []string{}
	}
	const stmt = `
INSERT INTO daily_topic_stats (date, topic_id, article_count, bias_distribution, top_keywords)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (date, topic_id) DO UPDATE SET
	article_count = daily_topic_stats.article_count + EXCLUDED.article_count,
	bias_distribution = EXCLUDED.bias_distribution,
	top_keywords = EXCLUDED.top_keywords`
	_, err = t.tx.Exec(ctx, stmt, store.Day(s.Date), s.TopicID, s.ArticleCount, bias, keywords)
	return err
}
