package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

// timeLayout sorts lexically in chronological order for UTC values.
const (
	timeLayout = "2006-01-02T15:04:05.000000Z"
	dateLayout = "2006-01-02"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQLite opens a SQLite database with WAL mode and foreign keys enabled
// and creates the schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	// One connection keeps PRAGMAs and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &sqliteStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	total_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_issues_total_count ON issues(total_count DESC);
CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues(created_at DESC);

CREATE TABLE IF NOT EXISTS publishers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	code TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id INTEGER NOT NULL,
	issue_id INTEGER,
	publisher_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	url TEXT UNIQUE NOT NULL,
	image_urls TEXT NOT NULL DEFAULT '[]',
	published_at TEXT NOT NULL,
	summary TEXT,
	bias TEXT,
	bias_score REAL,
	key_arguments TEXT,
	analyzed_at TEXT,
	FOREIGN KEY(topic_id) REFERENCES topics(id),
	FOREIGN KEY(issue_id) REFERENCES issues(id) ON DELETE SET NULL,
	FOREIGN KEY(publisher_id) REFERENCES publishers(id)
);
CREATE INDEX IF NOT EXISTS idx_articles_issue ON articles(issue_id, published_at DESC);

CREATE TABLE IF NOT EXISTS article_bodies (
	article_id INTEGER PRIMARY KEY,
	raw_content TEXT NOT NULL,
	collected_at TEXT NOT NULL,
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS keyword_relations (
	date TEXT NOT NULL,
	issue_id INTEGER NOT NULL,
	keyword_a TEXT NOT NULL,
	keyword_b TEXT NOT NULL,
	frequency INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(date, issue_id, keyword_a, keyword_b),
	CHECK(keyword_a < keyword_b),
	FOREIGN KEY(issue_id) REFERENCES issues(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_keyword_relations_a ON keyword_relations(keyword_a);
CREATE INDEX IF NOT EXISTS idx_keyword_relations_b ON keyword_relations(keyword_b);

CREATE TABLE IF NOT EXISTS daily_topic_stats (
	date TEXT NOT NULL,
	topic_id INTEGER NOT NULL,
	article_count INTEGER NOT NULL DEFAULT 0,
	bias_distribution TEXT NOT NULL DEFAULT '{}',
	top_keywords TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY(date, topic_id),
	FOREIGN KEY(topic_id) REFERENCES topics(id) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// InTx runs fn inside a database transaction
func (s *sqliteStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", internalerr.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// sqliteTx implements store.Tx
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) EnsureTopic(ctx context.Context, name string) (store.Topic, error) {
	const stmt = `
INSERT INTO topics (name, created_at) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET name=excluded.name
RETURNING id, created_at;
`
	topic := store.Topic{Name: name}
	var created string
	if err := t.tx.QueryRowContext(ctx, stmt, name, formatTime(time.Now())).Scan(&topic.ID, &created); err != nil {
		return store.Topic{}, fmt.Errorf("ensure topic %q: %w", name, err)
	}
	topic.CreatedAt = parseTime(created)
	return topic, nil
}

func (t *sqliteTx) EnsurePublisher(ctx context.Context, name, code string) (store.Publisher, error) {
	const insert = `
INSERT INTO publishers (name, code) VALUES (?, ?)
ON CONFLICT DO NOTHING
RETURNING id, code;
`
	p := store.Publisher{Name: name}
	for attempt := 0; attempt < store.MaxCodeAttempts; attempt++ {
		candidate := store.PublisherCode(name, code, attempt)
		err := t.tx.QueryRowContext(ctx, insert, name, candidate).Scan(&p.ID, &p.Code)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Publisher{}, fmt.Errorf("ensure publisher %q: %w", name, err)
		}
		// either the name exists or the code belongs to someone else
		err = t.tx.QueryRowContext(ctx, `SELECT id, code FROM publishers WHERE name = ?`, name).Scan(&p.ID, &p.Code)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Publisher{}, fmt.Errorf("ensure publisher %q: %w", name, err)
		}
	}
	return store.Publisher{}, fmt.Errorf("ensure publisher %q: no free code after %d attempts", name, store.MaxCodeAttempts)
}

func (t *sqliteTx) CreateIssue(ctx context.Context, issue store.Issue) (int64, error) {
	keywords, err := encodeJSON(issue.Keywords, "[]")
	if err != nil {
		return 0, err
	}
	created := issue.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO issues (name, keywords, total_count, created_at) VALUES (?, ?, ?, ?)`,
		issue.Name, keywords, issue.TotalCount, formatTime(created))
	if err != nil {
		return 0, fmt.Errorf("create issue %q: %w", issue.Name, err)
	}
	return res.LastInsertId()
}

func (t *sqliteTx) InsertArticle(ctx context.Context, a store.Article) (int64, bool, error) {
	images, err := encodeJSON(a.ImageURLs, "[]")
	if err != nil {
		return 0, false, err
	}
	const stmt = `
INSERT INTO articles (topic_id, issue_id, publisher_id, title, url, image_urls, published_at,
	summary, bias, bias_score, key_arguments, analyzed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO NOTHING
RETURNING id;
`
	var analyzed any
	if a.AnalyzedAt != nil {
		analyzed = formatTime(*a.AnalyzedAt)
	}
	var id int64
	err = t.tx.QueryRowContext(ctx, stmt,
		a.TopicID, nullInt(a.IssueID), a.PublisherID, a.Title, a.URL, images, formatTime(a.PublishedAt),
		nullString(a.Summary), nullString(a.Bias), nullFloat(a.BiasScore), nullString(a.KeyArguments), analyzed,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert article %s: %w", a.URL, err)
	}

	collected := a.CollectedAt
	if collected.IsZero() {
		collected = time.Now()
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO article_bodies (article_id, raw_content, collected_at) VALUES (?, ?, ?)`,
		id, a.Body, formatTime(collected)); err != nil {
		return 0, false, fmt.Errorf("insert article body %s: %w", a.URL, err)
	}
	return id, true, nil
}

func (t *sqliteTx) AddKeywordRelation(ctx context.Context, rel store.KeywordRelation) error {
	if rel.KeywordA == rel.KeywordB {
		return nil
	}
	a, b := store.CanonicalPair(rel.KeywordA, rel.KeywordB)
	const stmt = `
INSERT INTO keyword_relations (date, issue_id, keyword_a, keyword_b, frequency)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(date, issue_id, keyword_a, keyword_b) DO UPDATE SET
	frequency = keyword_relations.frequency + excluded.frequency;
`
	if _, err := t.tx.ExecContext(ctx, stmt, formatDate(rel.Date), rel.IssueID, a, b, rel.Frequency); err != nil {
		return fmt.Errorf("add keyword relation %s-%s: %w", a, b, err)
	}
	return nil
}

func (t *sqliteTx) CountIssueArticles(ctx context.Context, issueID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE issue_id = ?`, issueID).Scan(&n)
	return n, err
}

func (t *sqliteTx) SetIssueTotalCount(ctx context.Context, issueID int64, count int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE issues SET total_count = ? WHERE id = ?`, count, issueID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("issue %d: %w", issueID, internalerr.ErrNotFound)
	}
	return nil
}

func (t *sqliteTx) UpsertDailyTopicStats(ctx context.Context, s store.DailyTopicStats) error {
	keywords, err := encodeJSON(s.TopKeywords, "[]")
	if err != nil {
		return err
	}
	bias, err := encodeJSON(s.BiasDistribution, "{}")
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO daily_topic_stats (date, topic_id, article_count, bias_distribution, top_keywords)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(date, topic_id) DO UPDATE SET
	article_count = daily_topic_stats.article_count + excluded.article_count,
	bias_distribution = excluded.bias_distribution,
	top_keywords = excluded.top_keywords;
`
	_, err = t.tx.ExecContext(ctx, stmt, formatDate(s.Date), s.TopicID, s.ArticleCount, bias, keywords)
	return err
}
