package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

var issueColumns = []string{"id", "name", "keywords", "total_count", "created_at"}

var articleColumns = []string{
	"a.id", "a.topic_id", "a.issue_id", "a.publisher_id", "COALESCE(p.name, '')", "a.title", "a.url",
	"a.image_urls", "a.published_at", "COALESCE(a.summary, '')", "COALESCE(a.bias, '')", "a.bias_score",
	"COALESCE(a.key_arguments, '')", "a.analyzed_at", "COALESCE(b.raw_content, '')",
}

// TopIssues lists issues by total_count descending
func (s *sqliteStore) TopIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	q := s.sb.Select(issueColumns...).From("issues").
		OrderBy("total_count DESC", "id ASC").
		Limit(uint64(positive(limit, 10)))
	return s.queryIssues(ctx, q)
}

// RecentIssues lists issues by created_at, then total_count, descending
func (s *sqliteStore) RecentIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	q := s.sb.Select(issueColumns...).From("issues").
		OrderBy("created_at DESC", "total_count DESC", "id ASC").
		Limit(uint64(positive(limit, 10)))
	return s.queryIssues(ctx, q)
}

// GetIssue retrieves an issue by ID
func (s *sqliteStore) GetIssue(ctx context.Context, id int64) (store.Issue, error) {
	issues, err := s.queryIssues(ctx, s.sb.Select(issueColumns...).From("issues").Where(sq.Eq{"id": id}))
	if err != nil {
		return store.Issue{}, err
	}
	if len(issues) == 0 {
		return store.Issue{}, fmt.Errorf("issue %d: %w", id, internalerr.ErrNotFound)
	}
	return issues[0], nil
}

func (s *sqliteStore) queryIssues(ctx context.Context, q sq.SelectBuilder) ([]store.Issue, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Issue
	for rows.Next() {
		var is store.Issue
		var keywords, created string
		if err := rows.Scan(&is.ID, &is.Name, &keywords, &is.TotalCount, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &is.Keywords); err != nil {
			return nil, fmt.Errorf("issue %d keywords: %w", is.ID, err)
		}
		is.CreatedAt = parseTime(created)
		out = append(out, is)
	}
	return out, rows.Err()
}

func (s *sqliteStore) articleQuery() sq.SelectBuilder {
	return s.sb.Select(articleColumns...).From("articles a").
		LeftJoin("publishers p ON p.id = a.publisher_id").
		LeftJoin("article_bodies b ON b.article_id = a.id")
}

// ArticlesByIssue lists an issue's articles, newest first
func (s *sqliteStore) ArticlesByIssue(ctx context.Context, issueID int64, limit int) ([]store.Article, error) {
	q := s.articleQuery().Where(sq.Eq{"a.issue_id": issueID}).
		OrderBy("a.published_at DESC", "a.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, q)
}

// ArticleByURL retrieves an article by URL
func (s *sqliteStore) ArticleByURL(ctx context.Context, url string) (store.Article, bool, error) {
	articles, err := s.queryArticles(ctx, s.articleQuery().Where(sq.Eq{"a.url": url}))
	if err != nil {
		return store.Article{}, false, err
	}
	if len(articles) == 0 {
		return store.Article{}, false, nil
	}
	return articles[0], true, nil
}

func (s *sqliteStore) queryArticles(ctx context.Context, q sq.SelectBuilder) ([]store.Article, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Article
	for rows.Next() {
		var a store.Article
		var issueID sql.NullInt64
		var biasScore sql.NullFloat64
		var analyzed sql.NullString
		var images, published string
		if err := rows.Scan(&a.ID, &a.TopicID, &issueID, &a.PublisherID, &a.PublisherName, &a.Title, &a.URL,
			&images, &published, &a.Summary, &a.Bias, &biasScore, &a.KeyArguments, &analyzed, &a.Body); err != nil {
			return nil, err
		}
		if issueID.Valid {
			id := issueID.Int64
			a.IssueID = &id
		}
		if biasScore.Valid {
			score := biasScore.Float64
			a.BiasScore = &score
		}
		if analyzed.Valid {
			t := parseTime(analyzed.String)
			a.AnalyzedAt = &t
		}
		if err := json.Unmarshal([]byte(images), &a.ImageURLs); err != nil {
			return nil, fmt.Errorf("article %d image urls: %w", a.ID, err)
		}
		a.PublishedAt = parseTime(published)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RelationsByIssues lists keyword relations of the given issues
func (s *sqliteStore) RelationsByIssues(ctx context.Context, issueIDs []int64) ([]store.KeywordRelation, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}
	q := s.sb.Select("date", "issue_id", "keyword_a", "keyword_b", "frequency").
		From("keyword_relations").
		Where(sq.Eq{"issue_id": issueIDs}).
		OrderBy("frequency DESC", "keyword_a", "keyword_b", "issue_id", "date")
	return s.queryRelations(ctx, q)
}

// RelationsByKeyword lists relations touching keyword, newest and strongest first
func (s *sqliteStore) RelationsByKeyword(ctx context.Context, keyword string, limit int) ([]store.KeywordRelation, error) {
	q := s.sb.Select("date", "issue_id", "keyword_a", "keyword_b", "frequency").
		From("keyword_relations").
		Where(sq.Or{sq.Eq{"keyword_a": keyword}, sq.Eq{"keyword_b": keyword}}).
		OrderBy("date DESC", "frequency DESC", "keyword_a", "keyword_b")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryRelations(ctx, q)
}

func (s *sqliteStore) queryRelations(ctx context.Context, q sq.SelectBuilder) ([]store.KeywordRelation, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.KeywordRelation
	for rows.Next() {
		var r store.KeywordRelation
		var date string
		if err := rows.Scan(&date, &r.IssueID, &r.KeywordA, &r.KeywordB, &r.Frequency); err != nil {
			return nil, err
		}
		r.Date = parseDate(date)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MentionSeries sums a keyword's relation frequency per day, oldest first
func (s *sqliteStore) MentionSeries(ctx context.Context, keyword string) ([]store.MentionPoint, error) {
	query, args, err := s.sb.Select("date", "SUM(frequency)").
		From("keyword_relations").
		Where(sq.Or{sq.Eq{"keyword_a": keyword}, sq.Eq{"keyword_b": keyword}}).
		GroupBy("date").
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MentionPoint
	for rows.Next() {
		var p store.MentionPoint
		var date string
		if err := rows.Scan(&date, &p.Frequency); err != nil {
			return nil, err
		}
		p.Date = parseDate(date)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DailyTopicStats lists a topic's daily rows, oldest first
func (s *sqliteStore) DailyTopicStats(ctx context.Context, topicID int64) ([]store.DailyTopicStats, error) {
	query, args, err := s.sb.Select("date", "topic_id", "article_count", "bias_distribution", "top_keywords").
		From("daily_topic_stats").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DailyTopicStats
	for rows.Next() {
		var st store.DailyTopicStats
		var date, bias, keywords string
		if err := rows.Scan(&date, &st.TopicID, &st.ArticleCount, &bias, &keywords); err != nil {
			return nil, err
		}
		st.Date = parseDate(date)
		if err := json.Unmarshal([]byte(bias), &st.BiasDistribution); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &st.TopKeywords); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Counts reports table row counts
func (s *sqliteStore) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"topics", &c.Topics},
		{"issues", &c.Issues},
		{"publishers", &c.Publishers},
		{"articles", &c.Articles},
		{"keyword_relations", &c.Relations},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return store.Counts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatDate(t time.Time) string {
	return store.Day(t).Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func encodeJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
