package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

var issueColumns = []string{"id", "name", "keywords", "total_count", "created_at"}

var articleColumns = []string{
	"a.id", "a.topic_id", "a.issue_id", "a.publisher_id", "COALESCE(p.name, '')", "a.title", "a.url",
	"a.image_urls", "a.published_at", "COALESCE(a.summary, '')", "COALESCE(a.bias, '')", "a.bias_score",
	"COALESCE(a.key_arguments::text, '')", "a.analyzed_at", "COALESCE(b.raw_content, '')",
}

var relationColumns = []string{"date", "issue_id", "keyword_a", "keyword_b", "frequency"}

func (s *pgStore) TopIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	q := s.sb.Select(issueColumns...).From("issues").
		OrderBy("total_count DESC", "id ASC").
		Limit(uint64(positive(limit, 10)))
	return s.queryIssues(ctx, q)
}

func (s *pgStore) RecentIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	q := s.sb.Select(issueColumns...).From("issues").
		OrderBy("created_at DESC", "total_count DESC", "id ASC").
		Limit(uint64(positive(limit, 10)))
	return s.queryIssues(ctx, q)
}

func (s *pgStore) GetIssue(ctx context.Context, id int64) (store.Issue, error) {
	issues, err := s.queryIssues(ctx, s.sb.Select(issueColumns...).From("issues").Where(sq.Eq{"id": id}))
	if err != nil {
		return store.Issue{}, err
	}
	if len(issues) == 0 {
		return store.Issue{}, fmt.Errorf("issue %d: %w", id, internalerr.ErrNotFound)
	}
	return issues[0], nil
}

func (s *pgStore) queryIssues(ctx context.Context, q sq.SelectBuilder) ([]store.Issue, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Issue
	for rows.Next() {
		var is store.Issue
		if err := rows.Scan(&is.ID, &is.Name, &is.Keywords, &is.TotalCount, &is.CreatedAt); err != nil {
			return nil, err
		}
		is.CreatedAt = is.CreatedAt.UTC()
		out = append(out, is)
	}
	return out, rows.Err()
}

func (s *pgStore) articleQuery() sq.SelectBuilder {
	return s.sb.Select(articleColumns...).From("articles a").
		LeftJoin("publishers p ON p.id = a.publisher_id").
		LeftJoin("article_bodies b ON b.article_id = a.id")
}

func (s *pgStore) ArticlesByIssue(ctx context.Context, issueID int64, limit int) ([]store.Article, error) {
	q := s.articleQuery().Where(sq.Eq{"a.issue_id": issueID}).
		OrderBy("a.published_at DESC", "a.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, q)
}

func (s *pgStore) ArticleByURL(ctx context.Context, url string) (store.Article, bool, error) {
	articles, err := s.queryArticles(ctx, s.articleQuery().Where(sq.Eq{"a.url": url}))
	if err != nil {
		return store.Article{}, false, err
	}
	if len(articles) == 0 {
		return store.Article{}, false, nil
	}
	return articles[0], true, nil
}

func (s *pgStore) queryArticles(ctx context.Context, q sq.SelectBuilder) ([]store.Article, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Article
	for rows.Next() {
		var a store.Article
		if err := rows.Scan(&a.ID, &a.TopicID, &a.IssueID, &a.PublisherID, &a.PublisherName, &a.Title, &a.URL,
			&a.ImageURLs, &a.PublishedAt, &a.Summary, &a.Bias, &a.BiasScore, &a.KeyArguments, &a.AnalyzedAt, &a.Body); err != nil {
			return nil, err
		}
		a.PublishedAt = a.PublishedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgStore) RelationsByIssues(ctx context.Context, issueIDs []int64) ([]store.KeywordRelation, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}
	q := s.sb.Select(relationColumns...).From("keyword_relations").
		Where(sq.Eq{"issue_id": issueIDs}).
		OrderBy("frequency DESC", "keyword_a", "keyword_b", "issue_id", "date")
	return s.queryRelations(ctx, q)
}

func (s *pgStore) RelationsByKeyword(ctx context.Context, keyword string, limit int) ([]store.KeywordRelation, error) {
	q := s.sb.Select(relationColumns...).From("keyword_relations").
		Where(sq.Or{sq.Eq{"keyword_a": keyword}, sq.Eq{"keyword_b": keyword}}).
		OrderBy("date DESC", "frequency DESC", "keyword_a", "keyword_b")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryRelations(ctx, q)
}

func (s *pgStore) queryRelations(ctx context.Context, q sq.SelectBuilder) ([]store.KeywordRelation, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.KeywordRelation
	for rows.Next() {
		var r store.KeywordRelation
		if err := rows.Scan(&r.Date, &r.IssueID, &r.KeywordA, &r.KeywordB, &r.Frequency); err != nil {
			return nil, err
		}
		r.Date = store.Day(r.Date)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgStore) MentionSeries(ctx context.Context, keyword string) ([]store.MentionPoint, error) {
	q := s.sb.Select("date", "SUM(frequency)").From("keyword_relations").
		Where(sq.Or{sq.Eq{"keyword_a": keyword}, sq.Eq{"keyword_b": keyword}}).
		GroupBy("date").
		OrderBy("date ASC")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MentionPoint
	for rows.Next() {
		var p store.MentionPoint
		if err := rows.Scan(&p.Date, &p.Frequency); err != nil {
			return nil, err
		}
		p.Date = store.Day(p.Date)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) DailyTopicStats(ctx context.Context, topicID int64) ([]store.DailyTopicStats, error) {
	q := s.sb.Select("date", "topic_id", "article_count", "bias_distribution::text", "top_keywords").
		From("daily_topic_stats").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("date ASC")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DailyTopicStats
	for rows.Next() {
		var st store.DailyTopicStats
		var bias string
		if err := rows.Scan(&st.Date, &st.TopicID, &st.ArticleCount, &bias, &st.TopKeywords); err != nil {
			return nil, err
		}
		st.Date = store.Day(st.Date)
		if err := json.Unmarshal([]byte(bias), &st.BiasDistribution); err != nil {
			return nil, fmt.Errorf("daily stats %s bias: %w", st.Date.Format(time.DateOnly), err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *pgStore) Counts(ctx context.Context) (store.Counts, error) {
	const stmt = `
SELECT
	(SELECT COUNT(*) FROM topics),
	(SELECT COUNT(*) FROM issues),
	(SELECT COUNT(*) FROM publishers),
	(SELECT COUNT(*) FROM articles),
	(SELECT COUNT(*) FROM keyword_relations)`
	var c store.Counts
	if err := s.pool.QueryRow(ctx, stmt).Scan(&c.Topics, &c.Issues, &c.Publishers, &c.Articles, &c.Relations); err != nil {
		return store.Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}

func (s *pgStore) query(ctx context.Context, q sq.SelectBuilder) (pgx.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return s.pool.Query(ctx, query, args...)
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
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
