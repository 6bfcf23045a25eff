package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

type relationKey struct {
	date    time.Time
	issueID int64
	a, b    string
}

type statsKey struct {
	date    time.Time
	topicID int64
}

// state is the full dataset; transactions work on a copy of it.
type state struct {
	nextID     int64
	topics     map[string]store.Topic
	publishers map[string]store.Publisher
	issues     map[int64]store.Issue
	articles   map[int64]store.Article
	urlIndex   map[string]int64
	relations  map[relationKey]int64
	stats      map[statsKey]store.DailyTopicStats
}

func newState() *state {
	return &state{
		nextID:     1,
		topics:     make(map[string]store.Topic),
		publishers: make(map[string]store.Publisher),
		issues:     make(map[int64]store.Issue),
		articles:   make(map[int64]store.Article),
		urlIndex:   make(map[string]int64),
		relations:  make(map[relationKey]int64),
		stats:      make(map[statsKey]store.DailyTopicStats),
	}
}

func (st *state) clone() *state {
	c := newState()
	c.nextID = st.nextID
	for k, v := range st.topics {
		c.topics[k] = v
	}
	for k, v := range st.publishers {
		c.publishers[k] = v
	}
	for k, v := range st.issues {
		c.issues[k] = copyIssue(v)
	}
	for k, v := range st.articles {
		c.articles[k] = copyArticle(v)
	}
	for k, v := range st.urlIndex {
		c.urlIndex[k] = v
	}
	for k, v := range st.relations {
		c.relations[k] = v
	}
	for k, v := range st.stats {
		c.stats[k] = copyStats(v)
	}
	return c
}

func (st *state) id() int64 {
	id := st.nextID
	st.nextID++
	return id
}

// Store is an in-memory implementation of store.Store for tests and dry
// runs. Transactions are applied by swapping in a modified copy.
type Store struct {
	mu   sync.RWMutex
	data *state
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{data: newState()}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// InTx implements store.Store. Writers are serialized.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

type memTx struct {
	st *state
}

func (t *memTx) EnsureTopic(ctx context.Context, name string) (store.Topic, error) {
	if topic, ok := t.st.topics[name]; ok {
		return topic, nil
	}
	topic := store.Topic{ID: t.st.id(), Name: name, CreatedAt: time.Now().UTC()}
	t.st.topics[name] = topic
	return topic, nil
}

func (t *memTx) EnsurePublisher(ctx context.Context, name, code string) (store.Publisher, error) {
	if p, ok := t.st.publishers[name]; ok {
		return p, nil
	}
	taken := make(map[string]bool, len(t.st.publishers))
	for _, p := range t.st.publishers {
		taken[p.Code] = true
	}
	for attempt := 0; attempt < store.MaxCodeAttempts; attempt++ {
		candidate := store.PublisherCode(name, code, attempt)
		if taken[candidate] {
			continue
		}
		p := store.Publisher{ID: t.st.id(), Name: name, Code: candidate}
		t.st.publishers[name] = p
		return p, nil
	}
	return store.Publisher{}, fmt.Errorf("publisher %q: no free code after %d attempts", name, store.MaxCodeAttempts)
}

func (t *memTx) CreateIssue(ctx context.Context, issue store.Issue) (int64, error) {
	issue.ID = t.st.id()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	issue.CreatedAt = issue.CreatedAt.UTC()
	t.st.issues[issue.ID] = copyIssue(issue)
	return issue.ID, nil
}

func (t *memTx) InsertArticle(ctx context.Context, a store.Article) (int64, bool, error) {
	if _, ok := t.st.urlIndex[a.URL]; ok {
		return 0, false, nil
	}
	if a.IssueID != nil {
		if _, ok := t.st.issues[*a.IssueID]; !ok {
			return 0, false, fmt.Errorf("article %s: issue %d: %w", a.URL, *a.IssueID, internalerr.ErrNotFound)
		}
	}
	a.ID = t.st.id()
	if a.CollectedAt.IsZero() {
		a.CollectedAt = time.Now()
	}
	for _, p := range t.st.publishers {
		if p.ID == a.PublisherID {
			a.PublisherName = p.Name
		}
	}
	t.st.articles[a.ID] = copyArticle(a)
	t.st.urlIndex[a.URL] = a.ID
	return a.ID, true, nil
}

func (t *memTx) AddKeywordRelation(ctx context.Context, rel store.KeywordRelation) error {
	if rel.KeywordA == rel.KeywordB {
		return nil
	}
	if _, ok := t.st.issues[rel.IssueID]; !ok {
		return fmt.Errorf("relation issue %d: %w", rel.IssueID, internalerr.ErrNotFound)
	}
	a, b := store.CanonicalPair(rel.KeywordA, rel.KeywordB)
	t.st.relations[relationKey{date: store.Day(rel.Date), issueID: rel.IssueID, a: a, b: b}] += rel.Frequency
	return nil
}

func (t *memTx) CountIssueArticles(ctx context.Context, issueID int64) (int, error) {
	n := 0
	for _, a := range t.st.articles {
		if a.IssueID != nil && *a.IssueID == issueID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetIssueTotalCount(ctx context.Context, issueID int64, count int) error {
	issue, ok := t.st.issues[issueID]
	if !ok {
		return fmt.Errorf("issue %d: %w", issueID, internalerr.ErrNotFound)
	}
	issue.TotalCount = count
	t.st.issues[issueID] = issue
	return nil
}

func (t *memTx) UpsertDailyTopicStats(ctx context.Context, s store.DailyTopicStats) error {
	key := statsKey{date: store.Day(s.Date), topicID: s.TopicID}
	prev := t.st.stats[key]
	s.Date = key.date
	s.ArticleCount += prev.ArticleCount
	t.st.stats[key] = copyStats(s)
	return nil
}

// TopIssues implements store.Store.
func (s *Store) TopIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	issues := s.allIssues()
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].TotalCount != issues[j].TotalCount {
			return issues[i].TotalCount > issues[j].TotalCount
		}
		return issues[i].ID < issues[j].ID
	})
	return limitIssues(issues, limit), nil
}

// RecentIssues implements store.Store.
func (s *Store) RecentIssues(ctx context.Context, limit int) ([]store.Issue, error) {
	issues := s.allIssues()
	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.After(issues[j].CreatedAt)
		}
		if issues[i].TotalCount != issues[j].TotalCount {
			return issues[i].TotalCount > issues[j].TotalCount
		}
		return issues[i].ID < issues[j].ID
	})
	return limitIssues(issues, limit), nil
}

// GetIssue implements store.Store.
func (s *Store) GetIssue(ctx context.Context, id int64) (store.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.data.issues[id]
	if !ok {
		return store.Issue{}, fmt.Errorf("issue %d: %w", id, internalerr.ErrNotFound)
	}
	return copyIssue(issue), nil
}

func (s *Store) allIssues() []store.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Issue, 0, len(s.data.issues))
	for _, is := range s.data.issues {
		out = append(out, copyIssue(is))
	}
	return out
}

func limitIssues(issues []store.Issue, limit int) []store.Issue {
	if limit <= 0 {
		limit = 10
	}
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return issues
}

// ArticlesByIssue implements store.Store.
func (s *Store) ArticlesByIssue(ctx context.Context, issueID int64, limit int) ([]store.Article, error) {
	s.mu.RLock()
	var out []store.Article
	for _, a := range s.data.articles {
		if a.IssueID != nil && *a.IssueID == issueID {
			out = append(out, copyArticle(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ArticleByURL implements store.Store.
func (s *Store) ArticleByURL(ctx context.Context, url string) (store.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.data.urlIndex[url]
	if !ok {
		return store.Article{}, false, nil
	}
	return copyArticle(s.data.articles[id]), true, nil
}

// RelationsByIssues implements store.Store.
func (s *Store) RelationsByIssues(ctx context.Context, issueIDs []int64) ([]store.KeywordRelation, error) {
	want := make(map[int64]struct{}, len(issueIDs))
	for _, id := range issueIDs {
		want[id] = struct{}{}
	}
	out := s.relationsWhere(func(k relationKey) bool {
		_, ok := want[k.issueID]
		return ok
	})
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.Frequency != y.Frequency {
			return x.Frequency > y.Frequency
		}
		if x.KeywordA != y.KeywordA {
			return x.KeywordA < y.KeywordA
		}
		if x.KeywordB != y.KeywordB {
			return x.KeywordB < y.KeywordB
		}
		if x.IssueID != y.IssueID {
			return x.IssueID < y.IssueID
		}
		return x.Date.Before(y.Date)
	})
	return out, nil
}

// RelationsByKeyword implements store.Store.
func (s *Store) RelationsByKeyword(ctx context.Context, keyword string, limit int) ([]store.KeywordRelation, error) {
	out := s.relationsWhere(func(k relationKey) bool { return k.a == keyword || k.b == keyword })
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if !x.Date.Equal(y.Date) {
			return x.Date.After(y.Date)
		}
		if x.Frequency != y.Frequency {
			return x.Frequency > y.Frequency
		}
		if x.KeywordA != y.KeywordA {
			return x.KeywordA < y.KeywordA
		}
		return x.KeywordB < y.KeywordB
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) relationsWhere(match func(relationKey) bool) []store.KeywordRelation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.KeywordRelation
	for k, f := range s.data.relations {
		if match(k) {
			out = append(out, store.KeywordRelation{Date: k.date, IssueID: k.issueID, KeywordA: k.a, KeywordB: k.b, Frequency: f})
		}
	}
	return out
}

// MentionSeries implements store.Store.
func (s *Store) MentionSeries(ctx context.Context, keyword string) ([]store.MentionPoint, error) {
	sums := make(map[time.Time]int64)
	for _, r := range s.relationsWhere(func(k relationKey) bool { return k.a == keyword || k.b == keyword }) {
		sums[r.Date] += r.Frequency
	}
	out := make([]store.MentionPoint, 0, len(sums))
	for d, f := range sums {
		out = append(out, store.MentionPoint{Date: d, Frequency: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DailyTopicStats implements store.Store.
func (s *Store) DailyTopicStats(ctx context.Context, topicID int64) ([]store.DailyTopicStats, error) {
	s.mu.RLock()
	var out []store.DailyTopicStats
	for k, v := range s.data.stats {
		if k.topicID == topicID {
			out = append(out, copyStats(v))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Counts implements store.Store.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Counts{
		Topics:     len(s.data.topics),
		Issues:     len(s.data.issues),
		Publishers: len(s.data.publishers),
		Articles:   len(s.data.articles),
		Relations:  len(s.data.relations),
	}, nil
}

func copyIssue(is store.Issue) store.Issue {
	is.Keywords = copyStrings(is.Keywords)
	return is
}

func copyArticle(a store.Article) store.Article {
	a.ImageURLs = copyStrings(a.ImageURLs)
	if a.IssueID != nil {
		id := *a.IssueID
		a.IssueID = &id
	}
	if a.BiasScore != nil {
		score := *a.BiasScore
		a.BiasScore = &score
	}
	if a.AnalyzedAt != nil {
		t := *a.AnalyzedAt
		a.AnalyzedAt = &t
	}
	return a
}

func copyStats(s store.DailyTopicStats) store.DailyTopicStats {
	s.TopKeywords = copyStrings(s.TopKeywords)
	if s.BiasDistribution != nil {
		m := make(map[string]int, len(s.BiasDistribution))
		for k, v := range s.BiasDistribution {
			m[k] = v
		}
		s.BiasDistribution = m
	}
	return s
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

var _ store.Store = (*Store)(nil)
