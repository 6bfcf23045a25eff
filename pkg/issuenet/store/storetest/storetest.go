// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("EnsureIsIdempotent", func(t *testing.T) { testEnsure(t, open(t)) })
	t.Run("PublisherCodeCollisions", func(t *testing.T) { testPublisherCodes(t, open(t)) })
	t.Run("InsertArticleSkipsExistingURL", func(t *testing.T) { testInsertArticle(t, open(t)) })
	t.Run("RelationsAreCanonicalAndAccumulate", func(t *testing.T) { testRelations(t, open(t)) })
	t.Run("RollbackDiscardsEverything", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("IssueQueries", func(t *testing.T) { testIssueQueries(t, open(t)) })
	t.Run("MentionSeries", func(t *testing.T) { testMentionSeries(t, open(t)) })
	t.Run("DailyTopicStats", func(t *testing.T) { testDailyStats(t, open(t)) })
}

var (
	day1 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
)

func mustTx(t *testing.T, st store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := st.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func testEnsure(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	var first, second store.Topic
	var p1, p2, p3 store.Publisher
	mustTx(t, st, func(tx store.Tx) error {
		var err error
		if first, err = tx.EnsureTopic(ctx, "정치"); err != nil {
			return err
		}
		if second, err = tx.EnsureTopic(ctx, "정치"); err != nil {
			return err
		}
		if p1, err = tx.EnsurePublisher(ctx, "한겨레", "028"); err != nil {
			return err
		}
		if p2, err = tx.EnsurePublisher(ctx, "한겨레", "999"); err != nil {
			return err
		}
		p3, err = tx.EnsurePublisher(ctx, "오마이뉴스", "")
		return err
	})

	if first.ID == 0 || first.ID != second.ID {
		t.Errorf("topic ids %d, %d should match and be non-zero", first.ID, second.ID)
	}
	if p1.ID != p2.ID || p2.Code != "028" {
		t.Errorf("existing publisher should keep id and code: %+v %+v", p1, p2)
	}
	if p3.Code != "오마이뉴스" {
		t.Errorf("publisher code should default to name, got %q", p3.Code)
	}

	c, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Topics != 1 || c.Publishers != 2 {
		t.Errorf("counts = %+v", c)
	}
}

func testPublisherCodes(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	var a, b, c, again store.Publisher
	mustTx(t, st, func(tx store.Tx) error {
		var err error
		if a, err = tx.EnsurePublisher(ctx, "한겨레", "028"); err != nil {
			return err
		}
		// same mapped code as an existing publisher
		if b, err = tx.EnsurePublisher(ctx, "한겨레21", "028"); err != nil {
			return err
		}
		// a name that is already someone's code
		if c, err = tx.EnsurePublisher(ctx, "028", ""); err != nil {
			return err
		}
		again, err = tx.EnsurePublisher(ctx, "한겨레21", "028")
		return err
	})

	if a.Code != "028" {
		t.Errorf("first publisher code = %q", a.Code)
	}
	if b.Code != "한겨레21" {
		t.Errorf("taken code should fall back to the name, got %q", b.Code)
	}
	if c.Code != "028-2" {
		t.Errorf("name taken as a code should get a suffix, got %q", c.Code)
	}
	if again.ID != b.ID || again.Code != b.Code {
		t.Errorf("existing publisher changed: %+v -> %+v", b, again)
	}
	if a.ID == b.ID || b.ID == c.ID || a.ID == c.ID {
		t.Errorf("publishers should be distinct: %+v %+v %+v", a, b, c)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Publishers != 3 {
		t.Errorf("publishers = %d, want 3", counts.Publishers)
	}
}

func seedRefs(t *testing.T, tx store.Tx) (store.Topic, store.Publisher) {
	t.Helper()
	ctx := context.Background()
	topic, err := tx.EnsureTopic(ctx, "정치")
	if err != nil {
		t.Fatalf("EnsureTopic: %v", err)
	}
	pub, err := tx.EnsurePublisher(ctx, "경향신문", "032")
	if err != nil {
		t.Fatalf("EnsurePublisher: %v", err)
	}
	return topic, pub
}

func testInsertArticle(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	score := 0.25
	analyzed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var issueID int64
	mustTx(t, st, func(tx store.Tx) error {
		topic, pub := seedRefs(t, tx)
		var err error
		issueID, err = tx.CreateIssue(ctx, store.Issue{Name: "예산안 처리", Keywords: []string{"예산안", "국회"}, TotalCount: 1})
		if err != nil {
			return err
		}
		id, inserted, err := tx.InsertArticle(ctx, store.Article{
			TopicID: topic.ID, IssueID: &issueID, PublisherID: pub.ID,
			Title: "원래 제목", URL: "https://n.news/1", ImageURLs: []string{"http://img/1.jpg"},
			PublishedAt: day1.Add(9 * time.Hour), BiasScore: &score, KeyArguments: `["예산안"]`,
			AnalyzedAt: &analyzed, Body: "본문",
		})
		if err != nil {
			return err
		}
		if !inserted || id == 0 {
			t.Errorf("first insert: id=%d inserted=%v", id, inserted)
		}
		return nil
	})

	mustTx(t, st, func(tx store.Tx) error {
		topic, pub := seedRefs(t, tx)
		id, inserted, err := tx.InsertArticle(ctx, store.Article{
			TopicID: topic.ID, PublisherID: pub.ID, Title: "덮어쓴 제목", URL: "https://n.news/1",
			PublishedAt: day2, Body: "다른 본문",
		})
		if err != nil {
			return err
		}
		if inserted || id != 0 {
			t.Errorf("duplicate URL should be skipped, got id=%d inserted=%v", id, inserted)
		}
		return nil
	})

	got, ok, err := st.ArticleByURL(ctx, "https://n.news/1")
	if err != nil || !ok {
		t.Fatalf("ArticleByURL: ok=%v err=%v", ok, err)
	}
	if got.Title != "원래 제목" || got.Body != "본문" {
		t.Errorf("existing article was overwritten: %+v", got)
	}
	if got.IssueID == nil || *got.IssueID != issueID {
		t.Errorf("issue id = %v, want %d", got.IssueID, issueID)
	}
	if got.PublisherName != "경향신문" {
		t.Errorf("publisher name = %q", got.PublisherName)
	}
	if got.BiasScore == nil || *got.BiasScore != score {
		t.Errorf("bias score = %v", got.BiasScore)
	}
	if got.AnalyzedAt == nil || !got.AnalyzedAt.Equal(analyzed) {
		t.Errorf("analyzed_at = %v", got.AnalyzedAt)
	}
	if len(got.ImageURLs) != 1 || got.ImageURLs[0] != "http://img/1.jpg" {
		t.Errorf("image urls = %v", got.ImageURLs)
	}
	if !got.PublishedAt.Equal(day1.Add(9 * time.Hour)) {
		t.Errorf("published_at = %v", got.PublishedAt)
	}

	if _, ok, err := st.ArticleByURL(ctx, "https://n.news/missing"); err != nil || ok {
		t.Errorf("missing article: ok=%v err=%v", ok, err)
	}

	c, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Articles != 1 {
		t.Errorf("articles = %d, want 1", c.Articles)
	}
}

func testRelations(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	var issueID int64
	mustTx(t, st, func(tx store.Tx) error {
		var err error
		if issueID, err = tx.CreateIssue(ctx, store.Issue{Name: "i"}); err != nil {
			return err
		}
		if err := tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day1, IssueID: issueID, KeywordA: "탄핵", KeywordB: "국회", Frequency: 1}); err != nil {
			return err
		}
		if err := tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day1, IssueID: issueID, KeywordA: "국회", KeywordB: "탄핵", Frequency: 2}); err != nil {
			return err
		}
		// self pairs are ignored
		return tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day1, IssueID: issueID, KeywordA: "국회", KeywordB: "국회", Frequency: 5})
	})

	rels, err := st.RelationsByIssues(ctx, []int64{issueID})
	if err != nil {
		t.Fatalf("RelationsByIssues: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected one relation row, got %+v", rels)
	}
	r := rels[0]
	if r.KeywordA != "국회" || r.KeywordB != "탄핵" || r.Frequency != 3 || !r.Date.Equal(day1) {
		t.Errorf("unexpected relation %+v", r)
	}

	if rels, err := st.RelationsByIssues(ctx, nil); err != nil || len(rels) != 0 {
		t.Errorf("no ids should return nothing: %v %v", rels, err)
	}
}

func testRollback(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(tx store.Tx) error {
		topic, pub := seedRefs(t, tx)
		id, err := tx.CreateIssue(ctx, store.Issue{Name: "rolled back"})
		if err != nil {
			return err
		}
		if _, _, err := tx.InsertArticle(ctx, store.Article{TopicID: topic.ID, IssueID: &id, PublisherID: pub.ID, Title: "t", URL: "u", PublishedAt: day1}); err != nil {
			return err
		}
		if err := tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day1, IssueID: id, KeywordA: "a", KeywordB: "b", Frequency: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	c, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c != (store.Counts{}) {
		t.Errorf("rolled back transaction left rows: %+v", c)
	}
}

func testIssueQueries(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	mustTx(t, st, func(tx store.Tx) error {
		topic, pub := seedRefs(t, tx)
		specs := []struct {
			name    string
			count   int
			created time.Time
		}{
			{"small-old", 7, base},
			{"big-old", 12, base},
			{"mid-new", 9, base.Add(time.Hour)},
		}
		for _, s := range specs {
			id, err := tx.CreateIssue(ctx, store.Issue{Name: s.name, Keywords: []string{s.name}, TotalCount: s.count, CreatedAt: s.created})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		for i := 0; i < 3; i++ {
			issue := ids[1]
			if _, _, err := tx.InsertArticle(ctx, store.Article{
				TopicID: topic.ID, IssueID: &issue, PublisherID: pub.ID,
				Title: "t", URL: "https://n.news/q" + string(rune('a'+i)), PublishedAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		n, err := tx.CountIssueArticles(ctx, ids[1])
		if err != nil {
			return err
		}
		if n != 3 {
			t.Errorf("CountIssueArticles = %d, want 3", n)
		}
		if err := tx.SetIssueTotalCount(ctx, ids[0], 8); err != nil {
			return err
		}
		if err := tx.SetIssueTotalCount(ctx, 9999, 1); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("SetIssueTotalCount on missing issue = %v", err)
		}
		return nil
	})

	top, err := st.TopIssues(ctx, 2)
	if err != nil {
		t.Fatalf("TopIssues: %v", err)
	}
	if len(top) != 2 || top[0].Name != "big-old" || top[1].Name != "mid-new" {
		t.Errorf("TopIssues = %+v", top)
	}

	recent, err := st.RecentIssues(ctx, 3)
	if err != nil {
		t.Fatalf("RecentIssues: %v", err)
	}
	if len(recent) != 3 || recent[0].Name != "mid-new" || recent[1].Name != "big-old" || recent[2].Name != "small-old" {
		t.Errorf("RecentIssues order = %v", names(recent))
	}

	got, err := st.GetIssue(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if got.TotalCount != 8 || len(got.Keywords) != 1 || got.Keywords[0] != "small-old" || !got.CreatedAt.Equal(base) {
		t.Errorf("GetIssue = %+v", got)
	}
	if _, err := st.GetIssue(ctx, 9999); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("GetIssue missing = %v", err)
	}

	articles, err := st.ArticlesByIssue(ctx, ids[1], 0)
	if err != nil {
		t.Fatalf("ArticlesByIssue: %v", err)
	}
	if len(articles) != 3 || articles[0].URL != "https://n.news/qc" || articles[2].URL != "https://n.news/qa" {
		t.Errorf("ArticlesByIssue should be newest first: %+v", articles)
	}
	if limited, _ := st.ArticlesByIssue(ctx, ids[1], 2); len(limited) != 2 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func names(issues []store.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Name
	}
	return out
}

func testMentionSeries(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	mustTx(t, st, func(tx store.Tx) error {
		a, err := tx.CreateIssue(ctx, store.Issue{Name: "a"})
		if err != nil {
			return err
		}
		b, err := tx.CreateIssue(ctx, store.Issue{Name: "b"})
		if err != nil {
			return err
		}
		rels := []store.KeywordRelation{
			{Date: day2, IssueID: a, KeywordA: "국회", KeywordB: "예산", Frequency: 4},
			{Date: day1, IssueID: a, KeywordA: "국회", KeywordB: "탄핵", Frequency: 2},
			{Date: day1, IssueID: b, KeywordA: "검찰", KeywordB: "국회", Frequency: 3},
			{Date: day1, IssueID: b, KeywordA: "검찰", KeywordB: "수사", Frequency: 9},
		}
		for _, r := range rels {
			if err := tx.AddKeywordRelation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	series, err := st.MentionSeries(ctx, "국회")
	if err != nil {
		t.Fatalf("MentionSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %+v", series)
	}
	if !series[0].Date.Equal(day1) || series[0].Frequency != 5 || !series[1].Date.Equal(day2) || series[1].Frequency != 4 {
		t.Errorf("series = %+v", series)
	}

	rels, err := st.RelationsByKeyword(ctx, "국회", 0)
	if err != nil {
		t.Fatalf("RelationsByKeyword: %v", err)
	}
	if len(rels) != 3 || !rels[0].Date.Equal(day2) || rels[1].Frequency != 3 {
		t.Errorf("RelationsByKeyword = %+v", rels)
	}
	if limited, _ := st.RelationsByKeyword(ctx, "국회", 1); len(limited) != 1 {
		t.Errorf("limit ignored: %+v", limited)
	}
}

func testDailyStats(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	var topicID int64
	for _, n := range []int{3, 4} {
		count := n
		mustTx(t, st, func(tx store.Tx) error {
			topic, err := tx.EnsureTopic(ctx, "정치")
			if err != nil {
				return err
			}
			topicID = topic.ID
			return tx.UpsertDailyTopicStats(ctx, store.DailyTopicStats{
				Date: day1, TopicID: topic.ID, ArticleCount: count,
				TopKeywords: []string{"kw" + string(rune('0'+count))},
			})
		})
	}

	stats, err := st.DailyTopicStats(ctx, topicID)
	if err != nil {
		t.Fatalf("DailyTopicStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats[0].ArticleCount != 7 || len(stats[0].TopKeywords) != 1 || stats[0].TopKeywords[0] != "kw4" {
		t.Errorf("stats = %+v", stats[0])
	}
}
