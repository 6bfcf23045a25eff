package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
	"github.com/aigent/issuenet/pkg/issuenet/store/memstore"
)

var (
	day1 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

type fixture struct {
	svc    *Service
	budget int64
	strike int64
	small  int64
}

func seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	var f fixture
	err := st.InTx(ctx, func(tx store.Tx) error {
		topic, err := tx.EnsureTopic(ctx, "정치")
		if err != nil {
			return err
		}
		pub, err := tx.EnsurePublisher(ctx, "한겨레", "028")
		if err != nil {
			return err
		}
		if f.budget, err = tx.CreateIssue(ctx, store.Issue{Name: "예산안 공방", Keywords: []string{"예산안", "국회", "여야"}, TotalCount: 12, CreatedAt: day1}); err != nil {
			return err
		}
		if f.strike, err = tx.CreateIssue(ctx, store.Issue{Name: "의료 파업", Keywords: []string{"의대", "파업"}, TotalCount: 9, CreatedAt: day2}); err != nil {
			return err
		}
		if f.small, err = tx.CreateIssue(ctx, store.Issue{Name: "작은 이슈", Keywords: []string{"기타"}, TotalCount: 7, CreatedAt: day2}); err != nil {
			return err
		}
		rels := []store.KeywordRelation{
			{Date: day1, IssueID: f.budget, KeywordA: "국회", KeywordB: "예산안", Frequency: 5},
			{Date: day2, IssueID: f.budget, KeywordA: "예산안", KeywordB: "국회", Frequency: 2},
			{Date: day1, IssueID: f.budget, KeywordA: "여야", KeywordB: "예산안", Frequency: 3},
			{Date: day2, IssueID: f.strike, KeywordA: "의대", KeywordB: "파업", Frequency: 4},
			{Date: day2, IssueID: f.strike, KeywordA: "국회", KeywordB: "의대", Frequency: 1},
			{Date: day2, IssueID: f.small, KeywordA: "기타", KeywordB: "국회", Frequency: 6},
		}
		for _, r := range rels {
			if err := tx.AddKeywordRelation(ctx, r); err != nil {
				return err
			}
		}
		for i, url := range []string{"https://n.news/1", "https://n.news/2"} {
			issue := f.budget
			if _, _, err := tx.InsertArticle(ctx, store.Article{
				TopicID: topic.ID, IssueID: &issue, PublisherID: pub.ID, Title: "t", URL: url,
				PublishedAt: day1.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.svc = NewService(st)
	return f
}

func TestTopAndRecentIssuesAreRanked(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	top, err := f.svc.TopIssues(ctx, 2)
	if err != nil {
		t.Fatalf("TopIssues: %v", err)
	}
	if len(top) != 2 || top[0].Rank != 1 || top[0].ID != f.budget || top[1].Rank != 2 || top[1].ID != f.strike {
		t.Errorf("TopIssues = %+v", top)
	}

	recent, err := f.svc.RecentIssues(ctx, 3)
	if err != nil {
		t.Fatalf("RecentIssues: %v", err)
	}
	if len(recent) != 3 || recent[0].ID != f.strike || recent[1].ID != f.small || recent[2].ID != f.budget {
		t.Errorf("RecentIssues = %+v", recent)
	}
}

func TestIssueArticles(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	articles, err := f.svc.IssueArticles(ctx, f.budget, 0)
	if err != nil {
		t.Fatalf("IssueArticles: %v", err)
	}
	if len(articles) != 2 || articles[0].URL != "https://n.news/2" {
		t.Errorf("articles = %+v", articles)
	}
	if _, err := f.svc.IssueArticles(ctx, 9999, 0); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("missing issue err = %v", err)
	}
}

func TestTrendGraphMergesTopIssues(t *testing.T) {
	f := seed(t)
	g, err := f.svc.TrendGraph(context.Background(), 2)
	if err != nil {
		t.Fatalf("TrendGraph: %v", err)
	}

	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	want := []string{"국회", "여야", "예산안", "의대", "파업"}
	if len(ids) != len(want) {
		t.Fatalf("nodes = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("nodes = %v, want %v", ids, want)
		}
	}

	if len(g.Links) != 4 {
		t.Fatalf("links = %+v", g.Links)
	}
	first := g.Links[0]
	if first.Source != "국회" || first.Target != "예산안" || first.Value != 7 {
		t.Errorf("strongest link = %+v", first)
	}
	for _, l := range g.Links {
		if l.Source == "기타" || l.Target == "기타" {
			t.Errorf("issue outside the top n leaked into graph: %+v", l)
		}
	}
}

func TestTrendGraphEmptyStore(t *testing.T) {
	svc := NewService(memstore.New())
	g, err := svc.TrendGraph(context.Background(), 10)
	if err != nil {
		t.Fatalf("TrendGraph: %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Links) != 0 || g.Nodes == nil {
		t.Errorf("graph = %+v", g)
	}
}

func TestEgoNetwork(t *testing.T) {
	f := seed(t)
	ego, err := f.svc.EgoNetwork(context.Background(), " 국회 ", 2)
	if err != nil {
		t.Fatalf("EgoNetwork: %v", err)
	}
	if ego.Center != "국회" {
		t.Errorf("center = %q", ego.Center)
	}
	// 예산안 5+2, 기타 6, 의대 1
	if len(ego.Neighbors) != 2 || ego.Neighbors[0] != (Neighbor{"예산안", 7}) || ego.Neighbors[1] != (Neighbor{"기타", 6}) {
		t.Errorf("neighbors = %+v", ego.Neighbors)
	}
	if len(ego.Graph.Nodes) != 3 || ego.Graph.Nodes[0].ID != "국회" {
		t.Errorf("nodes = %+v", ego.Graph.Nodes)
	}
	for _, l := range ego.Graph.Links {
		if l.Source >= l.Target {
			t.Errorf("link not canonical: %+v", l)
		}
	}

	if _, err := f.svc.EgoNetwork(context.Background(), "  ", 0); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("empty keyword err = %v", err)
	}
}

func TestMentionSeries(t *testing.T) {
	f := seed(t)
	series, err := f.svc.MentionSeries(context.Background(), "예산안")
	if err != nil {
		t.Fatalf("MentionSeries: %v", err)
	}
	if len(series) != 2 || series[0].Frequency != 8 || series[1].Frequency != 2 || !series[0].Date.Equal(day1) {
		t.Errorf("series = %+v", series)
	}
}
