package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigent/issuenet/internal/logging"
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/network"
	"github.com/aigent/issuenet/pkg/issuenet/persist"
	"github.com/aigent/issuenet/pkg/issuenet/query"
	"github.com/aigent/issuenet/pkg/issuenet/store/sqlite"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "STORE_DRIVER", "NAMING_PROVIDER", "LOG_LEVEL",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, driver, dsn string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "issuenet.yaml")
	body := fmt.Sprintf(`store:
  driver: %s
  dsn: %q
naming:
  provider: none
logging:
  level: error
`, driver, dsn)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// seed stores two issues with a shared keyword in a fresh SQLite file.
func seed(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "issuenet.db")
	st, err := sqlite.OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	defer st.Close()

	when := time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)
	input := func(name, prefix string, n int) persist.IssueInput {
		in := persist.IssueInput{Name: name}
		docs := make([][]string, n)
		for i := 0; i < n; i++ {
			docs[i] = []string{"국회", prefix, fmt.Sprintf("%s%d", prefix, i%2)}
			in.Members = append(in.Members, persist.Member{
				Article: corpus.Article{
					Title:       fmt.Sprintf("%s 기사 %d", name, i),
					Body:        "본문",
					Publisher:   "연합뉴스",
					URL:         fmt.Sprintf("https://news.test/%s/%d", prefix, i),
					PublishedAt: when.Add(-time.Duration(i) * time.Hour),
				},
				Keywords:   docs[i],
				Confidence: 1,
			})
		}
		g := network.NewBuilder(network.DefaultConfig()).Build(docs)
		in.Keywords = g.Keywords()
		in.Edges = g.Edges
		return in
	}
	w := persist.New(st, persist.DefaultConfig(), logging.Discard())
	_, err = w.Write(ctx, persist.Batch{RunDate: when, Issues: []persist.IssueInput{
		input("예산안 공방", "예산안", 8),
		input("탄핵 심판 정국", "탄핵", 7),
	}})
	require.NoError(t, err)
	return dsn
}

func TestIssuesCommand(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "sqlite", seed(t))

	out, err := execute(t, "issues", "--top", "5", "--config", cfg)
	require.NoError(t, err)

	var issues []query.RankedIssue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Rank)
	assert.Equal(t, "예산안 공방", issues[0].Name)
	assert.Equal(t, 8, issues[0].TotalCount)
	assert.Equal(t, "탄핵 심판 정국", issues[1].Name)
}

func TestArticlesCommand(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "sqlite", seed(t))

	out, err := execute(t, "issues", "--config", cfg)
	require.NoError(t, err)
	var issues []query.RankedIssue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.NotEmpty(t, issues)

	out, err = execute(t, "articles", "--issue", fmt.Sprint(issues[0].ID), "--limit", "3", "--config", cfg)
	require.NoError(t, err)
	var articles []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &articles))
	assert.Len(t, articles, 3)

	_, err = execute(t, "articles", "--issue", "9999", "--config", cfg)
	assert.Error(t, err)
}

func TestGraphAndEgoCommands(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "sqlite", seed(t))

	out, err := execute(t, "graph", "--top", "2", "--config", cfg)
	require.NoError(t, err)
	var graph query.GraphData
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	assert.NotEmpty(t, graph.Nodes)
	assert.NotEmpty(t, graph.Links)

	out, err = execute(t, "ego", "국회", "--config", cfg)
	require.NoError(t, err)
	var ego query.EgoNetwork
	require.NoError(t, json.Unmarshal([]byte(out), &ego))
	assert.Equal(t, "국회", ego.Center)
	assert.NotEmpty(t, ego.Neighbors)

	out, err = execute(t, "mentions", "국회", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03-14")

	_, err = execute(t, "ego", "--config", cfg)
	assert.Error(t, err, "ego needs a keyword argument")
}

func TestRunDryRunWritesReport(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "memory", "")

	dir := t.TempDir()
	input := filepath.Join(dir, "articles.csv")
	var b strings.Builder
	b.WriteString("title,content,press,link,pub_date,image_url\n")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "국회 소식 %d,본문 %d,한겨레,https://news.test/%d,2025-03-14 09:0%d:00,\n", i, i, i, i)
	}
	b.WriteString("제목만 있는 행,본문,한겨레,,2025-03-14 09:00:00,\n")
	require.NoError(t, os.WriteFile(input, []byte(b.String()), 0o644))
	reportPath := filepath.Join(dir, "top_issues.csv")

	_, err := execute(t, "run", "--input", input, "--report", reportPath, "--dry-run", "--config", cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\ufeffissue_rank,issue_label"))
}

func TestRunRequiresInput(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "memory", "")
	_, err := execute(t, "run", "--config", cfg)
	assert.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "mongodb", "x")
	_, err := execute(t, "issues", "--config", cfg)
	assert.Error(t, err)
}
