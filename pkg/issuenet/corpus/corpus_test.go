package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
)

const sampleCSV = "\ufeffcollection_date,press,title,section,content,image_url,pub_date,link\n" +
	"2025-03-01,한겨레,<b>여야</b> 예산안 합의,정치,\"국회가 &quot;예산안&quot;을 처리했다.\",http://img/1.jpg,2025-03-01 09:30:00,https://n.news/1\n" +
	"2025-03-01,경향신문,제목 없음 시간 오류,정치,본문,,어제 오후,https://n.news/2\n" +
	"2025-03-01,조선일보,,정치,본문,,2025-03-01 10:00:00,https://n.news/3\n" +
	"2025-03-01,동아일보,짧은 행\n" +
	"2025-03-01,연합뉴스,국회 본회의 개최,정치,본회의 개최,,2025-03-01T11:00:00+09:00,https://n.news/5\n"

func TestReadCSV(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	res, err := ReadCSV(strings.NewReader(sampleCSV), Options{Location: seoul})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	if len(res.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(res.Articles))
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("expected 3 skipped rows, got %d: %v", len(res.Skipped), res.Skipped)
	}

	first := res.Articles[0]
	if first.Title != "여야 예산안 합의" {
		t.Errorf("title not cleaned: %q", first.Title)
	}
	if first.Body != `국회가 "예산안"을 처리했다.` {
		t.Errorf("body not unescaped: %q", first.Body)
	}
	if first.Publisher != "한겨레" || first.URL != "https://n.news/1" {
		t.Errorf("unexpected publisher/url: %+v", first)
	}
	want := time.Date(2025, 3, 1, 9, 30, 0, 0, seoul)
	if !first.PublishedAt.Equal(want) {
		t.Errorf("published = %v, want %v", first.PublishedAt, want)
	}
	if got := first.ImageURLs(); len(got) != 1 || got[0] != "http://img/1.jpg" {
		t.Errorf("ImageURLs = %v", got)
	}
	if first.Row != 2 {
		t.Errorf("row = %d, want 2", first.Row)
	}

	if res.Articles[1].ImageURLs() != nil {
		t.Error("empty image url should yield nil list")
	}

	rows := []int{res.Skipped[0].Row, res.Skipped[1].Row, res.Skipped[2].Row}
	if rows[0] != 3 || rows[1] != 4 || rows[2] != 5 {
		t.Errorf("skipped rows = %v, want [3 4 5]", rows)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title,content\nA,B\n"), Options{})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReadCSVCustomColumns(t *testing.T) {
	data := "headline,text,outlet,url,ts\nA title,body,press,https://x/1,2025-01-02\n"
	res, err := ReadCSV(strings.NewReader(data), Options{Columns: Columns{
		Title: "headline", Body: "text", Publisher: "outlet", URL: "url", PublishedAt: "ts",
	}})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(res.Articles) != 1 || res.Articles[0].Title != "A title" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), Options{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty corpus, got %v", err)
	}
}

func TestReadJSONL(t *testing.T) {
	data := `{"url":"https://x/1","title":"제목","press":"한겨레","published_at":"2025-03-01 09:00:00","text":"본문"}
not json

{"url":"","title":"no url","published_at":"2025-03-01"}
`
	res, err := ReadJSONL(strings.NewReader(data), Options{})
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(res.Articles))
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %v", res.Skipped)
	}
	if res.Skipped[0].Row != 2 || res.Skipped[1].Row != 4 {
		t.Errorf("skipped rows = %v", res.Skipped)
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "corpus.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := Load(csvPath, Options{})
	if err != nil {
		t.Fatalf("Load csv: %v", err)
	}
	if len(res.Articles) != 2 {
		t.Errorf("expected 2 articles from csv, got %d", len(res.Articles))
	}

	jsonPath := filepath.Join(dir, "corpus.jsonl")
	line := `{"url":"https://x/1","title":"t","press":"p","published_at":"2025-03-01","text":"b"}` + "\n"
	if err := os.WriteFile(jsonPath, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err = Load(jsonPath, Options{})
	if err != nil {
		t.Fatalf("Load jsonl: %v", err)
	}
	if len(res.Articles) != 1 {
		t.Errorf("expected 1 article from jsonl, got %d", len(res.Articles))
	}

	if _, err := Load(filepath.Join(dir, "missing.csv"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"":                                    "",
		"plain   text\n\twith  spaces":        "plain text with spaces",
		"<p>첫 문단</p><p>둘째&nbsp;문단</p>":         "첫 문단 둘째 문단",
		"<script>var x = 1;</script>본문":       "본문",
		"a &amp; b &lt;c&gt;":                 "a & b <c>",
		"<div><style>p{}</style>기사<br/>끝</div>": "기사 끝",
	}
	for in, want := range cases {
		if got := CleanText(in); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTime(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	got, err := ParseTime("2025.03.01. 14:05", loc, nil)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 1, 14, 5, 0, 0, loc)) {
		t.Errorf("got %v", got)
	}
	if _, err := ParseTime("yesterday", loc, nil); err == nil {
		t.Error("expected error for unparseable time")
	}
	if _, err := ParseTime("", loc, nil); err == nil {
		t.Error("expected error for empty time")
	}
}
