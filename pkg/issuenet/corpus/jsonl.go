package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// jsonRecord is the JSONL shape produced by the feed collector.
type jsonRecord struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Publisher   string `json:"press"`
	PublishedAt string `json:"published_at"`
	Body        string `json:"text"`
	ImageURL    string `json:"image_url"`
}

// ReadJSONL parses one JSON object per line. Malformed lines are reported in
// Result.Skipped.
func ReadJSONL(r io.Reader, opts Options) (Result, error) {
	opts = opts.withDefaults()

	var res Result
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if line == 1 {
			text = strings.TrimPrefix(text, string(utf8BOM))
		}
		if text == "" {
			continue
		}

		var rec jsonRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: line, Reason: "malformed JSON: " + err.Error()})
			continue
		}

		published, err := ParseTime(strings.TrimSpace(rec.PublishedAt), opts.Location, opts.Layouts)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: line, Reason: err.Error()})
			continue
		}
		a := Article{
			Row:         line,
			Title:       CleanText(rec.Title),
			Body:        CleanText(rec.Body),
			Publisher:   strings.TrimSpace(rec.Publisher),
			URL:         strings.TrimSpace(rec.URL),
			PublishedAt: published,
			ImageURL:    strings.TrimSpace(rec.ImageURL),
		}
		if err := a.Validate(); err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: line, Reason: err.Error()})
			continue
		}
		res.Articles = append(res.Articles, a)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read corpus line %d: %w", line+1, err)
	}
	return res, nil
}
