package corpus

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns names the header fields the loader reads.
type Columns struct {
	Title       string `yaml:"title"`
	Body        string `yaml:"body"`
	Publisher   string `yaml:"publisher"`
	URL         string `yaml:"url"`
	PublishedAt string `yaml:"published_at"`
	ImageURL    string `yaml:"image_url"`
}

// DefaultColumns matches the header written by the news collector.
func DefaultColumns() Columns {
	return Columns{
		Title:       "title",
		Body:        "content",
		Publisher:   "press",
		URL:         "link",
		PublishedAt: "pub_date",
		ImageURL:    "image_url",
	}
}

// DefaultLayouts are the timestamp layouts tried in order.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006.01.02. 15:04",
	"2006.01.02 15:04",
	"2006-01-02",
}

// Options controls how rows are mapped to articles.
type Options struct {
	Columns  Columns
	Location *time.Location // zone for timestamps without an offset
	Layouts  []string
}

func (o Options) withDefaults() Options {
	def := DefaultColumns()
	if o.Columns.Title == "" {
		o.Columns.Title = def.Title
	}
	if o.Columns.Body == "" {
		o.Columns.Body = def.Body
	}
	if o.Columns.Publisher == "" {
		o.Columns.Publisher = def.Publisher
	}
	if o.Columns.URL == "" {
		o.Columns.URL = def.URL
	}
	if o.Columns.PublishedAt == "" {
		o.Columns.PublishedAt = def.PublishedAt
	}
	if o.Columns.ImageURL == "" {
		o.Columns.ImageURL = def.ImageURL
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if len(o.Layouts) == 0 {
		o.Layouts = DefaultLayouts
	}
	return o
}

// Result is the outcome of loading a corpus.
type Result struct {
	Articles []Article
	Skipped  []RowError
}

// ReadCSV parses a delimited corpus. Rows that cannot be mapped are reported
// in Result.Skipped and never abort the load; a missing header column does.
func ReadCSV(r io.Reader, opts Options) (Result, error) {
	opts = opts.withDefaults()

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return Result{}, fmt.Errorf("read corpus: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("%w: corpus is empty", internalerr.ErrInvalidInput)
		}
		return Result{}, fmt.Errorf("read corpus header: %w", err)
	}
	idx, err := columnIndex(header, opts.Columns)
	if err != nil {
		return Result{}, err
	}

	var res Result
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Skipped = append(res.Skipped, RowError{Row: row, Reason: perr.Err.Error()})
				continue
			}
			return res, fmt.Errorf("read corpus row %d: %w", row, err)
		}

		a, rerr := idx.article(record, row, opts)
		if rerr != nil {
			res.Skipped = append(res.Skipped, *rerr)
			continue
		}
		res.Articles = append(res.Articles, a)
	}

	return res, nil
}

type columns struct {
	title, body, publisher, url, published, image int
}

func columnIndex(header []string, c Columns) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	lookup := func(name string, required bool) (int, error) {
		i, ok := pos[name]
		if !ok {
			if required {
				return -1, fmt.Errorf("%w: corpus header missing column %q", internalerr.ErrInvalidInput, name)
			}
			return -1, nil
		}
		return i, nil
	}

	var idx columns
	var err error
	if idx.title, err = lookup(c.Title, true); err != nil {
		return idx, err
	}
	if idx.body, err = lookup(c.Body, true); err != nil {
		return idx, err
	}
	if idx.publisher, err = lookup(c.Publisher, true); err != nil {
		return idx, err
	}
	if idx.url, err = lookup(c.URL, true); err != nil {
		return idx, err
	}
	if idx.published, err = lookup(c.PublishedAt, true); err != nil {
		return idx, err
	}
	idx.image, _ = lookup(c.ImageURL, false)
	return idx, nil
}

func (idx columns) article(record []string, row int, opts Options) (Article, *RowError) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}

	need := max(idx.title, idx.body, idx.publisher, idx.url, idx.published)
	if len(record) <= need {
		return Article{}, &RowError{Row: row, Reason: fmt.Sprintf("expected at least %d fields, got %d", need+1, len(record))}
	}

	rawTime := strings.TrimSpace(field(idx.published))
	published, err := ParseTime(rawTime, opts.Location, opts.Layouts)
	if err != nil {
		return Article{}, &RowError{Row: row, Reason: err.Error()}
	}

	a := Article{
		Row:         row,
		Title:       CleanText(field(idx.title)),
		Body:        CleanText(field(idx.body)),
		Publisher:   strings.TrimSpace(field(idx.publisher)),
		URL:         strings.TrimSpace(field(idx.url)),
		PublishedAt: published,
		ImageURL:    strings.TrimSpace(field(idx.image)),
	}
	if err := a.Validate(); err != nil {
		return Article{}, &RowError{Row: row, Reason: err.Error()}
	}
	return a, nil
}

// ParseTime parses s with the first matching layout. Layouts without a zone
// are interpreted in loc.
func ParseTime(s string, loc *time.Location, layouts []string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("published time is empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable published time %q", s)
}
