// Package corpus maps raw scraped rows onto typed article records.
package corpus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Article is one raw article handed to the pipeline. It is immutable once
// loaded.
type Article struct {
	Row         int // 1-based source row, for log messages
	Title       string
	Body        string
	Publisher   string
	URL         string
	PublishedAt time.Time
	ImageURL    string
}

// Validate checks if the article has required fields
func (a *Article) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("article URL is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("article title is required")
	}
	if a.PublishedAt.IsZero() {
		return errors.New("article published time is required")
	}
	return nil
}

// ImageURLs returns the image URL as a list, empty when absent.
func (a *Article) ImageURLs() []string {
	if strings.TrimSpace(a.ImageURL) == "" {
		return nil
	}
	return []string{strings.TrimSpace(a.ImageURL)}
}

// RowError describes a source row that was excluded from the run.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
