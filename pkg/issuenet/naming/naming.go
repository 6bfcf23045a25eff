// Package naming turns a cluster of article titles into a short issue label
// using an external language model, falling back to the first title.
package naming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config controls naming.
type Config struct {
	Provider  string        `yaml:"provider"` // "gemini", "openai", or "none"
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"-"`
	Delay     time.Duration `yaml:"delay"`   // minimum spacing between calls
	Timeout   time.Duration `yaml:"timeout"` // per call
	MaxTitles int           `yaml:"max_titles"`
	MaxRunes  int           `yaml:"max_runes"` // length guideline given to the model
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Model:     "gemini-2.0-flash",
		Delay:     time.Second,
		Timeout:   30 * time.Second,
		MaxTitles: 10,
		MaxRunes:  15,
	}
}

// Label is the naming outcome for one cluster.
type Label struct {
	Text     string
	Fallback bool  // Text is the first title
	Err      error // cause of the fallback, if any
}

// Namer labels clusters. Calls are serialized and spaced by Config.Delay.
type Namer struct {
	gen     Generator
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a namer. A nil generator always falls back to the first title.
func New(gen Generator, cfg Config, logger *slog.Logger) *Namer {
	def := DefaultConfig()
	if cfg.MaxTitles <= 0 {
		cfg.MaxTitles = def.MaxTitles
	}
	if cfg.MaxRunes <= 0 {
		cfg.MaxRunes = def.MaxRunes
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		gen:     gen,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "naming"),
	}
}

// Name returns a label for a cluster whose member titles are given in
// representative order. It never fails: on any problem the first title is
// used verbatim.
func (n *Namer) Name(ctx context.Context, titles []string) Label {
	if len(titles) == 0 {
		return Label{Fallback: true, Err: fmt.Errorf("no titles")}
	}
	fallback := func(err error) Label {
		n.logger.Warn("issue naming fell back to first title", "error", err, "title", titles[0])
		return Label{Text: titles[0], Fallback: true, Err: err}
	}
	if n.gen == nil {
		return Label{Text: titles[0], Fallback: true}
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fallback(fmt.Errorf("rate limiter: %w", err))
	}

	callCtx := ctx
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	raw, err := n.gen.Generate(callCtx, BuildPrompt(titles, n.cfg.MaxTitles, n.cfg.MaxRunes))
	if err != nil {
		return fallback(err)
	}
	text := CleanLabel(raw)
	if text == "" {
		return fallback(fmt.Errorf("empty response"))
	}
	return Label{Text: text}
}

// BuildPrompt lists at most maxTitles titles and discloses the total count.
func BuildPrompt(titles []string, maxTitles, maxRunes int) string {
	shown := titles
	if maxTitles > 0 && len(shown) > maxTitles {
		shown = shown[:maxTitles]
	}

	var b strings.Builder
	b.WriteString("You are a neutral news editor. The headlines below all report the same political issue.\n")
	fmt.Fprintf(&b, "Showing %d of %d headlines:\n", len(shown), len(titles))
	for _, t := range shown {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteByte('\n')
	}
	b.WriteString("\nWrite one label for this issue.\n")
	fmt.Fprintf(&b, "- At most %d characters, in the language of the headlines.\n", maxRunes)
	b.WriteString("- Neutral and factual: no sensational, emotional, or partisan wording.\n")
	b.WriteString("- End with a noun or event-type word such as 논란, 발표, 개최, 합의, 공방 (controversy, announcement, meeting, agreement, dispute).\n")
	b.WriteString("- Reply with the label only, no quotes or explanation.\n")
	return b.String()
}

// CleanLabel keeps the first non-empty line of a model response and strips
// surrounding quotes, list markers, and whitespace.
func CleanLabel(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*# ")
		line = strings.Trim(line, "\"'`“”‘’「」 ")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
