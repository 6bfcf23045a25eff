package ingest

// Pipeline orchestrates keyword extraction:
// text -> tokenization -> compound recognition -> stopword removal
type Pipeline struct {
	tokenizer *Tokenizer
	parser    *MultiTokenParser
}

// NewPipeline creates an extraction pipeline. parser may be nil.
func NewPipeline(tokenizer *Tokenizer, parser *MultiTokenParser) *Pipeline {
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	return &Pipeline{tokenizer: tokenizer, parser: parser}
}

// ProcessedDoc represents a document after keyword extraction
type ProcessedDoc struct {
	Tokens []string // every keyword occurrence, in text order
	Unique []string // distinct keywords, first-seen order
}

// Process runs text through the full extraction pipeline
func (p *Pipeline) Process(text string) ProcessedDoc {
	tokens := p.Keywords(text)
	return ProcessedDoc{Tokens: tokens, Unique: Unique(tokens)}
}

// Keywords returns the keyword occurrences of text in order.
func (p *Pipeline) Keywords(text string) []string {
	tokens := p.parser.Parse(p.tokenizer.Split(text))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !p.tokenizer.IsStopword(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Analyzer adapts the pipeline to the func(string) []string shape used by
// the vectorizers.
func (p *Pipeline) Analyzer() func(string) []string {
	return p.Keywords
}

// Unique returns tokens with repeats removed, keeping first-seen order.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
