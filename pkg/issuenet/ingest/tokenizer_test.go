package ingest

import (
	"reflect"
	"testing"

	"github.com/aigent/issuenet/pkg/issuenet/stoplist"
)

func TestTokenizerKoreanParticles(t *testing.T) {
	tokenizer := NewTokenizer(stoplist.Default())

	tokens := tokenizer.Tokenize("윤석열 대통령이 국회에서 예산안을 발표했다")
	expected := []string{"윤석열", "국회", "예산안"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Expected %v, got %v", expected, tokens)
	}
}

func TestTokenizerSplitKeepsStopwords(t *testing.T) {
	tokenizer := NewTokenizer(stoplist.NewManager([]string{"대통령"}))

	tokens := tokenizer.Split("대통령이 말했다")
	if !reflect.DeepEqual(tokens, []string{"대통령"}) {
		t.Errorf("Split should strip particles and predicates only, got %v", tokens)
	}
	if got := tokenizer.Tokenize("대통령이 말했다"); len(got) != 0 {
		t.Errorf("Tokenize should drop stopwords, got %v", got)
	}
}

func TestTokenizerShortStems(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	// Two-syllable nouns ending in a particle-like syllable stay whole.
	tokens := tokenizer.Tokenize("국가 물가 제도 전문가")
	expected := []string{"국가", "물가", "제도", "전문가"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Expected %v, got %v", expected, tokens)
	}
}

func TestTokenizerMixedScript(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	tokens := tokenizer.Tokenize("AI와 반도체, G7 정상회의 2024 k-방산")
	expected := []string{"ai", "반도체", "g7", "정상회의", "k-방산"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Expected %v, got %v", expected, tokens)
	}
}

func TestTokenizerSingleCharacter(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	tokens := tokenizer.Tokenize("a 및 b 또 예산")
	if !reflect.DeepEqual(tokens, []string{"예산"}) {
		t.Errorf("single-rune tokens should be dropped, got %v", tokens)
	}
}

func TestTokenizerHyphens(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	tokens := tokenizer.Tokenize("--machine--learning-- deep-learning")
	expected := []string{"machine-learning", "deep-learning"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Expected %v, got %v", expected, tokens)
	}
}

func TestTokenizerDeterministic(t *testing.T) {
	tokenizer := NewTokenizer(stoplist.Default())
	text := "여야가 특검법을 두고 충돌했다. 여야는 특검법 처리 일정에 합의하지 못했다."

	first := tokenizer.Tokenize(text)
	for i := 0; i < 5; i++ {
		if got := tokenizer.Tokenize(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestTokenizerStopwordManagement(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	tokenizer.AddStopword("예산")
	if got := tokenizer.Tokenize("예산 국회"); !reflect.DeepEqual(got, []string{"국회"}) {
		t.Errorf("expected 예산 filtered, got %v", got)
	}

	tokenizer.RemoveStopword("예산")
	if got := tokenizer.Tokenize("예산 국회"); !reflect.DeepEqual(got, []string{"예산", "국회"}) {
		t.Errorf("expected 예산 restored, got %v", got)
	}
}
