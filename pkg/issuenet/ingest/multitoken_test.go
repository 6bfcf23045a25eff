package ingest

import (
	"reflect"
	"testing"
)

func TestMultiTokenCompound(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{
		{Canonical: "의대증원", Variants: []string{"의대 증원", "의대 정원 확대"}, Category: "policy"},
	})

	result := parser.Parse([]string{"정부", "의대", "정원", "확대", "방침", "의대", "증원"})
	expected := []string{"정부", "의대증원", "방침", "의대증원"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestMultiTokenAlias(t *testing.T) {
	parser := NewMultiTokenParser([]DictEntry{
		{Canonical: "국민의힘", Variants: []string{"국힘"}},
	})

	result := parser.Parse([]string{"국힘", "지도부"})
	if !reflect.DeepEqual(result, []string{"국민의힘", "지도부"}) {
		t.Errorf("alias not normalized: %v", result)
	}
}

func TestMultiTokenNilParser(t *testing.T) {
	var parser *MultiTokenParser
	tokens := []string{"a", "b"}
	if got := parser.Parse(tokens); !reflect.DeepEqual(got, tokens) {
		t.Errorf("nil parser should pass tokens through, got %v", got)
	}
	if parser.Len() != 0 {
		t.Error("nil parser should report zero entries")
	}
}
