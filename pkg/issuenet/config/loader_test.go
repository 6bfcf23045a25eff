package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDict(t *testing.T) {
	entries, err := ParseDict(`
# policy compounds
의대 증원|의대정원 확대|의대 정원|policy
비상계엄|계엄령|event
국민의힘|party
`)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "의대 증원", entries[0].Canonical)
	assert.Equal(t, []string{"의대정원 확대", "의대 정원"}, entries[0].Variants)
	assert.Equal(t, "policy", entries[0].Category)
	assert.Empty(t, entries[2].Variants)
	assert.Equal(t, "party", entries[2].Category)
}

func TestParseDictRejectsMalformedLines(t *testing.T) {
	_, err := ParseDict("혼자\n")
	assert.Error(t, err)
	_, err = ParseDict(" |variant|cat\n")
	assert.Error(t, err)
}

func TestLoadStoplistExtendsDefault(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stop.yaml", "terms:\n  - 단독\n  - 포토\n")
	m, err := LoadStoplist(path)
	require.NoError(t, err)
	assert.True(t, m.IsStop("포토"))
	assert.True(t, m.IsStop("기자"), "built-in terms are kept")

	def, err := LoadStoplist("")
	require.NoError(t, err)
	assert.False(t, def.IsStop("포토"))
}

func TestPipelineUsesDictionary(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DictPath = writeFile(t, dir, "dict.txt", "의대증원|의대 증원|policy\n")

	p, err := cfg.Pipeline()
	require.NoError(t, err)
	got := p.Keywords("정부 의대 증원 발표")
	assert.Contains(t, got, "의대증원")
}
