package asr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHallucinationFilterDefaultsDropKnownSubstring(t *testing.T) {
	f, err := LoadHallucinationFilter("")
	require.NoError(t, err)
	assert.True(t, f.ShouldDrop("字幕由 Amara.org 社群提供 謝謝收看", "zh"))
}

func TestHallucinationFilterExactMatchIsLangScoped(t *testing.T) {
	f, err := LoadHallucinationFilter("")
	require.NoError(t, err)
	assert.True(t, f.ShouldDrop("謝謝", "zh"))
	assert.False(t, f.ShouldDrop("謝謝", "en"))
	assert.False(t, f.ShouldDrop("謝謝", ""))
}

func TestHallucinationFilterExactMatchIgnoresPunctuation(t *testing.T) {
	f, err := LoadHallucinationFilter("")
	require.NoError(t, err)
	assert.True(t, f.ShouldDrop("謝謝！", "zh"))
}

func TestHallucinationFilterRealSpeechSurvives(t *testing.T) {
	f, err := LoadHallucinationFilter("")
	require.NoError(t, err)
	assert.False(t, f.ShouldDrop("我們今天要討論第三季的營收目標", "zh"))
}

func TestHallucinationFilterNilIsNoOp(t *testing.T) {
	var f *HallucinationFilter
	assert.False(t, f.ShouldDrop("謝謝", "zh"))
}

func TestLoadHallucinationFilterFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hallucinations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
substrings: ["custom junk phrase"]
exact_by_lang:
  en: ["Thanks"]
`), 0o644))

	f, err := LoadHallucinationFilter(path)
	require.NoError(t, err)
	assert.True(t, f.ShouldDrop("this has custom junk phrase in it", "en"))
	assert.True(t, f.ShouldDrop("Thanks", "en"))
	assert.False(t, f.ShouldDrop("謝謝", "zh"))
}
