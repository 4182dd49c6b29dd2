package asr

import (
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// HallucinationFilter implements a two-tier blacklist: a substring
// blacklist (copyright strings, known hallucinated phrases) and an
// exact-match blacklist compared after punctuation removal (brief
// interjections). The exact-match entries are gated behind a language tag
// so an operator can disable the "謝謝"/"Hello" entries when a meeting
// genuinely contains short utterances that happen to match them.
type HallucinationFilter struct {
	substrings  []string
	exactByLang map[string][]string
}

var defaultSubstrings = []string{
	"字幕由 Amara.org 社群提供",
	"請不吝點贊 訂閱 轉發 打賞支持明鏡與點點欄目",
}

var defaultExactByLang = map[string][]string{
	"zh": {"謝謝", "謝謝大家", "Hello", "字幕"},
}

// LoadHallucinationFilter reads a YAML file shaped as:
//
//	substrings: ["...", "..."]
//	exact_by_lang:
//	  zh: ["謝謝", "Hello"]
//
// An empty path falls back to the built-in defaults.
func LoadHallucinationFilter(path string) (*HallucinationFilter, error) {
	if path == "" {
		return &HallucinationFilter{substrings: defaultSubstrings, exactByLang: defaultExactByLang}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Substrings  []string            `yaml:"substrings"`
		ExactByLang map[string][]string `yaml:"exact_by_lang"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &HallucinationFilter{substrings: doc.Substrings, exactByLang: doc.ExactByLang}, nil
}

// ShouldDrop reports whether text is a hallucination under the given
// active language (the filter's exact-match tier is scoped to lang;
// substrings apply regardless of lang). An empty lang disables the
// exact-match tier entirely.
func (f *HallucinationFilter) ShouldDrop(text, lang string) bool {
	if f == nil {
		return false
	}
	for _, s := range f.substrings {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	if lang == "" {
		return false
	}
	stripped := stripPunctuation(text)
	for _, entry := range f.exactByLang[lang] {
		if stripped == stripPunctuation(entry) {
			return true
		}
	}
	return false
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > 0x2E80 && (unicode.IsLetter(r) || unicode.IsNumber(r)):
			// CJK and above: keep letters and numbers (covers Han
			// ideographs); full-width punctuation is dropped.
			b.WriteRune(r)
		}
	}
	return b.String()
}
