package asr

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorrectionMap is an ordered set of pure string substitutions applied to
// raw ASR output. Order matters: entries are applied in the sequence they
// were loaded, once each, left to right over the text.
type CorrectionMap struct {
	pairs []correctionPair
}

type correctionPair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// defaultCorrections is empty until an operator supplies a YAML file; most
// deployments carry meeting- or org-specific jargon corrections (product
// names, acronyms) that have no sensible built-in default.
var defaultCorrections = []correctionPair{}

// LoadCorrectionMap reads pairs from a YAML file shaped as:
//
//	- from: "某詞"
//	  to: "某詞修正"
//
// An empty path falls back to defaultCorrections.
func LoadCorrectionMap(path string) (*CorrectionMap, error) {
	if path == "" {
		return &CorrectionMap{pairs: defaultCorrections}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs []correctionPair
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	return &CorrectionMap{pairs: pairs}, nil
}

// Apply runs every substitution once, in order. Applying the map twice
// should equal applying it once; that only holds if the map contains no
// cyclic rewrites (A->B, B->A), a constraint this function does not itself
// enforce but that LoadCorrectionMap callers are expected to respect when
// authoring the YAML file.
func (m *CorrectionMap) Apply(text string) string {
	if m == nil {
		return text
	}
	for _, p := range m.pairs {
		if p.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, p.From, p.To)
	}
	return text
}
