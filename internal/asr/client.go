// Package asr implements a hallucination-filtered, keyword-corrected
// transcription call over a pluggable Recognizer backend. Callers depend
// only on Client, never on a concrete backend.
package asr

import (
	"context"
	"log"
	"strings"
)

// Segment is one backend-reported transcription fragment together with its
// no-speech probability, used to decide which fragments get concatenated.
type Segment struct {
	Text         string
	NoSpeechProb float64
}

// Recognizer is the raw backend capability: turn a float32 PCM window into
// sub-segments. Implementations never need to worry about hallucination
// filtering or keyword correction — Client layers that on top.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, lang, initialPrompt string) ([]Segment, error)
}

const noSpeechThreshold = 0.85

// zhSystemPrompt is prepended to the caller's initial prompt whenever
// lang == "zh".
const zhSystemPrompt = "以下是繁體中文的會議逐字稿，請使用標準標點符號，不要使用簡體字。"

// Client layers keyword correction and hallucination filtering on top of
// a Recognizer, a CorrectionMap, and a HallucinationFilter.
type Client struct {
	backend     Recognizer
	corrections *CorrectionMap
	blacklist   *HallucinationFilter
	filterLang  string
}

// NewClient wires a backend with the correction/blacklist tables loaded at
// startup. filterLang gates the exact-match hallucination tier; pass ""
// to disable it entirely.
func NewClient(backend Recognizer, corrections *CorrectionMap, blacklist *HallucinationFilter, filterLang string) *Client {
	return &Client{backend: backend, corrections: corrections, blacklist: blacklist, filterLang: filterLang}
}

// ApplyCorrections runs the client's keyword-correction table over text.
// Transcribe already applies it to every result it returns; callers that
// branch on the raw text after Transcribe (e.g. script alignment) can call
// this again to make that dependency explicit rather than relying on
// Transcribe's internals.
func (c *Client) ApplyCorrections(text string) string {
	return c.corrections.Apply(text)
}

// Transcribe never returns an error: any backend failure yields "".
func (c *Client) Transcribe(ctx context.Context, samples []float32, lang, initialPrompt string, skipHallucinationFilter bool) string {
	prompt := initialPrompt
	if lang == "zh" {
		prompt = zhSystemPrompt + " " + initialPrompt
	}

	segments, err := c.backend.Recognize(ctx, samples, lang, prompt)
	if err != nil {
		log.Printf("asr: recognize failed: %v", err)
		return ""
	}

	var b strings.Builder
	for _, seg := range segments {
		if seg.NoSpeechProb >= noSpeechThreshold {
			continue
		}
		b.WriteString(seg.Text)
	}
	text := c.corrections.Apply(b.String())

	if skipHallucinationFilter {
		return text
	}
	if c.blacklist.ShouldDrop(text, c.filterLang) {
		return ""
	}
	return text
}
