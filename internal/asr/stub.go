package asr

import "context"

// StubRecognizer is the in-process capability used by tests and by
// deployments with no ASR backend wired in yet.
type StubRecognizer struct {
	// Response is returned verbatim from every call. Defaults to empty,
	// so an unconfigured stub fails closed rather than fabricating text.
	Response string
	// NoSpeechProb is attached to the single returned segment.
	NoSpeechProb float64
}

func (s *StubRecognizer) Recognize(ctx context.Context, samples []float32, lang, initialPrompt string) ([]Segment, error) {
	if s.Response == "" {
		return nil, nil
	}
	return []Segment{{Text: s.Response, NoSpeechProb: s.NoSpeechProb}}, nil
}
