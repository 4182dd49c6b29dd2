//go:build sherpa

package asr

import (
	"context"
	"fmt"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SherpaRecognizer is the real ASR backend, built on sherpa-onnx-go's
// offline recognizer. One recognizer is constructed once at startup and
// shared across sessions; each call allocates its own OfflineStream so
// concurrent sessions never share decode state.
type SherpaRecognizer struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

// SherpaConfig points at an offline transducer/paraformer/whisper model
// directory.
type SherpaConfig struct {
	ModelDir   string
	NumThreads int
	Provider   string // cpu, cuda, coreml
}

// NewSherpaRecognizer loads the model once and returns a ready Recognizer.
func NewSherpaRecognizer(cfg SherpaConfig) (*SherpaRecognizer, error) {
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("asr: sherpa model dir is required")
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 2
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "cpu"
	}

	config := sherpa.OfflineRecognizerConfig{}
	config.FeatConfig = sherpa.FeatureConfig{SampleRate: 16000, FeatureDim: 80}
	config.ModelConfig.Paraformer.Model = cfg.ModelDir + "/model.onnx"
	config.ModelConfig.Tokens = cfg.ModelDir + "/tokens.txt"
	config.ModelConfig.NumThreads = numThreads
	config.ModelConfig.Provider = provider
	config.ModelConfig.Debug = 0
	config.DecodingMethod = "greedy_search"

	recognizer := sherpa.NewOfflineRecognizer(&config)
	if recognizer == nil {
		return nil, fmt.Errorf("asr: sherpa: failed to create recognizer from %q", cfg.ModelDir)
	}
	return &SherpaRecognizer{recognizer: recognizer}, nil
}

// Recognize implements Recognizer. sherpa-onnx's offline API has no
// concept of no-speech probability per sub-segment, so the whole result is
// reported as a single Segment with NoSpeechProb 0 — the hallucination
// filter and keyword corrections in Client still apply on top.
func (r *SherpaRecognizer) Recognize(ctx context.Context, samples []float32, lang, initialPrompt string) ([]Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := sherpa.NewOfflineStream(r.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(16000, samples)
	r.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil || result.Text == "" {
		return nil, nil
	}
	return []Segment{{Text: result.Text, NoSpeechProb: 0}}, nil
}

// Close releases the underlying recognizer.
func (r *SherpaRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(r.recognizer)
		r.recognizer = nil
	}
}
