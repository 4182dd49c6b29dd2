package vad

import (
	"log"
	"time"
)

// Default tunables for the segmenter.
const (
	DefaultSilenceThreshold   = 0.3
	DefaultMinSilenceDuration = 600 * time.Millisecond
	DefaultMinSpeechDuration  = 500 * time.Millisecond
	DefaultMaxDuration        = 7 * time.Second

	rmsOverrideFloor   = 0.001
	flushDiscardRMS    = 0.0001
	emitMinTotal       = 1 * time.Second
	bytesPerSample     = 2 // PCM16LE mono
)

// Config bundles the segmenter's tunables.
type Config struct {
	MinSilenceDuration time.Duration
	MinSpeechDuration  time.Duration
	MaxDuration        time.Duration
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		MinSilenceDuration: DefaultMinSilenceDuration,
		MinSpeechDuration:  DefaultMinSpeechDuration,
		MaxDuration:        DefaultMaxDuration,
	}
}

// Segmenter buffers raw audio and decides when to close a segment. One
// Segmenter is owned by exactly one session's Coordinator; it holds no
// state shared across sessions.
type Segmenter struct {
	cfg Config

	primary  Scorer
	fallback Scorer
	usingFallback bool
	loggedFallback bool

	buf             []byte
	silenceDuration time.Duration
	totalDuration   time.Duration
}

// NewSegmenter builds a Segmenter. primary may be nil to start directly on
// the RMS fallback (e.g. when no Silero model was configured).
func NewSegmenter(cfg Config, primary Scorer) *Segmenter {
	if cfg.MinSilenceDuration == 0 {
		cfg.MinSilenceDuration = DefaultMinSilenceDuration
	}
	if cfg.MinSpeechDuration == 0 {
		cfg.MinSpeechDuration = DefaultMinSpeechDuration
	}
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	s := &Segmenter{cfg: cfg, primary: primary, fallback: RMSScorer{}}
	if primary == nil {
		s.usingFallback = true
	}
	return s
}

// ProcessChunk appends chunk to the current segment and decides whether
// the silence/max-duration triggers close it. It returns the closed
// segment's bytes and true when a flush occurs, or (nil, false)
// otherwise. A zero-length chunk is a no-op.
func (s *Segmenter) ProcessChunk(chunk []byte, forceSpeech bool) ([]byte, bool) {
	if len(chunk) == 0 {
		return nil, false
	}

	s.buf = append(s.buf, chunk...)

	chunkDuration := byteDuration(len(chunk))
	isSpeech := forceSpeech || s.scoreSpeech(chunk)

	if isSpeech {
		s.silenceDuration = 0
	} else {
		s.silenceDuration += chunkDuration
	}
	s.totalDuration += chunkDuration

	shouldEmit := (s.totalDuration > emitMinTotal && s.silenceDuration >= s.cfg.MinSilenceDuration) ||
		s.totalDuration >= s.cfg.MaxDuration
	if !shouldEmit {
		return nil, false
	}
	return s.flush()
}

// Snapshot returns a copy of the buffer without mutating state, used for
// partial transcription mid-utterance.
func (s *Segmenter) Snapshot() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// Flush forces emission of the current buffer regardless of the silence/
// max-duration triggers, used at session close to drain the tail of a
// session that never reached a natural split.
func (s *Segmenter) Flush() ([]byte, bool) {
	if len(s.buf) == 0 {
		return nil, false
	}
	return s.flush()
}

func (s *Segmenter) flush() ([]byte, bool) {
	buf := s.buf
	duration := byteDuration(len(buf))
	r := rms(bytesToFloat32(buf))

	s.buf = nil
	s.silenceDuration = 0
	s.totalDuration = 0

	if duration < s.cfg.MinSpeechDuration || r < flushDiscardRMS {
		return nil, false
	}
	return buf, true
}

// scoreSpeech implements the logical OR over 512-sample sub-windows plus
// the RMS-override-to-silence rule.
func (s *Segmenter) scoreSpeech(chunk []byte) bool {
	samples := bytesToFloat32(chunk)

	speech := false
	if s.usingFallback {
		speech = s.scoreWindows(s.fallback, samples)
	} else {
		ok, err := s.tryPrimary(samples)
		if err != nil {
			s.usingFallback = true
			if !s.loggedFallback {
				log.Printf("vad: primary scorer failed, falling back to RMS for remainder of session: %v", err)
				s.loggedFallback = true
			}
			speech = s.scoreWindows(s.fallback, samples)
		} else {
			speech = ok
		}
	}

	if speech && rms(samples) < rmsOverrideFloor {
		speech = false
	}
	return speech
}

func (s *Segmenter) tryPrimary(samples []float32) (bool, error) {
	for start := 0; start < len(samples); start += windowSize {
		end := start + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		score, err := s.primary.Score(samples[start:end])
		if err != nil {
			return false, err
		}
		if score >= s.primary.Threshold() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Segmenter) scoreWindows(scorer Scorer, samples []float32) bool {
	for start := 0; start < len(samples); start += windowSize {
		end := start + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		score, err := scorer.Score(samples[start:end])
		if err == nil && score >= scorer.Threshold() {
			return true
		}
	}
	return false
}

func byteDuration(n int) time.Duration {
	samples := n / bytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

func bytesToFloat32(buf []byte) []float32 {
	n := len(buf) / 2
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		u := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		out[i] = float32(int16(u)) / 32768.0
	}
	return out
}
