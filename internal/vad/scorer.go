// Package vad implements per-chunk speech/silence classification and
// silence/max-duration-driven segment emission.
package vad

// windowSize is the width, in samples, of one sub-window scored by Scorer.
const windowSize = 512

// SampleRate is the only rate the segmenter accepts.
const SampleRate = 16000

// Scorer produces a speech-likelihood score for one windowSize-sample
// float32 window. Score() does not itself decide speech/silence — the
// caller compares the result against Threshold().
type Scorer interface {
	Score(window []float32) (float64, error)
	Threshold() float64
}
