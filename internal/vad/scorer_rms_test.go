package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRMSScorerSilenceScoresZero(t *testing.T) {
	s := RMSScorer{}
	score, err := s.Score(make([]float32, 100))
	assert.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestRMSScorerEmptyWindowScoresZero(t *testing.T) {
	s := RMSScorer{}
	score, err := s.Score(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestRMSScorerLoudWindowExceedsThreshold(t *testing.T) {
	s := RMSScorer{}
	window := make([]float32, 100)
	for i := range window {
		if i%2 == 0 {
			window[i] = 0.5
		} else {
			window[i] = -0.5
		}
	}
	score, err := s.Score(window)
	assert.NoError(t, err)
	assert.Greater(t, score, s.Threshold())
}

func TestRMSScorerThresholdIsFixed(t *testing.T) {
	assert.Equal(t, 0.005, RMSScorer{}.Threshold())
}
