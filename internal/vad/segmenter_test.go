package vad

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// sineChunks synthesizes n seconds of a PCM16LE sine burst at the given
// amplitude, split into chunkMs-sized chunks.
func sineChunks(seconds float64, amplitude float64, chunkMs int) [][]byte {
	totalSamples := int(seconds * SampleRate)
	chunkSamples := chunkMs * SampleRate / 1000
	samples := make([]int16, totalSamples)
	for i := 0; i < totalSamples; i++ {
		v := amplitude * math.Sin(2*math.Pi*220*float64(i)/SampleRate)
		samples[i] = int16(v * 32767)
	}
	var chunks [][]byte
	for start := 0; start < totalSamples; start += chunkSamples {
		end := start + chunkSamples
		if end > totalSamples {
			end = totalSamples
		}
		buf := make([]byte, (end-start)*2)
		for i, s := range samples[start:end] {
			buf[2*i] = byte(uint16(s))
			buf[2*i+1] = byte(uint16(s) >> 8)
		}
		chunks = append(chunks, buf)
	}
	return chunks
}

func silenceChunks(seconds float64, chunkMs int) [][]byte {
	totalSamples := int(seconds * SampleRate)
	chunkSamples := chunkMs * SampleRate / 1000
	var chunks [][]byte
	for start := 0; start < totalSamples; start += chunkSamples {
		end := start + chunkSamples
		if end > totalSamples {
			end = totalSamples
		}
		chunks = append(chunks, make([]byte, (end-start)*2))
	}
	return chunks
}

func TestZeroByteChunkIsNoOp(t *testing.T) {
	s := NewSegmenter(DefaultConfig(), nil)
	segment, emitted := s.ProcessChunk(nil, false)
	assert.False(t, emitted)
	assert.Nil(t, segment)
	assert.Empty(t, s.buf)
	assert.Zero(t, s.totalDuration)
}

func TestSilenceSplit(t *testing.T) {
	s := NewSegmenter(DefaultConfig(), nil)

	var segment []byte
	var emitted bool
	for _, c := range sineChunks(3.0, 0.1, 250) {
		segment, emitted = s.ProcessChunk(c, false)
		if emitted {
			t.Fatalf("unexpected emission during speech")
		}
	}
	for _, c := range silenceChunks(0.8, 250) {
		segment, emitted = s.ProcessChunk(c, false)
		if emitted {
			break
		}
	}

	assert.True(t, emitted, "expected exactly one emission after trailing silence")
	duration := byteDuration(len(segment))
	assert.GreaterOrEqual(t, duration, 3*time.Second-100*time.Millisecond)
	assert.LessOrEqual(t, duration, 3800*time.Millisecond+100*time.Millisecond)
	assert.Empty(t, s.buf, "buffer must be empty after emission")
}

func TestMaxDurationSplit(t *testing.T) {
	s := NewSegmenter(DefaultConfig(), nil)

	var emissions [][]byte
	for _, c := range sineChunks(8.0, 0.1, 250) {
		if seg, emitted := s.ProcessChunk(c, false); emitted {
			emissions = append(emissions, seg)
		}
	}
	assert.Len(t, emissions, 1, "continuous speech should only max-duration-split once before close")

	first := byteDuration(len(emissions[0]))
	assert.GreaterOrEqual(t, first, 6800*time.Millisecond)
	assert.LessOrEqual(t, first, 7000*time.Millisecond+50*time.Millisecond)

	tail, ok := s.Flush()
	assert.True(t, ok)
	assert.NotEmpty(t, tail)
}

func TestMaxDurationExactBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDuration = 1 * time.Second
	s := NewSegmenter(cfg, nil)

	chunk := sineChunks(1.0, 0.1, 1000)[0]
	_, emitted := s.ProcessChunk(chunk, false)
	assert.True(t, emitted, "total_duration == max_duration must trigger a split")
}

// TestMinSpeechDurationDiscard checks the segmenter never emits a window
// shorter than MinSpeechDuration: a 300 ms max-duration split reaches
// flush with a window under the 500 ms minimum, which must be discarded.
func TestMinSpeechDurationDiscard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSilenceDuration = 100 * time.Millisecond
	cfg.MaxDuration = 300 * time.Millisecond
	s := NewSegmenter(cfg, nil)

	for _, c := range sineChunks(0.2, 0.1, 100) {
		s.ProcessChunk(c, false)
	}
	var emitted bool
	for _, c := range silenceChunks(0.3, 100) {
		if _, ok := s.ProcessChunk(c, false); ok {
			emitted = true
		}
	}
	assert.False(t, emitted, "a too-short window must be discarded, not emitted")
}
