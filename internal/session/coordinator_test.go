package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jerry88277/meetchi/internal/api"
	"github.com/jerry88277/meetchi/internal/asr"
	"github.com/jerry88277/meetchi/internal/polish"
	"github.com/jerry88277/meetchi/internal/vad"
)

// fakeTransport is an in-memory api.Transport double: the test feeds
// inbound frames through In and observes outbound messages via Sent.
type fakeTransport struct {
	in     chan api.Frame
	mu     sync.Mutex
	sent   []*api.Message
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan api.Frame, 1024)}
}

func (t *fakeTransport) Send(m *api.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("fakeTransport: send after close")
	}
	t.sent = append(t.sent, m)
	return nil
}

func (t *fakeTransport) Recv() (api.Frame, error) {
	f, ok := <-t.in
	if !ok {
		return api.Frame{}, fmt.Errorf("fakeTransport: closed")
	}
	return f, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) pushJSON(m *api.Message) { t.in <- api.Frame{JSON: m} }
func (t *fakeTransport) pushBinary(b []byte)      { t.in <- api.Frame{Binary: b} }
func (t *fakeTransport) hangUp()                  { close(t.in) }

func (t *fakeTransport) snapshotSent() []*api.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*api.Message, len(t.sent))
	copy(out, t.sent)
	return out
}

// squareWaveChunks synthesizes chunkMs-long PCM16LE chunks with enough
// amplitude to clear the RMS fallback scorer's speech threshold.
func squareWaveChunks(seconds float64, chunkMs int) [][]byte {
	sampleRate := vad.SampleRate
	samplesPerChunk := sampleRate * chunkMs / 1000
	totalSamples := int(seconds * float64(sampleRate))
	var chunks [][]byte
	for n := 0; n < totalSamples; n += samplesPerChunk {
		count := samplesPerChunk
		if n+count > totalSamples {
			count = totalSamples - n
		}
		buf := make([]byte, count*2)
		for i := 0; i < count; i++ {
			v := int16(16000)
			if (n+i)%2 == 0 {
				v = -16000
			}
			buf[2*i] = byte(uint16(v))
			buf[2*i+1] = byte(uint16(v) >> 8)
		}
		chunks = append(chunks, buf)
	}
	return chunks
}

func silentChunks(seconds float64, chunkMs int) [][]byte {
	sampleRate := vad.SampleRate
	samplesPerChunk := sampleRate * chunkMs / 1000
	totalSamples := int(seconds * float64(sampleRate))
	var chunks [][]byte
	for n := 0; n < totalSamples; n += samplesPerChunk {
		count := samplesPerChunk
		if n+count > totalSamples {
			count = totalSamples - n
		}
		chunks = append(chunks, make([]byte, count*2))
	}
	return chunks
}

// fakeClock advances by a fixed step every time Now is called, so a test
// can simulate several seconds of wall-clock elapsing across a tight,
// sleep-free loop of chunk pushes — the coordinator's force_speech window
// is wall-clock-relative, not audio-time-relative.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.t
	c.t = c.t.Add(c.step)
	return cur
}

func newTestCoordinator(t *testing.T, transport api.Transport, now func() time.Time) *Coordinator {
	t.Helper()
	corrections, err := asr.LoadCorrectionMap("")
	assert.NoError(t, err)
	blacklist, err := asr.LoadHallucinationFilter("")
	assert.NoError(t, err)

	asrClient := asr.NewClient(&asr.StubRecognizer{Response: "你好"}, corrections, blacklist, "")
	polishClient := &polish.StubClient{Result: polish.Result{Refined: "你好", Translated: "Hello"}}

	return NewCoordinator(Deps{
		Transport:  transport,
		ASR:        asrClient,
		ASRPool:    NewASRWorkerPool(2),
		Polish:     polishClient,
		DataDir:    t.TempDir(),
		VADConfig:  vad.DefaultConfig(),
		SampleRate: vad.SampleRate,
		Now:        now,
	})
}

// TestSessionEventOrdering checks a segment emits partial* -> one raw ->
// one polished, all sharing an id; subsequent events use a different id.
func TestSessionEventOrdering(t *testing.T) {
	transport := newFakeTransport()
	clock := &fakeClock{t: time.Now(), step: 100 * time.Millisecond}
	coord := newTestCoordinator(t, transport, clock.now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	transport.pushJSON(&api.Message{Type: api.TypeConfig, Mode: api.ModeTranscription, SourceLang: "zh", TargetLang: "en"})

	for _, c := range squareWaveChunks(5.0, 100) {
		transport.pushBinary(c)
	}
	for _, c := range silentChunks(0.8, 100) {
		transport.pushBinary(c)
	}

	var sent []*api.Message
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sent = transport.snapshotSent()
		if len(sent) > 0 && sent[len(sent)-1].Type == api.TypePolished {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	transport.hangUp()
	<-done

	// The polish task is detached and may still be in flight when Run
	// returns; give it a moment to land before reading the final snapshot.
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sent = transport.snapshotSent()
		if len(sent) > 0 && sent[len(sent)-1].Type == api.TypePolished {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.NotEmpty(t, sent)

	var firstID string
	sawRaw := false
	sawPolished := false
	for _, m := range sent {
		switch m.Type {
		case api.TypePartial:
			assert.False(t, sawRaw, "partial must not follow raw for the same id")
			if firstID == "" {
				firstID = m.ID
			}
			assert.Equal(t, firstID, m.ID)
		case api.TypeRaw:
			if firstID == "" {
				firstID = m.ID
			}
			assert.Equal(t, firstID, m.ID)
			assert.Equal(t, "你好", m.Content)
			sawRaw = true
		case api.TypePolished:
			assert.True(t, sawRaw, "polished must follow raw")
			assert.Equal(t, firstID, m.ID)
			assert.Equal(t, "你好", m.Content)
			assert.Equal(t, "Hello", m.Translated)
			sawPolished = true
		}
	}
	assert.True(t, sawRaw, "expected exactly one raw event")
	assert.True(t, sawPolished, "expected one polished event")
}

// TestSegmentIDRotatesOnlyAfterRaw checks invariant 1's second clause: the
// segment id used for subsequent partials changes only once a raw for the
// previous id has already gone out.
func TestSegmentIDRotatesOnlyAfterRaw(t *testing.T) {
	transport := newFakeTransport()
	clock := &fakeClock{t: time.Now(), step: 100 * time.Millisecond}
	coord := newTestCoordinator(t, transport, clock.now)

	firstSegmentID := coord.state.currentSegmentID
	assert.NotEmpty(t, firstSegmentID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	transport.pushJSON(&api.Message{Type: api.TypeConfig, Mode: api.ModeTranscription})
	for _, c := range squareWaveChunks(5.0, 100) {
		transport.pushBinary(c)
	}
	for _, c := range silentChunks(0.8, 100) {
		transport.pushBinary(c)
	}

	deadline := time.Now().Add(5 * time.Second)
	var sawRaw bool
	for time.Now().Before(deadline) {
		for _, m := range transport.snapshotSent() {
			if m.Type == api.TypeRaw {
				sawRaw = true
			}
		}
		if sawRaw {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, sawRaw)

	transport.hangUp()
	<-done

	for _, m := range transport.snapshotSent() {
		if m.Type == api.TypePartial {
			assert.Equal(t, firstSegmentID, m.ID)
		}
	}
}
