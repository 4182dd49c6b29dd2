// Package session implements the per-connection state machine that
// drives VAD → ASR → {Polish or Aligner}, throttles partial
// transcriptions, forwards events to the client, heartbeats, records
// audio, and finalises on close.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jerry88277/meetchi/internal/aligner"
	"github.com/jerry88277/meetchi/internal/api"
	"github.com/jerry88277/meetchi/internal/asr"
	"github.com/jerry88277/meetchi/internal/polish"
	"github.com/jerry88277/meetchi/internal/storage"
	"github.com/jerry88277/meetchi/internal/telemetry"
	"github.com/jerry88277/meetchi/internal/vad"
)

const (
	partialThrottle    = 2 * time.Second
	partialMinBuffer   = 1 * time.Second
	partialTimeout     = 10 * time.Second
	finalTimeout       = 20 * time.Second
	defaultPolishTimeout = 30 * time.Second
	alignmentThreshold = 0.4

	forceSpeechWindow = 3 * time.Second
)

// Deps bundles the capabilities a Coordinator needs, all behind
// interfaces — the coordinator never knows whether it is talking to a
// stub or a real backend.
type Deps struct {
	Transport        api.Transport
	ASR              *asr.Client
	ASRPool          *ASRWorkerPool
	Polish           polish.Client
	AudioSink        storage.AudioSink
	Recorder         storage.MeetingRecorder
	DataDir          string
	VADConfig        vad.Config
	VADScorerFactory func() (vad.Scorer, error) // builds one freshly-owned scorer per Coordinator; nil means start directly on the RMS fallback
	SampleRate       int
	Now              func() time.Time
	Metrics          *telemetry.Metrics // defaults to telemetry.Default when nil
	PolishTimeout    time.Duration      // defaults to 30s when zero
	OverlapDuration  time.Duration      // initial per-session default until a config message overrides it
}

// Coordinator owns all per-connection state. One Coordinator
// is created per accepted connection and never shared.
type Coordinator struct {
	deps Deps

	state     sessionState
	segmenter *vad.Segmenter
	vadScorer vad.Scorer
	aligner   *aligner.Aligner

	sendMu sync.Mutex

	wav *wavSink
}

// NewCoordinator builds a Coordinator ready for Run. The heartbeat task
// is started lazily in Run once the connection is accepted. Each
// Coordinator gets its own VADScorerFactory-built Scorer instance — a
// neural scorer like SileroScorer mutates its own tensors and recurrent
// hidden state on every call, so sharing one instance across sessions
// would race and leak one session's VAD state into another's.
func NewCoordinator(deps Deps) *Coordinator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.Default
	}
	if deps.PolishTimeout <= 0 {
		deps.PolishTimeout = defaultPolishTimeout
	}

	var scorer vad.Scorer
	if deps.VADScorerFactory != nil {
		s, err := deps.VADScorerFactory()
		if err != nil {
			log.Printf("session: vad scorer factory failed, falling back to RMS: %v", err)
		} else {
			scorer = s
		}
	}

	return &Coordinator{
		deps:      deps,
		segmenter: vad.NewSegmenter(deps.VADConfig, scorer),
		vadScorer: scorer,
		state: sessionState{
			mode:             api.ModeTranscription,
			sessionID:        uuid.NewString(),
			currentSegmentID: uuid.NewString(),
			overlapDuration:  deps.OverlapDuration,
		},
	}
}

// Run drives the session loop until the client disconnects or ctx is
// cancelled. It never returns a process-fatal error: the only errors
// returned are ErrClientDisconnect and transport-level send failures
// that make continuing pointless.
func (c *Coordinator) Run(ctx context.Context) error {
	if m := c.deps.Metrics; m != nil {
		m.SessionsOpened.Add(ctx, 1)
		m.ActiveSessions.Add(ctx, 1)
		defer m.ActiveSessions.Add(context.Background(), -1)
		defer m.SessionsClosed.Add(context.Background(), 1)
	}

	hbCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go runHeartbeat(hbCtx, c.send)

	defer c.finalizeOnClose(ctx)

	for {
		frame, err := c.deps.Transport.Recv()
		if err != nil {
			return ErrClientDisconnect
		}

		switch {
		case frame.JSON != nil:
			if err := c.handleText(ctx, frame.JSON); err != nil {
				return err
			}
		case frame.Binary != nil:
			if err := c.handleBinary(ctx, frame.Binary); err != nil {
				return err
			}
		}
	}
}

func (c *Coordinator) send(m *api.Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.deps.Transport.Send(m)
}

// handleText dispatches an incoming JSON control message.
func (c *Coordinator) handleText(ctx context.Context, m *api.Message) error {
	switch m.Type {
	case api.TypeConfig:
		c.applyConfig(m)
		return nil
	case api.TypePing:
		return c.send(&api.Message{Type: api.TypePong})
	case api.TypePong:
		return nil
	default:
		log.Printf("session: bad config/frame type %q, ignoring: %v", m.Type, ErrBadConfig)
		return nil
	}
}

// applyConfig merges a config message into session state: all fields are
// optional and sticky until the next config message. Only fields
// actually present on the incoming message (non-zero) overwrite existing
// state, so a later config message that only sets e.g. target_lang does
// not erase source_lang.
func (c *Coordinator) applyConfig(m *api.Message) {
	if m.SourceLang != "" {
		c.state.sourceLang = m.SourceLang
	}
	if m.TargetLang != "" {
		c.state.targetLang = m.TargetLang
	}
	if m.InitialPrompt != "" {
		c.state.initialPrompt = m.InitialPrompt
	}
	if m.MeetingID != "" {
		c.state.meetingID = m.MeetingID
	}
	if m.OverlapDuration != 0 {
		c.state.overlapDuration = time.Duration(m.OverlapDuration * float64(time.Second))
	}
	if m.Mode != "" {
		c.state.mode = m.Mode
	}

	if c.state.mode == api.ModeAlignment && c.aligner == nil {
		script := aligner.ParseScript(c.state.initialPrompt)
		if script.Empty() {
			log.Printf("session: %v", ErrScriptParseEmpty)
		}
		c.aligner = aligner.NewAligner(script)
	}
}

// handleBinary records the incoming audio chunk, feeds it to the
// segmenter, and handles either a segment closure or a partial emission.
func (c *Coordinator) handleBinary(ctx context.Context, data []byte) error {
	now := c.deps.Now()

	if !c.state.hasAudio {
		c.state.hasAudio = true
		c.state.firstAudioTime = now

		sink, err := newWAVSink(c.wavPath(), c.deps.SampleRate, 1, 16)
		if err != nil {
			log.Printf("session: failed to open audio sink: %v", err)
		} else {
			c.wav = sink
		}
	}

	if c.wav != nil {
		if err := c.wav.Write(data); err != nil {
			log.Printf("session: wav write failed: %v", err)
		}
	}

	forceSpeech := now.Sub(c.state.firstAudioTime) < forceSpeechWindow

	if segment, emitted := c.segmenter.ProcessChunk(data, forceSpeech); emitted {
		c.handleClosure(ctx, segment)
		return nil
	}

	return c.maybeEmitPartial(ctx, now)
}

// maybeEmitPartial throttles and, when due, transcribes the segmenter's
// current buffer and sends it as a partial result.
func (c *Coordinator) maybeEmitPartial(ctx context.Context, now time.Time) error {
	if now.Sub(c.state.lastPartialEmit) < partialThrottle {
		return nil
	}
	snapshot := c.segmenter.Snapshot()
	if byteDurationFor(len(snapshot), c.deps.SampleRate) < partialMinBuffer {
		return nil
	}

	c.state.lastPartialEmit = now

	pctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()

	samples := pcmToFloat32(snapshot)
	lang, prompt, skipFilter := c.state.sourceLang, c.state.initialPrompt, c.state.mode == api.ModeAlignment

	start := c.deps.Now()
	text := c.deps.ASRPool.Run(pctx, func(ctx context.Context) string {
		return c.deps.ASR.Transcribe(ctx, samples, lang, prompt, skipFilter)
	})
	if m := c.deps.Metrics; m != nil {
		m.ASRPartialDuration.Record(ctx, c.deps.Now().Sub(start).Seconds())
		if pctx.Err() != nil {
			m.ASRTimeouts.Add(ctx, 1)
		}
	}

	if utf8.RuneCountInString(text) <= 1 {
		return nil
	}
	return c.send(&api.Message{Type: api.TypePartial, ID: c.state.currentSegmentID, Content: text})
}

// handleClosure transcribes a closed segment and routes the result to
// either alignment or polish, depending on the session mode.
func (c *Coordinator) handleClosure(ctx context.Context, segment []byte) {
	windowed := c.prependOverlap(segment)
	c.state.lastFlushedTail = segment

	fctx, cancel := context.WithTimeout(ctx, finalTimeout)
	defer cancel()

	samples := pcmToFloat32(windowed)
	lang, prompt := c.state.sourceLang, c.state.initialPrompt
	skipFilter := c.state.mode == api.ModeAlignment

	start := c.deps.Now()
	text := c.deps.ASRPool.Run(fctx, func(ctx context.Context) string {
		return c.deps.ASR.Transcribe(ctx, samples, lang, prompt, skipFilter)
	})
	if m := c.deps.Metrics; m != nil {
		m.ASRFinalDuration.Record(ctx, c.deps.Now().Sub(start).Seconds())
		if fctx.Err() != nil {
			m.ASRTimeouts.Add(ctx, 1)
		}
	}

	segmentID := c.state.currentSegmentID

	if text == "" {
		c.send(&api.Message{Type: api.TypeRaw, ID: segmentID, Content: ""})
		c.rotateSegment()
		return
	}

	c.send(&api.Message{Type: api.TypeRaw, ID: segmentID, Content: text})

	switch c.state.mode {
	case api.ModeAlignment:
		c.runAlignment(segmentID, text)
	default:
		c.spawnPolish(segmentID, text)
	}

	c.state.previousContext = text
	c.rotateSegment()
}

func (c *Coordinator) runAlignment(segmentID, text string) {
	if c.aligner == nil {
		return
	}
	// Transcribe already ran the keyword-correction table over text; apply
	// it again explicitly so the alignment branch's contract ("corrected
	// text in, matches out") does not depend on a caller remembering that
	// Transcribe does this internally.
	text = c.deps.ASR.ApplyCorrections(text)
	start := c.deps.Now()
	matches := c.aligner.Match(text, true, alignmentThreshold)
	if metrics := c.deps.Metrics; metrics != nil {
		metrics.AlignDuration.Record(context.Background(), c.deps.Now().Sub(start).Seconds())
	}
	for i, m := range matches {
		id := segmentID
		if i > 0 {
			id = fmt.Sprintf("%s-%d", segmentID, i)
		}
		low := m.LowConfidence
		c.send(&api.Message{
			Type:          api.TypePolished,
			ID:            id,
			Content:       m.Source,
			Translated:    m.Target,
			LowConfidence: &low,
		})
	}
}

// spawnPolish detaches a goroutine to run the polish/translate call: the
// goroutine receives a polishTask value, never a pointer into
// sessionState.
func (c *Coordinator) spawnPolish(segmentID, text string) {
	task := polishTask{
		segmentID:       segmentID,
		text:            text,
		previousContext: c.state.previousContext,
		sourceLang:      c.state.sourceLang,
		targetLang:      c.state.targetLang,
	}
	polishClient := c.deps.Polish
	sendFn := c.send
	metrics := c.deps.Metrics
	now := c.deps.Now
	timeout := c.deps.PolishTimeout

	go func(t polishTask) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := now()
		result, err := polishClient.Polish(ctx, t.text, t.previousContext, t.sourceLang, t.targetLang)
		if metrics != nil {
			metrics.PolishDuration.Record(context.Background(), now().Sub(start).Seconds())
		}
		if err != nil {
			if metrics != nil {
				metrics.PolishFailures.Add(context.Background(), 1)
			}
			log.Printf("session: polish failed for segment %s: %v", t.segmentID, err)
			if sendErr := sendFn(&api.Message{Type: api.TypeError, ID: t.segmentID, Content: "Polishing failed."}); sendErr != nil {
				log.Printf("session: polish task discarding result, send failed (socket likely closed): %v", sendErr)
			}
			return
		}

		if sendErr := sendFn(&api.Message{
			Type:       api.TypePolished,
			ID:         t.segmentID,
			Content:    result.Refined,
			Translated: result.Translated,
		}); sendErr != nil {
			log.Printf("session: polish task discarding result for segment %s, send failed: %v", t.segmentID, sendErr)
		}
	}(task)
}

func (c *Coordinator) rotateSegment() {
	c.state.currentSegmentID = uuid.NewString()
	c.state.lastPartialEmit = time.Time{}
}

// prependOverlap prepends up to overlapDuration seconds of the
// previously flushed window, so the next ASR call sees a little trailing
// context from before the split.
func (c *Coordinator) prependOverlap(segment []byte) []byte {
	if c.state.overlapDuration <= 0 || len(c.state.lastFlushedTail) == 0 {
		return segment
	}
	overlapBytes := int(c.state.overlapDuration.Seconds() * float64(c.deps.SampleRate) * 2)
	if overlapBytes <= 0 {
		return segment
	}
	tail := c.state.lastFlushedTail
	if overlapBytes > len(tail) {
		overlapBytes = len(tail)
	}
	prefix := tail[len(tail)-overlapBytes:]
	out := make([]byte, 0, len(prefix)+len(segment))
	out = append(out, prefix...)
	out = append(out, segment...)
	return out
}

// finalizeOnClose flushes any trailing partial segment, closes the WAV
// sink, uploads the recording if a sink and meeting id are configured, and
// records the resulting URL against the meeting.
func (c *Coordinator) finalizeOnClose(context.Context) {
	// Uses a fresh background context for the tail flush: the caller's ctx
	// may already be cancelled once the transport disconnects, but the
	// last segment should still get a chance to transcribe and upload.
	if leftover, ok := c.segmenter.Flush(); ok {
		c.handleClosure(context.Background(), leftover)
	}

	if closer, ok := c.vadScorer.(interface{ Close() }); ok {
		closer.Close()
	}

	if c.wav == nil {
		return
	}
	if err := c.wav.Close(); err != nil {
		log.Printf("session: failed to close wav sink: %v", err)
	}

	localPath := c.wav.Path()
	uri := localPath

	if c.state.meetingID != "" && c.deps.AudioSink != nil {
		uploadCtx, cancel := context.WithTimeout(context.Background(), finalTimeout)
		defer cancel()
		if u, err := c.deps.AudioSink.Upload(uploadCtx, localPath, c.state.meetingID); err != nil {
			log.Printf("session: %v: %v, falling back to local path", ErrStorageUnavailable, err)
		} else {
			uri = u
		}
	}

	if c.state.meetingID != "" && c.deps.Recorder != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), finalTimeout)
		defer cancel()
		if err := c.deps.Recorder.UpdateAudioURL(recCtx, c.state.meetingID, uri); err != nil {
			log.Printf("session: failed to update meeting audio url: %v", err)
		}
	}
}

func (c *Coordinator) wavPath() string {
	return fmt.Sprintf("%s/%s.wav", c.deps.DataDir, c.state.sessionID)
}

func byteDurationFor(n, sampleRate int) time.Duration {
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

func pcmToFloat32(buf []byte) []float32 {
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
