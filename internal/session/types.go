package session

import "time"

// sessionState is the per-connection record of mutable state. It is
// touched only by the Coordinator's own loop goroutine — detached polish
// tasks and the heartbeat task never read or write it directly; they get
// their own owned copies instead.
type sessionState struct {
	sourceLang      string
	targetLang      string
	initialPrompt   string
	meetingID       string
	overlapDuration time.Duration
	mode            string

	// sessionID is assigned once per connection and never rotates; it
	// names the session's single WAV file. currentSegmentID rotates after
	// every closure and is never a safe filename to reuse across segments.
	sessionID        string
	currentSegmentID string
	previousContext  string

	firstAudioTime   time.Time
	hasAudio         bool
	lastPartialEmit  time.Time
	lastFlushedTail  []byte
}

// polishTask carries the owned-copy arguments a detached polish goroutine
// needs: segment id, text, previous context, and the language pair —
// never a borrow into sessionState, which the goroutine must not touch.
type polishTask struct {
	segmentID       string
	text            string
	previousContext string
	sourceLang      string
	targetLang      string
}
