package session

import "errors"

// Error kinds. Of these, only ErrClientDisconnect is ever returned from
// the Coordinator's Run loop (Run may also return a transport send
// error); ErrBadConfig and ErrScriptParseEmpty are only logged, and the
// others are handled internally (ASR/Polish/storage failures degrade to
// an event or a fallback and never propagate as a Go error).
var (
	ErrClientDisconnect  = errors.New("session: client disconnected")
	ErrASRUnavailable    = errors.New("session: asr backend unavailable")
	ErrASRTimeout        = errors.New("session: asr call timed out")
	ErrPolishFailed      = errors.New("session: polish call failed")
	ErrBadConfig         = errors.New("session: malformed config message")
	ErrScriptParseEmpty  = errors.New("session: alignment script has no segments")
	ErrStorageUnavailable = errors.New("session: audio storage unavailable")
)
