// Package storage uploads session recordings to durable storage: given a
// local WAV path and optional meeting id, upload the blob to object
// storage and return a durable URI, or fall back to returning the local
// path when no upload backend is configured or the upload fails.
package storage

import "context"

// AudioSink uploads a finished session recording. At session close, the
// Coordinator calls Upload once; a failure must never fail the session
// retroactively.
type AudioSink interface {
	Upload(ctx context.Context, localPath, meetingID string) (uri string, err error)
}

// MeetingRecorder updates the meeting record's audio-URL field in
// whatever system of record tracks meetings. The gateway does not own
// that database; the default implementation is a no-op, and a real
// implementation is a documented extension point for whoever owns that
// layer.
type MeetingRecorder interface {
	UpdateAudioURL(ctx context.Context, meetingID, uri string) error
}

// NoopRecorder discards every update. Used when the gateway runs without
// a connection to the meeting database.
type NoopRecorder struct{}

func (NoopRecorder) UpdateAudioURL(ctx context.Context, meetingID, uri string) error {
	return nil
}

// LocalSink never uploads; it returns the local path itself as the "uri".
// Used when no GCS bucket is configured.
type LocalSink struct{}

func (LocalSink) Upload(ctx context.Context, localPath, meetingID string) (string, error) {
	return localPath, nil
}
