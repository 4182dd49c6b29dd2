package session

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// wavSink is a streaming PCM16LE mono WAV writer. Write takes the
// client's raw bytes directly and copies them unchanged — no
// transcoding step, since the client already sends PCM16LE.
type wavSink struct {
	file          *os.File
	path          string
	sampleRate    int
	channels      int
	bitsPerSample int
	bytesWritten  int64
	mu            sync.Mutex
}

func newWAVSink(path string, sampleRate, channels, bitsPerSample int) (*wavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("session: create wav file: %w", err)
	}
	w := &wavSink{file: f, path: path, sampleRate: sampleRate, channels: channels, bitsPerSample: bitsPerSample}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavSink) writeHeader() error {
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}

	byteRate := w.sampleRate * w.channels * w.bitsPerSample / 8
	blockAlign := w.channels * w.bitsPerSample / 8
	dataSize := uint32(w.bytesWritten)

	w.file.WriteString("RIFF")
	binary.Write(w.file, binary.LittleEndian, uint32(36+dataSize))
	w.file.WriteString("WAVE")

	w.file.WriteString("fmt ")
	binary.Write(w.file, binary.LittleEndian, uint32(16))
	binary.Write(w.file, binary.LittleEndian, uint16(1))
	binary.Write(w.file, binary.LittleEndian, uint16(w.channels))
	binary.Write(w.file, binary.LittleEndian, uint32(w.sampleRate))
	binary.Write(w.file, binary.LittleEndian, uint32(byteRate))
	binary.Write(w.file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(w.file, binary.LittleEndian, uint16(w.bitsPerSample))

	w.file.WriteString("data")
	return binary.Write(w.file, binary.LittleEndian, dataSize)
}

// Write appends raw PCM16LE bytes verbatim. An odd chunk length is a
// protocol violation and fails loudly rather than being silently
// accepted.
func (w *wavSink) Write(pcm []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(pcm)%2 != 0 {
		return fmt.Errorf("session: odd-length PCM chunk (%d bytes): protocol violation", len(pcm))
	}
	if _, err := w.file.Seek(0, 2); err != nil {
		return err
	}
	n, err := w.file.Write(pcm)
	if err != nil {
		return err
	}
	w.bytesWritten += int64(n)
	return nil
}

// Close finalizes the header and closes the file.
func (w *wavSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Path returns the local file path, used as the fallback reference when
// upload to remote storage is unavailable.
func (w *wavSink) Path() string {
	return w.path
}
