// internal/media/recorder.go
package media

import (
	"fmt"
	"sync"
	"time"
)

// Default recording bounds.
const (
	DefaultMinRecording = 2 * time.Second
	DefaultMaxRecording = 15 * time.Second
)

// Recorder bounds a live capture session. At most one session is active at
// a time; chunks arriving after the maximum duration are dropped, and a
// session stopped before the minimum duration is discarded entirely.
type Recorder struct {
	min time.Duration
	max time.Duration
	now func() time.Time

	mu      sync.Mutex
	active  bool
	started time.Time
	mime    string
	buf     []byte
}

// NewRecorder creates a recorder with the given bounds; zero values take
// the defaults.
func NewRecorder(min, max time.Duration) *Recorder {
	if min <= 0 {
		min = DefaultMinRecording
	}
	if max <= 0 {
		max = DefaultMaxRecording
	}
	return &Recorder{min: min, max: max, now: time.Now}
}

// Start begins a capture session for media of the given MIME type.
func (r *Recorder) Start(mime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrRecorderBusy
	}
	r.active = true
	r.started = r.now()
	r.mime = mime
	r.buf = nil
	return nil
}

// Append adds a chunk of captured bytes. It reports whether the chunk was
// accepted; once the maximum duration has elapsed, chunks are dropped and
// the caller should Stop.
func (r *Recorder) Append(chunk []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return false, ErrNotRecording
	}
	if r.now().Sub(r.started) >= r.max {
		return false, nil
	}
	r.buf = append(r.buf, chunk...)
	return true, nil
}

// Elapsed returns how long the current session has been recording,
// capped at the maximum duration.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return 0
	}
	d := r.now().Sub(r.started)
	if d > r.max {
		d = r.max
	}
	return d
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Stop ends the session and returns the captured bytes and their MIME
// type. A session shorter than the minimum is discarded and rejected.
func (r *Recorder) Stop() (string, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return "", nil, ErrNotRecording
	}
	r.active = false

	elapsed := r.now().Sub(r.started)
	mime, buf := r.mime, r.buf
	r.buf = nil

	if elapsed < r.min {
		return "", nil, fmt.Errorf("%w: %s (minimum %s)", ErrRecordingTooShort, elapsed.Round(time.Millisecond), r.min)
	}
	return mime, buf, nil
}

// Discard abandons the session, dropping any captured bytes. Safe to call
// when no session is active; leaving the capture view always releases the
// device this way.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.buf = nil
}
