// internal/session/session.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/report"
)

// State of one analysis attempt.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateAnalyzing
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateAnalyzing:
		return "analyzing"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the state name rather than its ordinal.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DefaultTick is the illustrative progress interval.
const DefaultTick = 500 * time.Millisecond

// Captions rotated through while the illustrative progress advances.
var analysisSteps = []string{
	"Warming up the AI... sniffing out the details.",
	"Analyzing gait and posture for happy wiggles.",
	"Decoding tail wags and ear positions.",
	"Listening for barks, yips, and woofs.",
	"Checking for zoomies and play bows.",
	"Translating findings into human speak.",
	"Generating your Pawsight report...",
}

// Analyzer is the generative model capability behind the attempt.
type Analyzer interface {
	Analyze(ctx context.Context, sub report.Subject, ref media.Reference) (*report.Report, int64, error)
}

// Uploader transfers raw media and returns a durable URL.
type Uploader interface {
	Upload(ctx context.Context, name, mime string, data []byte, progress func(pct int)) (string, error)
}

// Putter is the slice of the report store an attempt needs.
type Putter interface {
	Put(r *report.Report) (string, error)
}

// RawMedia is captured or selected bytes that still need a network
// transfer before analysis.
type RawMedia struct {
	Name string
	MIME string
	Data []byte
}

// Input for one attempt. Exactly one of Ref and Raw is set.
type Input struct {
	Subject report.Subject
	Ref     media.Reference
	Raw     *RawMedia
}

// Snapshot is the UI-visible view of an attempt.
type Snapshot struct {
	State          State  `json:"state"`
	Progress       int    `json:"progress"`
	Step           string `json:"step,omitempty"`
	UploadProgress int    `json:"upload_progress"`
	ReportID       string `json:"report_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Attempt drives one analysis from media handoff to stored report.
// Error is terminal; a new attempt starts fresh from idle.
type Attempt struct {
	analyzer Analyzer
	uploader Uploader
	putter   Putter
	tick     time.Duration

	mu        sync.Mutex
	state     State
	progress  int
	step      string
	uploadPct int
	reportID  string
	err       error
	// Once settled, the ticker must never touch progress again.
	settled bool
	doneCh  chan struct{}
}

func newAttempt(analyzer Analyzer, uploader Uploader, putter Putter, tick time.Duration) *Attempt {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Attempt{
		analyzer: analyzer,
		uploader: uploader,
		putter:   putter,
		tick:     tick,
		state:    StateIdle,
		doneCh:   make(chan struct{}),
	}
}

// Snapshot returns the current UI-visible view.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		State:          a.state,
		Progress:       a.progress,
		Step:           a.step,
		UploadProgress: a.uploadPct,
		ReportID:       a.reportID,
	}
	if a.err != nil {
		snap.Error = a.err.Error()
	}
	return snap
}

// Done reports whether the attempt has reached a terminal state.
func (a *Attempt) Done() bool {
	select {
	case <-a.doneCh:
		return true
	default:
		return false
	}
}

// Wait blocks until the attempt settles or ctx is cancelled.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.doneCh:
		return nil
	}
}

// Err returns the terminal error, if any.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// run drives the attempt to completion. Uploading is entered only when the
// media still needs a transfer; Complete only after the report is durably
// stored.
func (a *Attempt) run(ctx context.Context, in Input) (string, error) {
	ref := in.Ref
	if in.Raw != nil {
		a.setState(StateUploading)
		url, err := a.uploader.Upload(ctx, in.Raw.Name, in.Raw.MIME, in.Raw.Data, a.setUploadProgress)
		if err != nil {
			a.fail(err)
			return "", err
		}
		ref = media.Remote(url)
	}

	a.setState(StateAnalyzing)
	stop := a.startTicker()
	rep, _, err := a.analyzer.Analyze(ctx, in.Subject, ref)
	stop()
	if err != nil {
		a.fail(err)
		return "", err
	}

	id, err := a.putter.Put(rep)
	if err != nil {
		a.fail(err)
		return "", err
	}

	a.mu.Lock()
	a.state = StateComplete
	a.progress = 100
	a.step = analysisSteps[len(analysisSteps)-1]
	a.reportID = id
	a.mu.Unlock()
	close(a.doneCh)

	return id, nil
}

func (a *Attempt) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Attempt) setUploadProgress(pct int) {
	a.mu.Lock()
	if pct > a.uploadPct {
		a.uploadPct = pct
	}
	a.mu.Unlock()
}

func (a *Attempt) fail(err error) {
	a.mu.Lock()
	a.state = StateError
	a.err = err
	a.mu.Unlock()
	close(a.doneCh)
}

// startTicker advances the illustrative progress on a fixed schedule,
// independent of the real invocation. The returned stop function silences
// it permanently; after stop returns, no further update can occur. If the
// invocation outlasts the schedule, progress holds at the ceiling.
func (a *Attempt) startTicker() (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(a.tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.advance()
			}
		}
	}()

	return func() {
		a.mu.Lock()
		a.settled = true
		a.mu.Unlock()
		close(done)
	}
}

func (a *Attempt) advance() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settled {
		return
	}
	if a.progress < 100 {
		a.progress += 10
		if a.progress > 100 {
			a.progress = 100
		}
	}
	a.step = analysisSteps[a.progress*(len(analysisSteps)-1)/100]
}

// ErrAttemptInFlight means an analysis attempt is already running;
// attempts are single-flight, not queued.
var ErrAttemptInFlight = errors.New("analysis already in progress")
