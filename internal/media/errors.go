// internal/media/errors.go
package media

import "errors"

var (
	// ErrPermissionDenied means the capture device could not be acquired.
	// Terminal for the capture session; acquisition never completes.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrFileTooLarge means the selected file exceeds the advisory size
	// ceiling. Rejected before any network interaction.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrWrongMediaType means the selected file is neither video nor image.
	ErrWrongMediaType = errors.New("unsupported media type")

	// ErrRecordingTooShort means the capture ended before the minimum
	// duration; the partial recording is discarded.
	ErrRecordingTooShort = errors.New("recording too short")

	// ErrRecorderBusy means a capture session is already active.
	ErrRecorderBusy = errors.New("recording already in progress")

	// ErrNotRecording means Stop or Append was called with no active session.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrUploadFailed covers transport errors, non-success statuses, and
	// success responses that carry no URL. All are terminal for the stage.
	ErrUploadFailed = errors.New("media upload failed")
)

// IsInputRejected reports whether err is a pre-network rejection of the
// user's media (oversize file, wrong type, recording too short).
func IsInputRejected(err error) bool {
	return errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrWrongMediaType) ||
		errors.Is(err, ErrRecordingTooShort)
}
