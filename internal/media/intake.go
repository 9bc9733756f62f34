// internal/media/intake.go
package media

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileBytes is the advisory size ceiling for selected files.
const DefaultMaxFileBytes = 100 << 20 // 100 MB

// Intake validates a selected file before it reaches the upload stage.
type Intake struct {
	MaxBytes int64
}

// NewIntake creates an intake with the given ceiling; zero means the default.
func NewIntake(maxBytes int64) Intake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return Intake{MaxBytes: maxBytes}
}

// Accept checks size and media type and returns the detected MIME type.
// head should hold the first bytes of the file (512 is enough for sniffing).
func (in Intake) Accept(name string, size int64, head []byte) (string, error) {
	if size > in.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, in.MaxBytes)
	}

	mtype := http.DetectContentType(head)
	if mtype == "application/octet-stream" {
		// Sniffing covers the common containers; fall back to the extension
		// for formats like .mov that it does not recognize.
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			mtype = byExt
		}
	}

	if !strings.HasPrefix(mtype, "video/") && !strings.HasPrefix(mtype, "image/") {
		return "", fmt.Errorf("%w: %s", ErrWrongMediaType, mtype)
	}
	return mtype, nil
}

// AcceptFile validates a file on disk and returns its MIME type and bytes.
// Used by the one-shot CLI path.
func (in Intake) AcceptFile(path string) (string, []byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if info.Size() > in.MaxBytes {
		return "", nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), in.MaxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mtype, err := in.Accept(filepath.Base(path), int64(len(data)), head)
	if err != nil {
		return "", nil, err
	}
	return mtype, data, nil
}
