// internal/media/reference.go
package media

import (
	"encoding/base64"
	"fmt"
)

// Reference is the single handle acquisition produces and analysis consumes:
// either a durable URL to previously uploaded bytes, or a self-contained
// data URL. Exactly one form is set.
type Reference struct {
	url    string
	inline string
}

// Remote wraps a durable URL returned by the object-storage upload.
func Remote(url string) Reference {
	return Reference{url: url}
}

// Inline encodes the media bytes into a self-contained data URL.
func Inline(mime string, data []byte) Reference {
	return Reference{
		inline: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
	}
}

// IsZero reports whether the reference holds no media at all.
func (r Reference) IsZero() bool {
	return r.url == "" && r.inline == ""
}

// IsRemote reports whether the reference points at uploaded bytes.
func (r Reference) IsRemote() bool {
	return r.url != ""
}

// Value returns whichever form is set, suitable for a model image_url part.
func (r Reference) Value() string {
	if r.url != "" {
		return r.url
	}
	return r.inline
}
