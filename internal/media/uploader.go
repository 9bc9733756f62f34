// internal/media/uploader.go
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader pushes media bytes to the object-storage endpoint. The contract
// is multipart in, durable URL out; provider details stay out of the core.
type Uploader struct {
	Endpoint string
	Preset   string
	client   *http.Client
}

// NewUploader creates an uploader for the given endpoint.
func NewUploader(endpoint, preset string) *Uploader {
	return &Uploader{
		Endpoint: endpoint,
		Preset:   preset,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Configured reports whether a remote upload target is available.
func (u *Uploader) Configured() bool {
	return u != nil && u.Endpoint != ""
}

// progressReader reports a monotonic 0..100 percentage as the request body
// is consumed.
type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	last     int
	progress func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	if p.progress != nil && p.total > 0 {
		pct := int(p.sent * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.progress(pct)
		}
	}
	return n, err
}

// Upload sends the media as multipart form data and returns the durable
// URL. progress, if non-nil, receives a monotonic percentage. Transport
// errors, non-success statuses, and success responses without a URL are
// all ErrUploadFailed.
func (u *Uploader) Upload(ctx context.Context, name, mime string, data []byte, progress func(pct int)) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if u.Preset != "" {
		if err := mw.WriteField("upload_preset", u.Preset); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	pr := &progressReader{
		r:        &body,
		total:    int64(body.Len()),
		progress: progress,
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.Endpoint, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = pr.total

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrUploadFailed, err)
	}

	url := result.SecureURL
	if url == "" {
		url = result.URL
	}
	if url == "" {
		return "", fmt.Errorf("%w: no URL in response", ErrUploadFailed)
	}

	if progress != nil && pr.last < 100 {
		progress(100)
	}
	return url, nil
}
