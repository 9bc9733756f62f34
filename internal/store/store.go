// internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Shlok909/pawsitiveAI/internal/report"
)

// ErrNotFound is returned by Get for an unknown report id. Callers treat
// it as "redirect to history", never as a fatal error.
var ErrNotFound = errors.New("report not found")

// KeyPrefix namespaces persisted report keys.
const KeyPrefix = "report-"

// StoredReport pairs a report with its persisted identifier.
type StoredReport struct {
	ID     string        `json:"id"`
	Report report.Report `json:"report"`
}

// Store persists and retrieves analysis reports. Entries are never updated
// in place; Put of a colliding id overwrites (last write wins).
type Store interface {
	// Put persists the report and returns its time-derived id.
	Put(r *report.Report) (string, error)
	// Get returns the report for id, or ErrNotFound.
	Get(id string) (*report.Report, error)
	// List returns all stored reports, newest first.
	List() ([]StoredReport, error)
}

// NewID derives a report id from the creation instant. Ids order
// chronologically; two reports created in the same millisecond collide
// and the later write wins.
func NewID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// CreationTime recovers the creation instant from a report id.
func CreationTime(id string) (time.Time, error) {
	ms, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid report id %q: %w", id, err)
	}
	return time.UnixMilli(ms), nil
}
