// Package storage defines where crawl results and rendered artifacts are kept.
// Implementations live in the subpackages (csvfile, sqlite, postgres, memory
// for credits; local, gcs, memory for blobs).
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

// ErrRunNotFound is returned when a requested run (or the latest run) does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrNoCredits is returned by SaveRun when there is nothing to persist.
var ErrNoCredits = errors.New("no credits to save")

// Store persists the credits produced by a crawl run.
type Store interface {
	// SaveRun stores run metadata together with its credits, in order.
	SaveRun(ctx context.Context, run credit.Run, credits []credit.Credit) error
	// ListCredits returns the credits of runID, or of the latest run when runID is empty.
	ListCredits(ctx context.Context, runID string) ([]credit.Credit, error)
	// Close releases the underlying resources.
	Close() error
}

// BlobStore writes rendered artifacts such as reports and plots.
type BlobStore interface {
	// PutObject writes r at path and returns a URI for the stored object.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
