// Package csvfile stores the credits of the latest run as the actor,movie_or_TV_name table.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

// Store writes credits to a single CSV file. Each SaveRun replaces the file, so
// the table always holds exactly one run. The id of that run is kept next to
// the table in a ".run" sidecar so the CSV stays a plain two-column table.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// New creates a CSV-backed store at path.
func New(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("store")}, nil
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
}

// RunIDPath returns the sidecar file holding the id of the stored run.
func (s *Store) RunIDPath() string {
	return s.path + ".run"
}

// SaveRun replaces the CSV file with the given credits.
func (s *Store) SaveRun(ctx context.Context, run credit.Run, credits []credit.Credit) error {
	if len(credits) == 0 {
		return storage.ErrNoCredits
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}
	if err := replaceFile(s.path, func(w io.Writer) error {
		return writeCredits(w, credits)
	}); err != nil {
		return err
	}
	if err := replaceFile(s.RunIDPath(), func(w io.Writer) error {
		_, err := io.WriteString(w, run.ID+"\n")
		return err
	}); err != nil {
		return fmt.Errorf("record run id: %w", err)
	}
	s.logger.Info("Credits written",
		zap.String("run_id", run.ID),
		zap.String("path", s.path),
		zap.Int("rows", len(credits)),
	)
	return nil
}

// replaceFile writes path through a temp file in the same directory and renames it into place.
func replaceFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ListCredits reads the table back. The file only ever holds the latest run:
// an empty runID reads it unconditionally, any other runID must match the
// recorded run id or ErrRunNotFound is returned.
func (s *Store) ListCredits(ctx context.Context, runID string) ([]credit.Credit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID != "" {
		stored, err := s.storedRunID()
		if err != nil {
			return nil, err
		}
		if stored != runID {
			return nil, storage.ErrRunNotFound
		}
	}

	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrRunNotFound
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCredits(f)
}

// storedRunID reads the sidecar. A table without one was not written by
// SaveRun and matches no run id.
func (s *Store) storedRunID() (string, error) {
	raw, err := os.ReadFile(s.RunIDPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", storage.ErrRunNotFound
		}
		return "", fmt.Errorf("read run id: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Close is a no-op; the file is closed after every operation.
func (s *Store) Close() error {
	return nil
}

func writeCredits(w io.Writer, credits []credit.Credit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(credit.TableHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range credits {
		if err := cw.Write([]string{c.Actor, c.Title}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCredits parses an actor,movie_or_TV_name table. The header row is required.
func ReadCredits(r io.Reader) ([]credit.Credit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(credit.TableHeader)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, storage.ErrRunNotFound
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if !slices.Equal(header, credit.TableHeader) {
		return nil, fmt.Errorf("unexpected csv header %v", header)
	}
	credits := make([]credit.Credit, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		credits = append(credits, credit.Credit{Actor: record[0], Title: record[1]})
	}
	return credits, nil
}
