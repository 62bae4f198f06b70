// Package transcript stores raw SSE response bodies on disk so that
// streamed turns can be inspected and replayed.
//
// A transcript is the verbatim byte stream of one response, saved as
// <dir>/<uuid>.sse. Recording happens through stream.WithRecorder, which
// tees the body as the decoder reads it.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ext = ".sse"

// ErrNotFound is returned by Open and Latest when no transcript matches.
var ErrNotFound = errors.New("transcript not found")

// Info describes a stored transcript.
type Info struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store is a directory of transcripts.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Create opens a new transcript for writing and returns its id. The caller
// must close the writer.
func (s *Store) Create() (string, io.WriteCloser, error) {
	id := uuid.NewString()

	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("creating transcript: %w", err)
	}
	return id, f, nil
}

// Open opens the transcript with the given id for reading.
func (s *Store) Open(id string) (io.ReadCloser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	return f, nil
}

// Remove deletes the transcript with the given id.
func (s *Store) Remove(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("removing transcript: %w", err)
	}
	return nil
}

// List returns all transcripts, newest first.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ext)
		if e.IsDir() || !ok {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat transcript %s: %w", id, err)
		}
		infos = append(infos, Info{
			ID:      id,
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	slices.SortFunc(infos, func(a, b Info) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return infos, nil
}

// Latest returns the newest transcript.
func (s *Store) Latest() (Info, error) {
	infos, err := s.List()
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, ErrNotFound
	}
	return infos[0], nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+ext)
}
