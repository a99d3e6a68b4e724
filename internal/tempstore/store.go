package tempstore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// defaultExt is used when the uploaded filename carries no extension hint.
const defaultExt = ".mp3"

// StorageError wraps a filesystem failure while materializing an upload.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to save uploaded file: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Artifact is a filesystem-backed copy of one request's audio bytes. It is
// owned by exactly one request and must be released when the request exits.
type Artifact struct {
	Path string
}

// Store writes uploads into dir with unique names so concurrent requests
// never collide.
type Store struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Save materializes the full byte stream to a fresh file whose name keeps
// the upload's extension hint. The file is verified to exist after the
// write; any failure is reported as a *StorageError and leaves nothing
// behind on disk.
func (s *Store) Save(file io.Reader, fileName string) (*Artifact, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		ext = defaultExt
	}
	path := filepath.Join(s.dir, "vaani-"+uuid.NewString()+ext)

	out, err := os.Create(path)
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return nil, &StorageError{Op: "write", Err: err}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return nil, &StorageError{Op: "close", Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &StorageError{Op: "verify", Err: err}
	}

	return &Artifact{Path: path}, nil
}

// Release deletes the artifact. Failures are logged and swallowed so
// cleanup can never mask the primary request outcome.
func (s *Store) Release(artifact *Artifact) {
	if artifact == nil || artifact.Path == "" {
		return
	}
	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("temp artifact release failed", "path", artifact.Path, "error", err)
	}
}
