package versions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// FileName is the conventional registry file name.
	FileName = "versions.json"

	// defaultPermissions applies when the document does not exist yet.
	defaultPermissions = 0o644

	lockRetryDelay = 50 * time.Millisecond
)

// ErrNotExist indicates the registry document does not exist.
var ErrNotExist = errors.New("registry document does not exist")

// CorruptRegistryError reports a document that is not a valid registry.
type CorruptRegistryError struct {
	Path string
	Err  error
}

func (e *CorruptRegistryError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("corrupt registry: %v", e.Err)
	}
	return fmt.Sprintf("corrupt registry %s: %v", e.Path, e.Err)
}

func (e *CorruptRegistryError) Unwrap() error {
	return e.Err
}

// Parse decodes a registry document and checks its invariants.
//
// Top-level keys other than "current" and "available" are kept verbatim and
// written back in their original position by Marshal.
func Parse(data []byte) (*Registry, error) {
	var fields OrderedMap[json.RawMessage]
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &CorruptRegistryError{Err: err}
	}

	r := &Registry{fields: fields}
	if raw, ok := fields.Get(keyCurrent); ok {
		if err := json.Unmarshal(raw, &r.Current); err != nil {
			return nil, &CorruptRegistryError{Err: fmt.Errorf("current: %w", err)}
		}
	}
	raw, ok := fields.Get(keyAvailable)
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &CorruptRegistryError{Err: errors.New(`missing "available" object`)}
	}
	if err := json.Unmarshal(raw, &r.Available); err != nil {
		return nil, &CorruptRegistryError{Err: fmt.Errorf("available: %w", err)}
	}

	if err := r.Validate(); err != nil {
		return nil, &CorruptRegistryError{Err: err}
	}
	return r, nil
}

// MarshalJSON writes "current" (when set), "available" and any preserved
// top-level keys, keeping the key order of the parsed document.
func (r Registry) MarshalJSON() ([]byte, error) {
	var out OrderedMap[json.RawMessage]
	if r.Current != "" && !r.fields.Has(keyCurrent) {
		out.Set(keyCurrent, nil)
	}
	for k, v := range r.fields.All() {
		out.Set(k, v)
	}

	if r.Current == "" {
		out.Delete(keyCurrent)
	} else {
		current, err := marshalNoEscape(r.Current)
		if err != nil {
			return nil, err
		}
		out.Set(keyCurrent, current)
	}
	available, err := marshalNoEscape(r.Available)
	if err != nil {
		return nil, err
	}
	out.Set(keyAvailable, available)

	return out.MarshalJSON()
}

// Marshal serializes the registry deterministically: keys keep their
// order, indentation is one space and the output ends with a newline.
func (r *Registry) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store reads and writes one registry document on disk.
type Store struct {
	path   string
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a Store for the document at path.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPath returns the registry path relative to a workspace root.
func DefaultPath(workspaceRoot string) string {
	if workspaceRoot == "" {
		return FileName
	}
	return filepath.Join(workspaceRoot, FileName)
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the document.
func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, s.path)
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		var cre *CorruptRegistryError
		if errors.As(err, &cre) {
			cre.Path = s.path
		}
		return nil, err
	}
	return r, nil
}

// Save validates r and atomically replaces the document with it.
func (s *Store) Save(r *Registry) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid registry: %w", err)
	}
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize registry: %w", err)
	}
	return s.writeAtomic(data)
}

// Update runs one load, edit, save cycle while holding an exclusive lock
// on the document. If fn returns an error the document is left untouched.
//
// Locking uses a sidecar "<path>.lock" file, so concurrent Update calls from
// any process cannot interleave.
func (s *Store) Update(ctx context.Context, fn func(*Registry) error) error {
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock registry: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock registry %s", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	r, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	if err := s.Save(r); err != nil {
		return err
	}
	s.logger.Debug("registry written", "path", s.path, "versions", r.Available.Len())
	return nil
}

// writeAtomic writes data to a temporary file in the document's directory
// and renames it over the document.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	perm := os.FileMode(defaultPermissions)
	if info, err := os.Stat(s.path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}
