package versions

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

const (
	keyCurrent   = "current"
	keyAvailable = "available"
)

// Registry is the whole versions.json document.
type Registry struct {
	// Current is the release used by default. Empty when unset.
	Current string

	// Available maps release identifiers to their downloads.
	Available OrderedMap[Entry]

	// fields holds every top-level key of the parsed document, raw.
	fields OrderedMap[json.RawMessage]
}

// Entry holds the downloads for one release.
type Entry struct {
	// Downloads maps artifact file names to their download specification.
	Downloads OrderedMap[DownloadSpec] `json:"downloads"`
}

// DownloadSpec describes one platform-specific release archive.
type DownloadSpec struct {
	// CPU is an @platforms//cpu constraint name.
	CPU string `json:"cpu"`

	// Integrity is the SRI hash of the archive (e.g., "sha256-...").
	Integrity string `json:"integrity"`

	// OS is an @platforms//os constraint name.
	OS string `json:"os"`

	// StripPrefix is the top-level directory inside the archive.
	// Nil for archives without one; written as JSON null.
	StripPrefix *string `json:"strip_prefix"`

	// URLs lists mirrors in the order they should be tried.
	URLs []string `json:"urls"`
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// NewEntry returns an entry with no downloads.
func NewEntry() *Entry {
	return &Entry{}
}

// Versions returns release identifiers in document order.
func (r *Registry) Versions() []string {
	return r.Available.Keys()
}

// Upsert stores entry under version, replacing any existing entry in place.
func (r *Registry) Upsert(version string, entry Entry) {
	r.Available.Set(version, entry)
}

// UnmarshalJSON rejects unknown fields so that rewriting a document never
// silently drops data.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	return unmarshalStrict(data, (*plain)(e))
}

// UnmarshalJSON rejects unknown fields.
func (d *DownloadSpec) UnmarshalJSON(data []byte) error {
	type plain DownloadSpec
	return unmarshalStrict(data, (*plain)(d))
}

// unmarshalStrict unmarshals JSON with strict settings (disallow unknown fields).
func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// StringPtr returns a pointer to s, for building DownloadSpec.StripPrefix.
func StringPtr(s string) *string {
	return &s
}
