// Package manifest resolves an upstream release into registry download
// specifications.
//
// Upstream releases are built by cargo-dist, which publishes a
// dist-manifest.json next to the release archives and a ".sha256" checksum
// file next to each archive:
//
//	{base}/dist-manifest.json
//	{base}/ruff-x86_64-unknown-linux-gnu.tar.gz
//	{base}/ruff-x86_64-unknown-linux-gnu.tar.gz.sha256
//
// Resolver reads the manifest, keeps the archives built for a single
// supported platform, fetches their checksums and returns a
// versions.Entry ready to be stored in the registry.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-prebuilt/versions"
)

// FileName is the name of the cargo-dist manifest in a release.
const FileName = "dist-manifest.json"

// Archive suffixes recognized as release archives.
const (
	SuffixTarGz = ".tar.gz"
	SuffixZip   = ".zip"
)

// Manifest is the subset of dist-manifest.json used for resolution.
type Manifest struct {
	// Artifacts maps artifact ids to artifacts, in document order.
	Artifacts versions.OrderedMap[Artifact] `json:"artifacts"`
}

// Artifact is one file published with a release.
type Artifact struct {
	// Name is the file name of the artifact.
	Name string `json:"name"`

	// Kind is the cargo-dist artifact kind (e.g., "executable-zip").
	Kind string `json:"kind,omitempty"`

	// TargetTriples lists the platforms the artifact was built for.
	// Absent for platform-independent artifacts such as installers.
	TargetTriples []string `json:"target_triples,omitempty"`
}

// ManifestError reports a manifest that could not be decoded.
type ManifestError struct {
	URL string
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid release manifest %s: %v", e.URL, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// AmbiguousTripleError reports an archive built for several platforms.
// A download specification describes exactly one platform, so such an
// artifact cannot be represented.
type AmbiguousTripleError struct {
	Artifact string
	Triples  []string
}

func (e *AmbiguousTripleError) Error() string {
	return fmt.Sprintf("artifact %s declares %d target triples (%s), want exactly one",
		e.Artifact, len(e.Triples), strings.Join(e.Triples, ", "))
}

// Parse decodes a dist-manifest.json document. Unknown fields are ignored;
// a missing "artifacts" object is an error.
func Parse(data []byte) (*Manifest, error) {
	var doc struct {
		Artifacts *versions.OrderedMap[Artifact] `json:"artifacts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Artifacts == nil {
		return nil, errors.New(`missing "artifacts" object`)
	}
	return &Manifest{Artifacts: *doc.Artifacts}, nil
}

// IsArchive reports whether name carries a recognized archive suffix.
func IsArchive(name string) bool {
	return strings.HasSuffix(name, SuffixTarGz) || strings.HasSuffix(name, SuffixZip)
}

// StripPrefix returns the top-level directory of a release archive.
//
// cargo-dist tarballs contain a single directory named after the archive
// stem, so "ruff-x86_64-unknown-linux-gnu.tar.gz" unpacks into
// "ruff-x86_64-unknown-linux-gnu/". Zip archives are flat and have no
// prefix.
func StripPrefix(name string) *string {
	if stem, ok := strings.CutSuffix(name, SuffixTarGz); ok {
		return versions.StringPtr(stem)
	}
	return nil
}

// ParseChecksum extracts the hex digest from a ".sha256" checksum file:
// the first whitespace-delimited token, as written by sha256sum.
func ParseChecksum(content string) (string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
