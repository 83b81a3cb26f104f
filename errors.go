package prebuilt

import (
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-prebuilt/fetch"
	"github.com/albertocavalcante/go-prebuilt/integrity"
	"github.com/albertocavalcante/go-prebuilt/manifest"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// ErrInvalidVersion indicates a release identifier that cannot be stored.
var ErrInvalidVersion = errors.New("invalid release identifier")

// Error types surfaced by Add and Sync. Use errors.As to inspect them.
type (
	// FetchError reports a failed upstream request.
	FetchError = fetch.FetchError

	// MalformedDigestError reports a checksum file that is not a SHA-256 digest.
	MalformedDigestError = integrity.MalformedDigestError

	// AmbiguousTripleError reports an archive built for several platforms.
	AmbiguousTripleError = manifest.AmbiguousTripleError

	// ManifestError reports an undecodable release manifest.
	ManifestError = manifest.ManifestError

	// CorruptRegistryError reports a registry document that failed to parse.
	CorruptRegistryError = versions.CorruptRegistryError
)

// VersionError attaches the release identifier to a failed update.
type VersionError struct {
	Version string
	Err     error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Version, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}
