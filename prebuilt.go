// Package prebuilt keeps a versions.json registry of prebuilt release
// archives in sync with an upstream project's published releases.
//
// For each release the upstream cargo-dist manifest is fetched, archives
// built for a supported platform are selected, their checksums are turned
// into SRI integrity strings, and the result is merged into the registry.
//
// # Quick Start
//
//	s, err := prebuilt.New("versions.json", prebuilt.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//
//	// Add (or refresh) one release and make it the default.
//	if err := s.Add(ctx, "0.5.0", true); err != nil {
//	    return err
//	}
//
//	// Refresh every release already in the registry.
//	report, err := s.Sync(ctx)
//
// # Failure Behavior
//
// Add writes the registry at most once, and only after the release has been
// fully resolved: a failed Add leaves the document exactly as it was. Sync
// runs one Add per release, so releases updated before a failure stay
// committed.
package prebuilt

import (
	"github.com/albertocavalcante/go-prebuilt/platform"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// Re-export registry types.
type (
	// Registry is the whole versions.json document.
	Registry = versions.Registry

	// Entry holds the downloads for one release.
	Entry = versions.Entry

	// DownloadSpec describes one platform-specific release archive.
	DownloadSpec = versions.DownloadSpec

	// Platform is a Bazel (cpu, os) constraint pair.
	Platform = platform.Platform
)

// DefaultRegistryFile is the conventional registry file name.
const DefaultRegistryFile = versions.FileName

// Translate returns the Bazel platform for a Rust target triple.
func Translate(triple string) (Platform, bool) {
	return platform.Translate(triple)
}
