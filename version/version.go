// Package version parses and orders upstream release identifiers.
//
// Release identifiers are dotted numeric versions with an optional "v"
// prefix, pre-release and build metadata:
//
//	0.5.0
//	v0.0.290
//	0.6.0-rc.1
//	1.2.3.4+build.7
//
// They are used as keys of the registry's "available" map and are
// interpolated into download URLs, so anything outside this grammar is
// rejected.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a validated release identifier.
type Version struct {
	raw        string
	parts      []int
	prerelease string
	build      string
}

var versionRegex = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)

// Parse validates s and returns the Version.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("invalid version %q: must not be empty", s)
	}
	m := versionRegex.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q: must follow version format", s)
	}

	fields := strings.Split(m[1], ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		parts[i] = n
	}

	return Version{raw: s, parts: parts, prerelease: m[2], build: m[3]}, nil
}

// Must parses s or panics. Use only for constants and tests.
func Must(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether s is a syntactically valid release identifier.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the identifier exactly as parsed.
func (v Version) String() string {
	return v.raw
}

// Prerelease returns the pre-release identifier (e.g., "rc.1").
func (v Version) Prerelease() string {
	return v.prerelease
}

// IsPrerelease reports whether v carries a pre-release identifier.
func (v Version) IsPrerelease() bool {
	return v.prerelease != ""
}

// Compare returns -1, 0 or 1. Missing numeric parts compare as zero, a
// pre-release sorts before its release, and build metadata is ignored.
func (v Version) Compare(other Version) int {
	for i := range max(len(v.parts), len(other.parts)) {
		if c := intCompare(partAt(v.parts, i), partAt(other.parts, i)); c != 0 {
			return c
		}
	}

	switch {
	case v.prerelease == other.prerelease:
		return 0
	case v.prerelease == "":
		return 1
	case other.prerelease == "":
		return -1
	}
	return comparePrerelease(v.prerelease, other.prerelease)
}

// Less reports whether v < other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func partAt(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

func intCompare(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func comparePrerelease(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range min(len(aParts), len(bParts)) {
		aNum, aIsNum := tryParseInt(aParts[i])
		bNum, bIsNum := tryParseInt(bParts[i])

		if aIsNum && bIsNum {
			if aNum != bNum {
				return intCompare(aNum, bNum)
			}
		} else if aIsNum {
			return -1 // Numeric < alphanumeric
		} else if bIsNum {
			return 1
		} else if c := strings.Compare(aParts[i], bParts[i]); c != 0 {
			return c
		}
	}

	return intCompare(len(aParts), len(bParts))
}

func tryParseInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
