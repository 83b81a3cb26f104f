// Package platform maps upstream Rust target triples to Bazel
// @platforms//cpu and @platforms//os constraint names.
package platform

import "sort"

// Platform is a Bazel (cpu, os) constraint pair.
type Platform struct {
	// CPU is an @platforms//cpu constraint name (e.g., "x86_64").
	CPU string
	// OS is an @platforms//os constraint name (e.g., "linux").
	OS string
}

// triples maps Rust target triples to their Bazel platform.
//
// Triples missing from this table are unsupported; artifacts built for them
// are left out of the registry. Adding a platform is a one-line change here.
var triples = map[string]Platform{
	"aarch64-apple-darwin":          {"aarch64", "macos"},
	"aarch64-pc-windows-msvc":       {"aarch64", "windows"},
	"aarch64-unknown-linux-gnu":     {"aarch64", "linux"},
	"armv7-unknown-linux-gnueabihf": {"armv7", "linux"},
	"i686-pc-windows-msvc":          {"x86_32", "windows"},
	"i686-unknown-linux-gnu":        {"x86_32", "linux"},
	"powerpc64le-unknown-linux-gnu": {"ppc64le", "linux"},
	"riscv64gc-unknown-linux-gnu":   {"riscv64", "linux"},
	"s390x-unknown-linux-gnu":       {"s390x", "linux"},
	"x86_64-apple-darwin":           {"x86_64", "macos"},
	"x86_64-pc-windows-msvc":        {"x86_64", "windows"},
	"x86_64-unknown-linux-gnu":      {"x86_64", "linux"},
}

// Translate returns the Bazel platform for a target triple.
// The boolean is false when the triple is not supported.
func Translate(triple string) (Platform, bool) {
	p, ok := triples[triple]
	return p, ok
}

// Triples returns all supported target triples in sorted order.
func Triples() []string {
	out := make([]string, 0, len(triples))
	for t := range triples {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
