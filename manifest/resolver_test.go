package manifest

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/go-prebuilt/fetch"
	"github.com/albertocavalcante/go-prebuilt/integrity"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

const (
	digestA = "abcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd"
	digestB = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

// fakeFetcher serves documents from a map and records requested URLs.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	calls []string
}

func (f *fakeFetcher) FetchText(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	doc, ok := f.docs[url]
	if !ok {
		return "", &fetch.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: fetch.ErrNotFound}
	}
	return doc, nil
}

func sri(t *testing.T, hexDigest string) string {
	t.Helper()
	sum, err := hex.DecodeString(hexDigest)
	if err != nil {
		t.Fatal(err)
	}
	return "sha256-" + base64.StdEncoding.EncodeToString(sum)
}

const base = "https://example.com/releases/0.5.0"

func newFake(manifest string, checksums map[string]string) *fakeFetcher {
	docs := map[string]string{base + "/dist-manifest.json": manifest}
	for name, sum := range checksums {
		docs[base+"/"+name+".sha256"] = sum
	}
	return &fakeFetcher{docs: docs}
}

func newTestResolver(f TextFetcher, opts ...Option) *Resolver {
	opts = append([]Option{WithBaseURL("https://example.com/releases/{version}")}, opts...)
	return NewResolver(f, opts...)
}

func TestResolve_TarGzScenario(t *testing.T) {
	f := newFake(`{"artifacts": {
		"foo-x86_64-unknown-linux-gnu.tar.gz": {
			"name": "foo-x86_64-unknown-linux-gnu.tar.gz",
			"kind": "executable-zip",
			"target_triples": ["x86_64-unknown-linux-gnu"]
		}
	}}`, map[string]string{
		"foo-x86_64-unknown-linux-gnu.tar.gz": digestA + "  foo-x86_64-unknown-linux-gnu.tar.gz\n",
	})

	entry, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	got, ok := entry.Downloads.Get("foo-x86_64-unknown-linux-gnu.tar.gz")
	if !ok {
		t.Fatal("download missing from result")
	}
	want := versions.DownloadSpec{
		CPU:         "x86_64",
		Integrity:   sri(t, digestA),
		OS:          "linux",
		StripPrefix: versions.StringPtr("foo-x86_64-unknown-linux-gnu"),
		URLs:        []string{base + "/foo-x86_64-unknown-linux-gnu.tar.gz"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DownloadSpec mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_ZipHasNoStripPrefix(t *testing.T) {
	f := newFake(`{"artifacts": {
		"ruff-x86_64-pc-windows-msvc.zip": {
			"name": "ruff-x86_64-pc-windows-msvc.zip",
			"target_triples": ["x86_64-pc-windows-msvc"]
		}
	}}`, map[string]string{"ruff-x86_64-pc-windows-msvc.zip": digestB})

	entry, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, _ := entry.Downloads.Get("ruff-x86_64-pc-windows-msvc.zip")
	if got.StripPrefix != nil {
		t.Errorf("StripPrefix = %q, want nil", *got.StripPrefix)
	}
	if got.CPU != "x86_64" || got.OS != "windows" {
		t.Errorf("platform = (%s, %s), want (x86_64, windows)", got.CPU, got.OS)
	}
}

func TestResolve_SkipsNonQualifyingArtifacts(t *testing.T) {
	f := newFake(`{"artifacts": {
		"installer": {"name": "ruff-installer.sh", "target_triples": ["x86_64-unknown-linux-gnu"]},
		"source": {"name": "source.tar.gz"},
		"empty": {"name": "empty.tar.gz", "target_triples": []},
		"musl": {"name": "ruff-x86_64-unknown-linux-musl.tar.gz", "target_triples": ["x86_64-unknown-linux-musl"]},
		"sum": {"name": "ruff-aarch64-apple-darwin.tar.gz.sha256", "target_triples": ["aarch64-apple-darwin"]},
		"mac": {"name": "ruff-aarch64-apple-darwin.tar.gz", "target_triples": ["aarch64-apple-darwin"]}
	}}`, map[string]string{"ruff-aarch64-apple-darwin.tar.gz": digestA})

	entry, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if diff := cmp.Diff([]string{"ruff-aarch64-apple-darwin.tar.gz"}, entry.Downloads.Keys()); diff != "" {
		t.Errorf("downloads mismatch (-want +got):\n%s", diff)
	}

	// Only the manifest and the one qualifying checksum were fetched.
	if len(f.calls) != 2 {
		t.Errorf("fetched %v, want manifest and one checksum", f.calls)
	}
}

func TestResolve_OnlyUnsupportedPlatformsYieldsEmptyEntry(t *testing.T) {
	f := newFake(`{"artifacts": {
		"a": {"name": "ruff-x86_64-unknown-linux-musl.tar.gz", "target_triples": ["x86_64-unknown-linux-musl"]},
		"b": {"name": "ruff-arm-unknown-linux-musleabihf.tar.gz", "target_triples": ["arm-unknown-linux-musleabihf"]}
	}}`, nil)

	entry, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Downloads.Len() != 0 {
		t.Errorf("downloads = %v, want empty", entry.Downloads.Keys())
	}
}

func TestResolve_AmbiguousTriples(t *testing.T) {
	f := newFake(`{"artifacts": {
		"ok": {"name": "ruff-aarch64-apple-darwin.tar.gz", "target_triples": ["aarch64-apple-darwin"]},
		"universal": {
			"name": "ruff-universal-apple-darwin.tar.gz",
			"target_triples": ["aarch64-apple-darwin", "x86_64-apple-darwin"]
		}
	}}`, map[string]string{"ruff-aarch64-apple-darwin.tar.gz": digestA})

	_, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	var ate *AmbiguousTripleError
	if !errors.As(err, &ate) {
		t.Fatalf("Resolve error = %v, want *AmbiguousTripleError", err)
	}
	if ate.Artifact != "ruff-universal-apple-darwin.tar.gz" {
		t.Errorf("Artifact = %q", ate.Artifact)
	}
	if len(ate.Triples) != 2 {
		t.Errorf("Triples = %v, want 2 entries", ate.Triples)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetched %v, want only the manifest before failing", f.calls)
	}
}

func TestResolve_MalformedChecksum(t *testing.T) {
	tests := map[string]string{
		"empty file": "   \n",
		"short":      "abcd  file.tar.gz",
		"not hex":    strings.Repeat("g", 64),
	}
	for name, checksum := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFake(`{"artifacts": {
				"a": {"name": "ruff-x86_64-unknown-linux-gnu.tar.gz", "target_triples": ["x86_64-unknown-linux-gnu"]}
			}}`, map[string]string{"ruff-x86_64-unknown-linux-gnu.tar.gz": checksum})

			_, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
			var mde *integrity.MalformedDigestError
			if !errors.As(err, &mde) {
				t.Errorf("Resolve error = %v, want *MalformedDigestError", err)
			}
		})
	}
}

func TestResolve_ManifestFetchError(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{}}
	_, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Resolve error = %v, want *FetchError", err)
	}
	if fe.URL != base+"/dist-manifest.json" {
		t.Errorf("FetchError.URL = %q", fe.URL)
	}
}

func TestResolve_ChecksumFetchError(t *testing.T) {
	f := newFake(`{"artifacts": {
		"a": {"name": "ruff-x86_64-unknown-linux-gnu.tar.gz", "target_triples": ["x86_64-unknown-linux-gnu"]}
	}}`, nil)

	_, err := newTestResolver(f).Resolve(context.Background(), "0.5.0")
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Resolve error = %v, want *FetchError", err)
	}
	if !strings.HasSuffix(fe.URL, ".tar.gz.sha256") {
		t.Errorf("FetchError.URL = %q, want checksum URL", fe.URL)
	}
}

func TestResolve_InvalidManifest(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":          `<html>`,
		"missing artifacts": `{"releases": []}`,
		"artifacts array":   `{"artifacts": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newTestResolver(newFake(doc, nil)).Resolve(context.Background(), "0.5.0")
			var me *ManifestError
			if !errors.As(err, &me) {
				t.Errorf("Resolve error = %v, want *ManifestError", err)
			}
		})
	}
}

func TestResolve_ManifestOrderPreservedUnderConcurrency(t *testing.T) {
	triples := []string{
		"x86_64-unknown-linux-gnu",
		"aarch64-apple-darwin",
		"s390x-unknown-linux-gnu",
		"i686-pc-windows-msvc",
		"riscv64gc-unknown-linux-gnu",
		"aarch64-unknown-linux-gnu",
	}
	var artifacts []string
	checksums := map[string]string{}
	var want []string
	for i, triple := range triples {
		name := fmt.Sprintf("ruff-%s.tar.gz", triple)
		artifacts = append(artifacts, fmt.Sprintf(`"a%d": {"name": %q, "target_triples": [%q]}`, i, name, triple))
		checksums[name] = digestA
		want = append(want, name)
	}
	doc := `{"artifacts": {` + strings.Join(artifacts, ",") + `}}`

	for _, n := range []int{1, 3, 16} {
		entry, err := newTestResolver(newFake(doc, checksums), WithConcurrency(n)).Resolve(context.Background(), "0.5.0")
		if err != nil {
			t.Fatalf("concurrency %d: Resolve failed: %v", n, err)
		}
		if diff := cmp.Diff(want, entry.Downloads.Keys()); diff != "" {
			t.Errorf("concurrency %d: order mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func TestResolve_OverHTTP(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		switch r.URL.Path {
		case "/download/0.5.0/dist-manifest.json":
			fmt.Fprint(w, `{"dist_version": "0.14.0", "artifacts": {
				"ruff-aarch64-unknown-linux-gnu.tar.gz": {
					"name": "ruff-aarch64-unknown-linux-gnu.tar.gz",
					"kind": "executable-zip",
					"target_triples": ["aarch64-unknown-linux-gnu"],
					"assets": []
				}
			}}`)
		case "/download/0.5.0/ruff-aarch64-unknown-linux-gnu.tar.gz.sha256":
			fmt.Fprintf(w, "%s *ruff-aarch64-unknown-linux-gnu.tar.gz\n", digestB)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	r := NewResolver(fetch.NewFetcher(), WithBaseURL(server.URL+"/download/{version}/"))
	entry, err := r.Resolve(context.Background(), "0.5.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, ok := entry.Downloads.Get("ruff-aarch64-unknown-linux-gnu.tar.gz")
	if !ok {
		t.Fatal("download missing")
	}
	if got.Integrity != sri(t, digestB) {
		t.Errorf("Integrity = %q", got.Integrity)
	}
	if want := server.URL + "/download/0.5.0/ruff-aarch64-unknown-linux-gnu.tar.gz"; got.URLs[0] != want {
		t.Errorf("URLs[0] = %q, want %q", got.URLs[0], want)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestBaseURL(t *testing.T) {
	r := NewResolver(&fakeFetcher{})
	want := "https://github.com/astral-sh/ruff/releases/download/0.5.0"
	if got := r.BaseURL("0.5.0"); got != want {
		t.Errorf("BaseURL = %q, want %q", got, want)
	}
}
