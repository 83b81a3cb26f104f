package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-prebuilt/integrity"
	"github.com/albertocavalcante/go-prebuilt/platform"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// Resolver defaults.
const (
	// DefaultBaseURL is the release download location; "{version}" is
	// replaced by the release identifier.
	DefaultBaseURL = "https://github.com/astral-sh/ruff/releases/download/{version}"

	// DefaultConcurrency bounds parallel checksum downloads.
	DefaultConcurrency = 4

	// ChecksumSuffix is appended to an archive URL to locate its checksum.
	ChecksumSuffix = ".sha256"

	versionPlaceholder = "{version}"
)

// TextFetcher downloads a document as text.
// *fetch.Fetcher satisfies this interface.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Resolver turns a release identifier into a registry entry.
type Resolver struct {
	fetcher     TextFetcher
	baseURL     string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL sets the release download location template.
// "{version}" in the template is replaced by the release identifier.
func WithBaseURL(template string) Option {
	return func(r *Resolver) {
		if template != "" {
			r.baseURL = strings.TrimSuffix(template, "/")
		}
	}
}

// WithConcurrency sets how many checksum files are fetched in parallel.
// Values below 1 fall back to 1.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		r.concurrency = max(n, 1)
	}
}

// WithLogger sets the logger used for skip and progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver that downloads through f.
func NewResolver(f TextFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		baseURL:     DefaultBaseURL,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the download location for a release.
func (r *Resolver) BaseURL(version string) string {
	return strings.ReplaceAll(r.baseURL, versionPlaceholder, version)
}

// download is an archive selected for the registry.
type download struct {
	name     string
	platform platform.Platform
	url      string
}

// Resolve fetches the release manifest for version and returns the
// downloads for every archive built for exactly one supported platform.
//
// Archives for unsupported platforms and non-archive artifacts are
// skipped. An archive declaring several target triples fails the whole
// resolution with *AmbiguousTripleError, before any checksum is fetched.
// Downloads appear in manifest order.
func (r *Resolver) Resolve(ctx context.Context, version string) (*versions.Entry, error) {
	base := r.BaseURL(version)
	manifestURL := base + "/" + FileName

	text, err := r.fetcher.FetchText(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	m, err := Parse([]byte(text))
	if err != nil {
		return nil, &ManifestError{URL: manifestURL, Err: err}
	}

	selected, err := r.selectDownloads(version, base, m)
	if err != nil {
		return nil, err
	}

	specs := make([]versions.DownloadSpec, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, d := range selected {
		g.Go(func() error {
			spec, err := r.resolveDownload(gctx, d)
			if err != nil {
				return err
			}
			specs[i] = spec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry := versions.NewEntry()
	for i, d := range selected {
		entry.Downloads.Set(d.name, specs[i])
	}
	r.logger.Info("resolved release",
		"version", version,
		"artifacts", m.Artifacts.Len(),
		"downloads", entry.Downloads.Len())
	return entry, nil
}

// selectDownloads filters manifest artifacts down to supported archives.
func (r *Resolver) selectDownloads(version, base string, m *Manifest) ([]download, error) {
	var selected []download
	for _, a := range m.Artifacts.All() {
		if !IsArchive(a.Name) {
			continue
		}
		switch len(a.TargetTriples) {
		case 0:
			continue
		case 1:
		default:
			return nil, &AmbiguousTripleError{Artifact: a.Name, Triples: a.TargetTriples}
		}

		triple := a.TargetTriples[0]
		p, ok := platform.Translate(triple)
		if !ok {
			// Either the platform is intentionally unsupported or the
			// translation table is missing an entry; both look the same here.
			r.logger.Debug("skipping artifact for unsupported platform",
				"version", version, "artifact", a.Name, "triple", triple)
			continue
		}

		selected = append(selected, download{
			name:     a.Name,
			platform: p,
			url:      base + "/" + url.PathEscape(a.Name),
		})
	}
	return selected, nil
}

// resolveDownload fetches the archive checksum and builds its spec.
func (r *Resolver) resolveDownload(ctx context.Context, d download) (versions.DownloadSpec, error) {
	checksumURL := d.url + ChecksumSuffix
	text, err := r.fetcher.FetchText(ctx, checksumURL)
	if err != nil {
		return versions.DownloadSpec{}, err
	}

	digest, ok := ParseChecksum(text)
	if !ok {
		return versions.DownloadSpec{}, fmt.Errorf("%s: %w", checksumURL,
			&integrity.MalformedDigestError{Digest: "", Reason: "checksum file is empty"})
	}
	sri, err := integrity.FromHex(digest)
	if err != nil {
		return versions.DownloadSpec{}, fmt.Errorf("%s: %w", checksumURL, err)
	}

	r.logger.Debug("resolved artifact", "artifact", d.name, "cpu", d.platform.CPU, "os", d.platform.OS)
	return versions.DownloadSpec{
		CPU:         d.platform.CPU,
		Integrity:   sri,
		OS:          d.platform.OS,
		StripPrefix: StripPrefix(d.name),
		URLs:        []string{d.url},
	}, nil
}
