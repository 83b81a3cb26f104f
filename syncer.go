package prebuilt

import (
	"context"
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-prebuilt/fetch"
	"github.com/albertocavalcante/go-prebuilt/manifest"
	"github.com/albertocavalcante/go-prebuilt/version"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// Resolver resolves a release identifier into a registry entry.
// *manifest.Resolver satisfies this interface.
type Resolver interface {
	Resolve(ctx context.Context, version string) (*versions.Entry, error)
}

// Syncer adds and refreshes releases in a registry document.
type Syncer struct {
	store    *versions.Store
	resolver Resolver
	fetcher  *fetch.Fetcher // nil when the resolver was supplied by the caller
	cfg      *syncConfig
}

// SyncProgress describes one release processed by Sync.
type SyncProgress struct {
	Index   int // 1-based position of Version
	Total   int
	Version string
	Err     error // nil when the release was updated
}

// SyncReport summarizes a Sync run.
type SyncReport struct {
	// Updated lists releases rewritten successfully, in processing order.
	Updated []string

	// Failed lists releases that could not be updated.
	Failed []*VersionError

	// Skipped lists releases not attempted because the run stopped early.
	Skipped []string
}

// New creates a Syncer for the registry at path that resolves releases
// over HTTP.
func New(path string, opts ...Option) (*Syncer, error) {
	cfg, err := newSyncConfig(opts...)
	if err != nil {
		return nil, err
	}

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.timeout),
		fetch.WithBreaker(cfg.breakerThreshold),
	}
	if cfg.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(cfg.httpClient))
	}

	resolverOpts := []manifest.Option{
		manifest.WithBaseURL(cfg.baseURL),
		manifest.WithLogger(cfg.log()),
	}
	if cfg.concurrency > 0 {
		resolverOpts = append(resolverOpts, manifest.WithConcurrency(cfg.concurrency))
	}

	fetcher := fetch.NewFetcher(fetchOpts...)
	resolver := manifest.NewResolver(fetcher, resolverOpts...)
	store := versions.NewStore(path, versions.WithLogger(cfg.log()))
	return &Syncer{store: store, resolver: resolver, fetcher: fetcher, cfg: cfg}, nil
}

// NewWithResolver creates a Syncer from an existing store and resolver.
// Options that configure HTTP access are ignored.
func NewWithResolver(store *versions.Store, resolver Resolver, opts ...Option) (*Syncer, error) {
	if store == nil || resolver == nil {
		return nil, errors.New("store and resolver are required")
	}
	cfg, err := newSyncConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Syncer{store: store, resolver: resolver, cfg: cfg}, nil
}

// Close releases the background resources of a Syncer created by New.
func (s *Syncer) Close() error {
	if s.fetcher == nil {
		return nil
	}
	return s.fetcher.Close()
}

// Store returns the registry store.
func (s *Syncer) Store() *versions.Store {
	return s.store
}

// Merge stores entry under release v, replacing any previous entry for v,
// and makes v current if setCurrent is true. Other releases are untouched.
func Merge(r *versions.Registry, v string, entry *versions.Entry, setCurrent bool) {
	r.Upsert(v, *entry)
	if setCurrent {
		r.Current = v
	}
}

// Add resolves release v and upserts it into the registry, making it
// current if setCurrent is true. The registry is written exactly once, and
// only if resolution succeeds.
func (s *Syncer) Add(ctx context.Context, v string, setCurrent bool) error {
	if _, err := version.Parse(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVersion, err)
	}

	entry, err := s.resolver.Resolve(ctx, v)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", v, err)
	}

	if err := s.store.Update(ctx, func(r *versions.Registry) error {
		Merge(r, v, entry, setCurrent)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to update registry for %s: %w", v, err)
	}

	s.cfg.log().Info("release added",
		"version", v,
		"downloads", entry.Downloads.Len(),
		"current", setCurrent)
	return nil
}

// Sync re-resolves every release present in the registry, in document
// order, without changing which release is current.
//
// The release list is read once up front, so releases added while Sync runs
// are not revisited. Each release is committed on its own. Unless
// WithFailFast is set, Sync attempts every release and returns the joined
// errors of all failures; the report is returned either way.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	r, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	pending := r.Versions()

	report := &SyncReport{}
	var errs []error
	log := s.cfg.log()

	for i, v := range pending {
		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, pending[i:]...)
			errs = append(errs, err)
			break
		}

		log.Info(fmt.Sprintf("(%d/%d) Updating %s", i+1, len(pending), v))
		err := s.Add(ctx, v, false)
		s.progress(SyncProgress{Index: i + 1, Total: len(pending), Version: v, Err: err})

		if err == nil {
			report.Updated = append(report.Updated, v)
			continue
		}

		verr := &VersionError{Version: v, Err: err}
		report.Failed = append(report.Failed, verr)
		errs = append(errs, verr)
		log.Warn("release update failed", "version", v, "error", err)

		if s.cfg.failFast {
			report.Skipped = append(report.Skipped, pending[i+1:]...)
			break
		}
	}

	return report, errors.Join(errs...)
}

func (s *Syncer) progress(p SyncProgress) {
	if s.cfg.onProgress != nil {
		s.cfg.onProgress(p)
	}
}
