package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/go-prebuilt/integrity"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// Workflow defaults.
const (
	DefaultModuleFile    = "MODULE.bazel"
	DefaultReadme        = "README.md"
	DefaultArchiveTarget = "//workflows:source_archive"

	revertMessage = "Revert back to main branch version numbering"
)

// ErrNoCurrent is returned when the registry has no current release.
var ErrNoCurrent = errors.New("registry has no current release")

// Workflow cuts a release from a source tree.
type Workflow struct {
	// Root is the source tree; commands run here.
	Root string

	// Registry supplies the current upstream release.
	Registry *versions.Store

	// ModuleFile and Readme are relative to Root unless absolute.
	// Empty values select DefaultModuleFile and DefaultReadme.
	ModuleFile string
	Readme     string

	// ArchiveTarget is the Bazel target producing the source archive.
	ArchiveTarget string

	Runner Runner
	Logger *slog.Logger
}

// Result describes a completed release.
type Result struct {
	ModuleVersion string
	Archive       string
	Integrity     string
}

// Run cuts the release and leaves two commits in the source tree: the
// release itself and the revert to MainBranchVersion.
func (w *Workflow) Run(ctx context.Context) (*Result, error) {
	if w.Registry == nil || w.Runner == nil {
		return nil, errors.New("release workflow requires a registry and a runner")
	}
	log := w.log()

	r, err := w.Registry.Load()
	if err != nil {
		return nil, err
	}
	if r.Current == "" {
		return nil, ErrNoCurrent
	}
	moduleVersion := ModuleVersionFor(r.Current)
	moduleFile := w.path(w.ModuleFile, DefaultModuleFile)
	readme := w.path(w.Readme, DefaultReadme)

	log.Info("setting module version", "version", moduleVersion)
	if err := SetModuleVersion(moduleFile, moduleVersion); err != nil {
		return nil, err
	}

	archive, err := w.buildArchive(ctx)
	if err != nil {
		return nil, err
	}
	sri, err := integrity.File(archive)
	if err != nil {
		return nil, err
	}
	log.Info("built source archive", "path", archive, "integrity", sri)

	if err := UpdateReadme(readme, moduleVersion, sri); err != nil {
		return nil, err
	}
	if err := w.commit(ctx, "Release "+moduleVersion, moduleFile, readme); err != nil {
		return nil, err
	}

	if err := SetModuleVersion(moduleFile, MainBranchVersion); err != nil {
		return nil, err
	}
	if err := w.commit(ctx, revertMessage, moduleFile, readme); err != nil {
		return nil, err
	}

	log.Info("release complete", "version", moduleVersion)
	return &Result{ModuleVersion: moduleVersion, Archive: archive, Integrity: sri}, nil
}

// buildArchive builds the source archive, asks Bazel where it is, and
// copies it to the root of the source tree.
func (w *Workflow) buildArchive(ctx context.Context) (string, error) {
	target := w.ArchiveTarget
	if target == "" {
		target = DefaultArchiveTarget
	}

	if err := w.Runner.Run(ctx, w.Root, "bazel", "build", target, "--config=release"); err != nil {
		return "", err
	}
	out, err := w.Runner.Output(ctx, w.Root, "bazel", "cquery", target, "--config=release", "--output=files")
	if err != nil {
		return "", err
	}
	built := strings.TrimSpace(out)
	if built == "" {
		return "", fmt.Errorf("bazel cquery reported no output for %s", target)
	}
	built = w.path(built, "")

	dest := filepath.Join(w.Root, filepath.Base(built))
	if err := copyFile(built, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (w *Workflow) commit(ctx context.Context, message string, files ...string) error {
	args := []string{"add"}
	for _, f := range files {
		if rel, err := filepath.Rel(w.Root, f); err == nil {
			f = rel
		}
		args = append(args, f)
	}
	if err := w.Runner.Run(ctx, w.Root, "git", args...); err != nil {
		return err
	}
	return w.Runner.Run(ctx, w.Root, "git", "commit", "-m", message)
}

func (w *Workflow) path(p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Root, p)
}

func (w *Workflow) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy archive: %w", err)
	}
	return out.Close()
}
