package release

import (
	"errors"
	"fmt"
	"os"

	"github.com/bazelbuild/buildtools/build"

	"github.com/albertocavalcante/go-prebuilt/internal/buildutil"
)

// MainBranchVersion is the placeholder module version used between releases.
const MainBranchVersion = "0.0.0.0"

// ErrNoModule is returned when MODULE.bazel has no module() call.
var ErrNoModule = errors.New("no module() call")

// ModuleVersionFor returns the module version released for an upstream
// release: the upstream identifier with a ".1" suffix.
func ModuleVersionFor(current string) string {
	return current + ".1"
}

// ModuleVersion returns the version attribute of the module() call in the
// file at path.
func ModuleVersion(path string) (string, error) {
	_, call, err := loadModule(path)
	if err != nil {
		return "", err
	}
	return buildutil.String(call, "version"), nil
}

// SetModuleVersion rewrites the version attribute of the module() call in
// the file at path. The file is reformatted in the standard buildifier
// style and keeps its permissions.
func SetModuleVersion(path, version string) error {
	f, call, err := loadModule(path)
	if err != nil {
		return err
	}
	buildutil.SetString(call, "version", version)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, build.Format(f), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func loadModule(path string) (*build.File, *build.CallExpr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := build.ParseModule(path, data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	calls := buildutil.FindCalls(f, "module")
	switch len(calls) {
	case 0:
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNoModule)
	case 1:
		return f, calls[0], nil
	default:
		return nil, nil, fmt.Errorf("%s: found %d module() calls", path, len(calls))
	}
}
