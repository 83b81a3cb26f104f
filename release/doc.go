// Package release cuts a release of the prebuilt-registry module itself.
//
// A release pins MODULE.bazel's version to the registry's current release
// plus a ".1" suffix, builds the source archive with Bazel, records the
// archive's integrity in the README usage example, and commits. MODULE.bazel
// is then returned to the main branch placeholder version and committed again.
//
//	w := &release.Workflow{
//	    Root:     ".",
//	    Registry: versions.NewStore("versions.json"),
//	    Runner:   release.NewExecRunner(os.Stderr),
//	}
//	result, err := w.Run(ctx)
package release
