package main

import (
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-prebuilt/release"
)

func releaseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Cut a release of the module",
		Long: `Cut a release of the module for the registry's current release.

Sets MODULE.bazel's version, builds the source archive with Bazel, records
its integrity in the README usage example and commits. MODULE.bazel is then
reset to the main branch version and committed again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			w := &release.Workflow{
				Root:          cfg.Workspace,
				Registry:      g.store(cmd, cfg),
				ModuleFile:    cfg.Release.ModuleFile,
				Readme:        cfg.Release.Readme,
				ArchiveTarget: cfg.Release.ArchiveTarget,
				Runner:        release.NewExecRunner(cmd.ErrOrStderr()),
				Logger:        g.logger(cmd),
			}
			result, err := w.Run(cmd.Context())
			if err != nil {
				return err
			}
			success(cmd, "Released %s (%s)", result.ModuleVersion, result.Integrity)
			return nil
		},
	}
}
