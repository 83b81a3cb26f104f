package main

import (
	"time"

	"github.com/spf13/cobra"
)

func addCmd(g *globalFlags) *cobra.Command {
	var setCurrent bool

	cmd := &cobra.Command{
		Use:   "add VERSION",
		Short: "Add a release to the registry (or overwrite it)",
		Long: `Add a release to the registry, or overwrite the existing entry.

The registry is only written once the whole release has been resolved, so
a failed add leaves versions.json untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			s, err := g.syncer(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			if err := s.Add(cmd.Context(), args[0], setCurrent); err != nil {
				return err
			}
			success(cmd, "Added %s to %s in %s", args[0], cfg.RegistryPath(), since(start))
			return nil
		},
	}

	cmd.Flags().BoolVar(&setCurrent, "set-current", false, "Make this release the default")
	return cmd
}
