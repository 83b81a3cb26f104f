package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-prebuilt/platform"
	"github.com/albertocavalcante/go-prebuilt/version"
)

func listCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List releases in the registry",
		Long:  `List releases in the registry, newest first. The current release is marked with "*".`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			r, err := g.store(cmd, cfg).Load()
			if err != nil {
				return err
			}

			ids := r.Versions()
			slices.SortStableFunc(ids, func(a, b string) int {
				return version.Must(b).Compare(version.Must(a))
			})

			out := cmd.OutOrStdout()
			for _, id := range ids {
				marker := " "
				if id == r.Current {
					marker = "*"
				}
				entry, _ := r.Available.Get(id)
				fmt.Fprintf(out, "%s %-12s %d downloads\n", marker, id, entry.Downloads.Len())
			}
			return nil
		},
	}
}

func platformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported target triples",
		Long:  `List the Rust target triples recognized, with their Bazel cpu and os constraints.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, triple := range platform.Triples() {
				p, _ := platform.Translate(triple)
				fmt.Fprintf(out, "%-32s %-8s %s\n", triple, p.CPU, p.OS)
			}
			return nil
		},
	}
}
