package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	prebuilt "github.com/albertocavalcante/go-prebuilt"
)

func syncCmd(g *globalFlags) *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh every release in the registry",
		Long: `Re-resolve every release already in the registry, in document order.

Each release is written as soon as it is resolved. By default a failing
release is reported and the remaining releases are still attempted; use
--fail-fast to stop at the first failure. The current release never changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			var opts []prebuilt.Option
			if failFast {
				opts = append(opts, prebuilt.WithFailFast())
			}
			s, err := g.syncer(cmd, cfg, opts...)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			report, err := s.Sync(cmd.Context())
			if report != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Updated %d, failed %d, skipped %d in %s\n",
					len(report.Updated), len(report.Failed), len(report.Skipped), since(start))
				for _, f := range report.Failed {
					fmt.Fprintf(out, "  ✗ %s\n", f)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first release that fails")
	return cmd
}
