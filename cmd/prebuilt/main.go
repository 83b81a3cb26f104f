// Command prebuilt maintains the versions.json registry of prebuilt
// release archives and cuts releases of the module that serves it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	prebuilt "github.com/albertocavalcante/go-prebuilt"
	"github.com/albertocavalcante/go-prebuilt/internal/config"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// Version information set at build time.
var (
	buildVersion = "dev"
	buildCommit  = "none"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	registry   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "prebuilt",
		Short: "Maintain a registry of prebuilt release archives",
		Long: `prebuilt keeps versions.json in sync with upstream releases.

For each release the cargo-dist manifest is downloaded, archives built for
a supported platform are selected, and their published checksums are
recorded as SRI integrity strings.

Examples:
  prebuilt add 0.5.0 --set-current
  prebuilt sync
  prebuilt list
  prebuilt release`,
		Version:       fmt.Sprintf("%s (%s)", buildVersion, buildCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetGlobalNormalizationFunc(underscoreToDash)

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Configuration file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&g.registry, "registry", "", "Registry document (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(
		addCmd(g),
		syncCmd(g),
		listCmd(g),
		platformsCmd(),
		releaseCmd(g),
	)
	return rootCmd
}

// underscoreToDash accepts flag spellings such as --set_current.
func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// load reads the configuration and applies command-line overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.registry != "" {
		cfg.Registry = g.registry
	}
	return cfg, nil
}

// logger returns a text logger on the command's error stream.
func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// store opens the configured registry.
func (g *globalFlags) store(cmd *cobra.Command, cfg *config.Config) *versions.Store {
	return versions.NewStore(cfg.RegistryPath(), versions.WithLogger(g.logger(cmd)))
}

// syncer builds a Syncer from the configuration.
func (g *globalFlags) syncer(cmd *cobra.Command, cfg *config.Config, opts ...prebuilt.Option) (*prebuilt.Syncer, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts = append([]prebuilt.Option{
		prebuilt.WithBaseURL(cfg.BaseURL),
		prebuilt.WithConcurrency(cfg.Concurrency),
		prebuilt.WithTimeout(timeout),
		prebuilt.WithBreaker(cfg.BreakerThreshold),
		prebuilt.WithLogger(g.logger(cmd)),
	}, opts...)
	return prebuilt.New(cfg.RegistryPath(), opts...)
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", fmt.Sprintf(format, args...))
}

// since formats an elapsed duration for summaries.
func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
