package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/agentpkg/relic/pkg/abs"
	"github.com/agentpkg/relic/pkg/config"
	"github.com/agentpkg/relic/pkg/git"
	"github.com/agentpkg/relic/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Cfg holds the resolved settings, available to all subcommands after
	// PersistentPreRunE completes.
	Cfg *config.Settings

	// Logger is built from Cfg's log level and quiet flag.
	Logger *zap.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relic",
		Short: "Arch Build System package source fetcher",
		Long:  "relic locates Arch Linux packages in the svntogit repositories and fetches their build files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, err := logging.New(s.LogLevel, s.Quiet)
			if err != nil {
				return err
			}
			Cfg = s
			Logger = logger
			return nil
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyConfigDir, "", "directory holding relic.yaml (default $XDG_CONFIG_HOME/relic)")
	flags.String(config.KeyDataDir, "", "directory for fetched packages and the lock file (default $XDG_DATA_HOME/relic)")
	flags.String(config.KeyLogLevel, "", "log level: debug, info, warn or error (default info)")
	flags.BoolP(config.KeyDebug, "d", false, "enable debug logging")
	flags.BoolP(config.KeyQuiet, "q", false, "suppress all logging")
	flags.String("base-url", "", "svntogit base URL (default "+abs.DefaultBaseURL+")")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newFindCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newPkgverCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newRemoveCmd())

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newResolver builds a resolver over the configured catalog, narrowed to
// the repo ref is pinned to, if any.
func newResolver(ref abs.Ref) (*abs.Resolver, error) {
	catalog, err := Cfg.Catalog()
	if err != nil {
		return nil, err
	}
	catalog, err = catalog.Narrow(ref)
	if err != nil {
		return nil, err
	}
	return &abs.Resolver{
		Catalog: catalog,
		Git:     git.NewClient(),
		Logger:  Logger,
	}, nil
}
