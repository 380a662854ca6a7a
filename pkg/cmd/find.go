package cmd

import (
	"fmt"

	"github.com/agentpkg/relic/pkg/abs"
	"github.com/spf13/cobra"
)

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find PACKAGE...",
		Short: "Show which repository hosts a package",
		Long: `Probes the configured repositories in order and prints the first one with
a branch for each package. A package written repo/name only probes that repo.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFind,
	}
}

func runFind(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		ref, err := abs.ParseRef(arg)
		if err != nil {
			return err
		}
		r, err := newResolver(ref)
		if err != nil {
			return err
		}

		repo, err := r.Find(cmd.Context(), ref.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ref.Name, repo)
	}
	return nil
}
