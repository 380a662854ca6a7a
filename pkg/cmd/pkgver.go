package cmd

import (
	"fmt"

	"github.com/agentpkg/relic/pkg/abs"
	"github.com/spf13/cobra"
)

func newPkgverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pkgver [PACKAGE]",
		Short: "Print the upstream version of a package",
		Long: `Fetches a package into a scratch directory and prints the numeric
MAJOR[.MINOR[.PATCH]] prefix of its pkgver. Defaults to the linux package.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPkgver,
	}
}

func runPkgver(cmd *cobra.Command, args []string) error {
	var ref abs.Ref
	if len(args) > 0 {
		var err error
		if ref, err = abs.ParseRef(args[0]); err != nil {
			return err
		}
	}

	r, err := newResolver(ref)
	if err != nil {
		return err
	}

	var ver string
	if ref.Name == "" {
		ver, err = abs.KernelVersion(cmd.Context(), r)
	} else {
		ver, err = abs.PackageVersion(cmd.Context(), r, ref.Name)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ver)
	return nil
}
