package cmd

import (
	"fmt"

	"github.com/agentpkg/relic/pkg/abs"
	"github.com/agentpkg/relic/pkg/config"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch PACKAGE",
		Short: "Fetch the build files of a package",
		Long: `Copies the trunk/ build files of a package into a directory and records
the resolved commit in the lock file.

Without --dest the files go to <data-dir>/abs/<package>. A package written
repo/name is only looked up in that repo.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	fetchCmd.Flags().String("dest", "", "destination directory")
	return fetchCmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	ref, err := abs.ParseRef(args[0])
	if err != nil {
		return err
	}
	pkg := ref.Name

	dest, err := cmd.Flags().GetString("dest")
	if err != nil {
		return err
	}
	if dest == "" {
		dest = Cfg.PackageDir(pkg)
	}

	r, err := newResolver(ref)
	if err != nil {
		return err
	}

	result, err := r.Fetch(cmd.Context(), pkg, dest)
	if err != nil {
		return err
	}

	entry := config.PackageLockEntry{
		Name:        pkg,
		Repo:        result.Repo.String(),
		Branch:      result.Branch,
		Commit:      result.Commit,
		Integrity:   result.Integrity,
		Destination: result.Dir,
	}
	err = config.UpdateLockFile(cmd.Context(), Cfg.LockFile(), func(lf *config.LockFile) {
		lf.Upsert(entry)
	})
	if err != nil {
		return fmt.Errorf("updating lockfile: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Dir)
	return nil
}
