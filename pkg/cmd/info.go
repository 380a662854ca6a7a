package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentpkg/relic/pkg/abs"
	"github.com/agentpkg/relic/pkg/pkgbuild"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info PACKAGE...",
		Short: "Show the metadata declared in a package's PKGBUILD",
		Long:  "Fetches each package into a scratch directory and prints the fields of its PKGBUILD.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	for i, arg := range args {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := showInfo(cmd, arg); err != nil {
			return err
		}
	}
	return nil
}

func showInfo(cmd *cobra.Command, arg string) error {
	ref, err := abs.ParseRef(arg)
	if err != nil {
		return err
	}
	r, err := newResolver(ref)
	if err != nil {
		return err
	}

	return r.FetchTemp(cmd.Context(), ref.Name, func(result *abs.FetchResult) error {
		p, err := pkgbuild.Load(result.Dir)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			Logger.Warn("PKGBUILD has problems", zap.String("package", ref.Name), zap.Error(err))
		}

		printInfo(cmd.OutOrStdout(), p, result)
		return nil
	})
}

func printInfo(w io.Writer, p pkgbuild.Package, result *abs.FetchResult) {
	field := func(label, value string) {
		if value == "" {
			value = "None"
		}
		fmt.Fprintf(w, "%-16s: %s\n", label, value)
	}
	list := func(label string, values []string) {
		field(label, strings.Join(values, "  "))
	}

	field("Repository", result.Repo.String())
	field("Name", strings.Join(p.Names(), "  "))
	field("Base", p.Base())
	field("Version", p.Version())
	field("Description", p.Desc())
	list("Architecture", p.Arch())
	field("URL", p.URL())
	list("Licenses", p.Licenses())
	list("Groups", p.Groups())
	list("Provides", p.Provides())
	list("Depends On", p.Depends())
	list("Optional Deps", p.OptionalDepends())
	list("Make Deps", p.MakeDepends())
	list("Check Deps", p.CheckDepends())
	list("Conflicts With", p.Conflicts())
	list("Replaces", p.Replaces())
	field("Commit", result.Commit)
}
