package cmd

import (
	"fmt"
	"slices"

	"github.com/agentpkg/relic/pkg/store"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// removable lists the persisted components in prompt order.
var removable = []string{"config", "data"}

func newRemoveCmd() *cobra.Command {
	removeCmd := &cobra.Command{
		Use:     "remove [config|data]...",
		Aliases: []string{"rm"},
		Short:   "Remove relic's persisted directories",
		Long: `Removes the config directory (relic.yaml) and/or the data directory
(fetched packages and the lock file).

With no arguments and no --all flag, prompts for the components to remove.`,
		ValidArgs: removable,
		Args:      cobra.OnlyValidArgs,
		RunE:      runRemove,
	}

	removeCmd.Flags().Bool("all", false, "Remove every component without prompting")
	return removeCmd
}

func runRemove(cmd *cobra.Command, args []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	var selected []string
	switch {
	case all:
		selected = removable
	case len(args) > 0:
		selected = args
	default:
		options := make([]huh.Option[string], len(removable))
		for i, name := range removable {
			options[i] = huh.NewOption(fmt.Sprintf("%s: %s", name, componentDir(name)), name)
		}

		err := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title("Select components to remove").
					Options(options...).
					Value(&selected),
			),
		).Run()
		if err != nil {
			return fmt.Errorf("selection prompt failed: %w", err)
		}

		if len(selected) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing selected")
			return nil
		}
	}

	for _, name := range removable {
		if !slices.Contains(selected, name) {
			continue
		}
		dir := componentDir(name)
		if err := store.New(dir).Remove(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", dir)
	}
	return nil
}

func componentDir(name string) string {
	if name == "config" {
		return Cfg.ConfigDir
	}
	return Cfg.DataDir
}
