package cmd

import (
	"fmt"

	"github.com/agentpkg/relic/pkg/config"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long:  "Prints the configuration after merging flags, RELIC_* environment variables and relic.yaml.",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Write the resolved base URL and repositories to relic.yaml",
		Args:  cobra.NoArgs,
		RunE:  runConfigSave,
	}

	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(saveCmd)
	return configCmd
}

type resolvedConfig struct {
	ConfigFile string         `json:"configFile"`
	DataDir    string         `json:"dataDir"`
	LockFile   string         `json:"lockFile"`
	LogLevel   string         `json:"logLevel"`
	Repos      []resolvedRepo `json:"repos"`
}

type resolvedRepo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	catalog, err := Cfg.Catalog()
	if err != nil {
		return err
	}

	out := resolvedConfig{
		ConfigFile: Cfg.ConfigFile(),
		DataDir:    Cfg.DataDir,
		LockFile:   Cfg.LockFile(),
		LogLevel:   Cfg.LogLevel,
	}
	for _, entry := range catalog {
		out.Repos = append(out.Repos, resolvedRepo{Name: entry.Repo.String(), URL: entry.URL()})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	// Refuse to persist a catalog that would not load.
	if _, err := Cfg.Catalog(); err != nil {
		return err
	}

	path := Cfg.ConfigFile()
	if err := config.SaveFile(path, Cfg.Config()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}
