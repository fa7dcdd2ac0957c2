package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"topomerge/internal/config"
)

// saveDefault stands for the preferred location of a new config file
const saveDefault = "default"

var configSave string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Config prints the configuration after the file, TOPOMERGE_* environment
variables and flags are applied. With --save it is written as YAML; the
password is never written. A bare --save writes to
$XDG_CONFIG_HOME/topomerge/config.yaml or ~/.config/topomerge/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Summary())
		path := configSave
		switch path {
		case "":
			return nil
		case saveDefault:
			path = config.DefaultConfigPath()
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.Flags().StringVar(&configSave, "save", "", "write the configuration to this path")
	configCmd.Flags().Lookup("save").NoOptDefVal = saveDefault
}
