// Package main provides the topomerge CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"topomerge/internal/config"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// cfg is the effective configuration: file, then TOPOMERGE_* env, then flags.
	cfg *config.Config
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "topomerge",
	Short: "Filter VPN topologies and merge them into hub-and-spoke topologies",
	Long: `topomerge narrows a set of point-to-point VPN topology records with
per-field filters, shows where the selected records disagree, and merges
them into a hub-and-spoke topology on the merge backend, resolving the
disagreements with override values.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: $TOPOMERGE_CONFIG, ./topomerge.yaml or the user config dir)")
	pf.String("backend", "", "merge backend URL")
	pf.String("host", "", "management host the backend logs into")
	pf.String("user", "", "management user")
	pf.String("password", "", "management password (prefer TOPOMERGE_BACKEND_PASSWORD)")
	pf.Duration("timeout", 0, "HTTP timeout for backend calls")
	pf.Duration("estimate", 0, "expected duration of a backend call, drives the progress display")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// flagKeys maps config keys to the flags that override them
var flagKeys = map[string]string{
	config.KeyBackendURL:      "backend",
	config.KeyBackendHost:     "host",
	config.KeyBackendUsername: "user",
	config.KeyBackendPassword: "password",
	config.KeyBackendTimeout:  "timeout",
	config.KeyEstimate:        "estimate",
	config.KeyServeAddr:       "addr",
	config.KeyServeFixture:    "fixture",
	config.KeyServeTaskDelay:  "task-delay",
	config.KeyServeWatch:      "watch",
}

// loadConfig reads the config file and layers env and flags on top
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	var (
		fileCfg *config.Config
		path    string
		err     error
	)
	if configFile != "" {
		fileCfg, path, err = config.LoadFromPath(configFile)
	} else {
		fileCfg, path, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if path != "" {
		log.Printf("Config loaded: %s", path)
	}

	v := config.NewViper(fileCfg)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg = config.FromViper(v)
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
