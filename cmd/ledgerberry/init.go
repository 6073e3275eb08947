package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/config"
)

var (
	initLedger   string
	initOverride bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new node",
	Long: `Initialize a new Ledgerberry node home directory.

This command creates:
  - config.toml: Node configuration
  - data/: Data directory for the ledger state and the tx index

Example:
  ledgerberry init --home ~/.ledgerberry --ledger identity`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initLedger, "ledger", config.LedgerDevice, "ledger to run (device, identity)")
	initCmd.Flags().BoolVar(&initOverride, "force", false, "override existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !initOverride {
		return fmt.Errorf("%s already exists; use --force to override", path)
	}

	cfg := config.DefaultConfig()
	cfg.App.Ledger = initLedger
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.WriteConfigFile(path, cfg); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Paths in the file stay relative to the home directory.
	cfg.ResolvePaths(homeDir)
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized Ledgerberry node\n")
	fmt.Fprintf(out, "  Ledger:      %s\n", cfg.App.Ledger)
	fmt.Fprintf(out, "  Config:      %s\n", path)
	fmt.Fprintf(out, "  State:       %s\n", cfg.StateStore.Path)
	fmt.Fprintf(out, "  ABCI:        %s\n", cfg.ABCI.ListenAddr)

	return nil
}
