package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/app"
	"github.com/blockberries/ledgerberry/config"
)

var (
	// Version information (set at build time)
	GitCommit = "unknown"
	BuildTime = "unknown"

	// Global flags
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerberry",
	Short: "Ledgerberry ledger application",
	Long: `Ledgerberry is a replicated ledger application driven by a
Tendermint consensus engine over ABCI.

A node runs either the device telemetry ledger or the identity ledger.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", app.Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", ".", "directory holding config.toml and data")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(testdriveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Ledgerberry %s\n", app.Version)
		fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Built:      %s\n", BuildTime)
	},
}

func configPath() string {
	return filepath.Join(homeDir, "config.toml")
}

// loadConfig loads the configuration from the home directory and resolves
// its relative paths against it.
func loadConfig() (*config.Config, error) {
	path := configPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run init first)", path)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(homeDir)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
