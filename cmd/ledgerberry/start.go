package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/node"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Long: `Start the ledger application and wait for the consensus engine to
connect to its ABCI address.

The node will run until interrupted (Ctrl+C) or receives a termination signal.

Example:
  ledgerberry start --home ~/.ledgerberry`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	n, err := node.NewNode(cfg)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	if err := n.Start(); err != nil {
		_ = n.Close()
		return fmt.Errorf("starting node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := n.Stop(); err != nil {
		return fmt.Errorf("stopping node: %w", err)
	}
	return nil
}
