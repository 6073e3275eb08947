package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/testdrive"
)

var (
	statusAddr string
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the application status",
	Long: `Query the status of a running ledger application over ABCI.

Example:
  ledgerberry status
  ledgerberry status --addr unix:///var/run/ledger.sock`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusAddr, "addr", "a", "tcp://127.0.0.1:46658", "ABCI address")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// StatusResponse is the printed application status.
type StatusResponse struct {
	App         string `json:"app"`
	Version     string `json:"version"`
	LastVersion int64  `json:"last_version"`
	LastHash    string `json:"last_hash"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := testdrive.DialABCI(statusAddr, nil)
	if err != nil {
		return fmt.Errorf("cannot connect to application at %s: %w", statusAddr, err)
	}
	defer client.Close()

	info, err := client.Info(cmd.Context())
	if err != nil {
		return err
	}

	status := StatusResponse{
		App:         info.Data,
		Version:     info.Version,
		LastVersion: info.LastVersion,
		LastHash:    fmt.Sprintf("%X", info.LastHash),
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintln(out, "Application Status")
	fmt.Fprintln(out, "==================")
	fmt.Fprintf(out, "App:             %s\n", status.App)
	fmt.Fprintf(out, "Version:         %s\n", status.Version)
	fmt.Fprintf(out, "Last Version:    %d\n", status.LastVersion)
	fmt.Fprintf(out, "Last Hash:       %s\n", status.LastHash)
	return nil
}
