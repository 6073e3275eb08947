package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/testdrive"
)

var (
	testdriveAddr    string
	testdriveVerbose bool
)

var testdriveCmd = &cobra.Command{
	Use:   "testdrive",
	Short: "Run the device scenario against a running node",
	Long: `Connect to a device ledger over ABCI, bootstrap devices "1" and "2",
send temperature updates, commit and read both devices back. Every result
that differs from the expected one is reported.

Example:
  ledgerberry testdrive --addr tcp://127.0.0.1:46658`,
	RunE: runTestdrive,
}

func init() {
	testdriveCmd.Flags().StringVarP(&testdriveAddr, "addr", "a", "tcp://127.0.0.1:46658", "ABCI address (tcp://host:port or unix://path)")
	testdriveCmd.Flags().BoolVarP(&testdriveVerbose, "verbose", "v", false, "log every ABCI exchange")
}

func runTestdrive(cmd *cobra.Command, args []string) error {
	logger := logging.NewNopLogger()
	if testdriveVerbose {
		logger = logging.NewDevelopmentLogger()
	}

	client, err := testdrive.DialABCI(testdriveAddr, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := testdrive.NewDriver(client, logger).Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range report.Mismatches {
		fmt.Fprintf(out, "tx got unexpected result! %s\n", m)
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d steps failed", len(report.Mismatches), report.Steps)
	}
	fmt.Fprintf(out, "Test done! %d steps, app hash %X\n", report.Steps, report.AppHash)
	return nil
}
