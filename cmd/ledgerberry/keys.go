package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/ledgerberry/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Derive entity keys",
	Long: `Commands for the Ed25519 keys that address ledger entities.

An entity key is derived from a human seed, so the same seed always names
the same device or user.`,
}

var keysDeriveCmd = &cobra.Command{
	Use:   "derive <seed>",
	Short: "Derive the keypair of a seed",
	Long: `Derive the keypair for a seed and print it as JSON.

Example:
  ledgerberry keys derive 1`,
	Args: cobra.ExactArgs(1),
	RunE: runKeysDerive,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a fresh seed and its keypair",
	Long: `Generate a random seed and print it with its derived keypair.

Example:
  ledgerberry keys generate`,
	Args: cobra.NoArgs,
	RunE: runKeysGenerate,
}

func init() {
	keysCmd.AddCommand(keysDeriveCmd)
	keysCmd.AddCommand(keysGenerateCmd)
}

// EntityKey is the printed form of a derived keypair.
type EntityKey struct {
	Seed    string `json:"seed"`
	PubKey  string `json:"pub_key"`
	PrivKey string `json:"priv_key"`
}

func printKey(cmd *cobra.Command, seed string) error {
	kp, err := keys.DeriveKeyPair(seed)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(EntityKey{
		Seed:    seed,
		PubKey:  kp.PubKeyHex(),
		PrivKey: hex.EncodeToString(kp.PrivKey),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runKeysDerive(cmd *cobra.Command, args []string) error {
	return printKey(cmd, args[0])
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	return printKey(cmd, keys.GenerateSeed())
}
