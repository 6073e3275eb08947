package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledgerberry/config"
	"github.com/blockberries/ledgerberry/keys"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		initOverride = false
		initLedger = config.LedgerDevice
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "init", "--home", home, "--ledger", "identity")
	require.NoError(t, err)
	require.Contains(t, out, "Initialized Ledgerberry node")

	cfg, err := config.LoadConfig(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	require.Equal(t, config.LedgerIdentity, cfg.App.Ledger)
	require.Equal(t, "data/state", cfg.StateStore.Path)
	require.DirExists(t, filepath.Join(home, "data", "state"))

	_, err = execute(t, "init", "--home", home)
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--home", home, "--force", "--ledger", "bogus")
	require.ErrorIs(t, err, config.ErrInvalidLedger)
}

func TestKeysDerive(t *testing.T) {
	out, err := execute(t, "keys", "derive", "1")
	require.NoError(t, err)

	var key EntityKey
	require.NoError(t, json.Unmarshal([]byte(out), &key))

	kp, err := keys.DeriveKeyPair("1")
	require.NoError(t, err)
	require.Equal(t, "1", key.Seed)
	require.Equal(t, kp.PubKeyHex(), key.PubKey)
}

func TestKeysGenerate(t *testing.T) {
	out, err := execute(t, "keys", "generate")
	require.NoError(t, err)

	var key EntityKey
	require.NoError(t, json.Unmarshal([]byte(out), &key))
	require.NotEmpty(t, key.Seed)
	require.Len(t, key.PubKey, 2*keys.PubKeySize)
}

func TestLoadConfigMissing(t *testing.T) {
	homeDir = t.TempDir()
	t.Cleanup(func() { homeDir = "." })

	_, err := loadConfig()
	require.ErrorContains(t, err, "run init first")
}
