// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/txbuilder"
)

func TestFileLogger(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	logFile := filepath.Join(t.TempDir(), "logs", "txbuilder.log")

	logger, closer, err := txbuilder.NewFileLogger(logFile, btclog.LevelInfo)
	require.NoError(t, err)

	txbuilder.UseLogger(logger)
	defer txbuilder.DisableLog()

	txBuilder := newTestTxBuilder(t, func(cfg *txbuilder.Config) { cfg.Dump = true })
	_, err = txBuilder.BuildPayment(txbuilder.PaymentParams{
		UTXOs:         []bitcoin.UTXO{sender.utxo(1, 200000)},
		ToAddress:     receiver.taprootAddress,
		Amount:        50000,
		ChangeAddress: sender.taprootAddress,
		Signer:        sender.signer,
	})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INF] TXBD:")
	require.Contains(t, string(data), receiver.taprootAddress)
}
