// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/signer"
	"github.com/BoostyLabs/ordtx/bitcoin/txbuilder"
)

func TestBuildDummyUTXOs(t *testing.T) {
	buyer := newWallet(t, 0x02)
	txBuilder := newTestTxBuilder(t)

	t.Run("with change", func(t *testing.T) {
		utxos := []bitcoin.UTXO{buyer.utxo(1, 50000), buyer.utxo(2, 546, inscriptionID(2)), buyer.utxo(3, 10000)}

		result, remaining, err := txBuilder.BuildDummyUTXOs(txbuilder.DummyUTXOsParams{
			UTXOs:   utxos,
			Address: buyer.taprootAddress,
			Signer:  buyer.signer,
		})
		require.NoError(t, err)
		require.EqualValues(t, 400, result.Fee)
		requireBalanced(t, result)
		verify(t, result.Packet)

		require.Len(t, result.Tx.TxIn, 1)
		require.Equal(t, utxos[2].TxHash, result.Tx.TxIn[0].PreviousOutPoint.Hash.String())

		require.Len(t, result.Tx.TxOut, 3)
		require.EqualValues(t, 600, result.Tx.TxOut[0].Value)
		require.EqualValues(t, 600, result.Tx.TxOut[1].Value)
		require.EqualValues(t, 8400, result.Tx.TxOut[2].Value)

		require.Equal(t, []bitcoin.UTXO{utxos[0], utxos[1]}, remaining)
		require.Len(t, utxos, 3)

		packetHex, err := result.PSBTHex()
		require.NoError(t, err)

		dummies, err := txBuilder.DummyUTXOsFromSignedPSBT(packetHex)
		require.NoError(t, err)
		require.Len(t, dummies, 2)
		for idx, dummy := range dummies {
			require.Equal(t, result.Tx.TxHash().String(), dummy.TxHash)
			require.EqualValues(t, idx, dummy.Index)
			require.EqualValues(t, 600, dummy.Amount)
			require.Equal(t, buyer.taprootAddress, dummy.Address)
			require.Equal(t, buyer.taprootScript, dummy.Script)
			require.Equal(t, bitcoin.AddressTypeP2TR, dummy.AddressType)
			require.True(t, dummy.IsPlain())
		}

		unsigned := tamperPSBT(t, packetHex, func(packet *psbt.Packet) {
			packet.Inputs[0].FinalScriptWitness = nil
		})
		_, err = txBuilder.DummyUTXOsFromSignedPSBT(unsigned)
		require.ErrorIs(t, err, signer.ErrIncompletePSBT)
	})

	t.Run("change absorbed", func(t *testing.T) {
		result, remaining, err := txBuilder.BuildDummyUTXOs(txbuilder.DummyUTXOsParams{
			UTXOs:   []bitcoin.UTXO{buyer.utxo(1, 1900)},
			Address: buyer.taprootAddress,
			Signer:  buyer.signer,
		})
		require.NoError(t, err)
		require.Empty(t, remaining)
		require.Len(t, result.Tx.TxOut, 2)
		require.EqualValues(t, 700, result.Fee)
	})

	t.Run("insufficient", func(t *testing.T) {
		_, _, err := txBuilder.BuildDummyUTXOs(txbuilder.DummyUTXOsParams{
			UTXOs:   []bitcoin.UTXO{buyer.utxo(1, 1000), buyer.utxo(2, 546, inscriptionID(2))},
			Address: buyer.taprootAddress,
			Signer:  buyer.signer,
		})
		var insufficientErr *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficientErr)
		require.Equal(t, txbuilder.InsufficientErrorTypeDummy, insufficientErr.Type)
		require.EqualValues(t, 1600, insufficientErr.Need)
		require.EqualValues(t, 1000, insufficientErr.Have)
	})
}

func TestSelectDummyUTXOs(t *testing.T) {
	buyer := newWallet(t, 0x02)

	utxos := []bitcoin.UTXO{
		buyer.utxo(1, 1000),
		buyer.utxo(2, 600),
		buyer.utxo(3, 546, inscriptionID(3)),
		buyer.utxo(4, 500),
		buyer.utxo(5, 300),
	}

	dummies, rest := txbuilder.SelectDummyUTXOs(utxos, 600)
	require.Equal(t, []bitcoin.UTXO{utxos[1], utxos[3]}, dummies)
	require.Equal(t, []bitcoin.UTXO{utxos[0], utxos[2], utxos[4]}, rest)

	dummies, rest = txbuilder.SelectDummyUTXOs(utxos, 100)
	require.Empty(t, dummies)
	require.Equal(t, utxos, rest)
}
