// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/txbuilder"
)

func TestClassifyUTXOs(t *testing.T) {
	w := newWallet(t, 0x01)
	utxos := []bitcoin.UTXO{
		w.utxo(1, 1000),
		w.utxo(2, 546, inscriptionID(1)),
		w.utxo(3, 2000),
		w.utxo(4, 546, inscriptionID(2), inscriptionID(3)),
	}

	plain, inscribed := txbuilder.ClassifyUTXOs(utxos)
	require.Equal(t, []bitcoin.UTXO{utxos[0], utxos[2]}, plain)
	require.Equal(t, []bitcoin.UTXO{utxos[1], utxos[3]}, inscribed)

	plainAgain, inscribedAgain := txbuilder.ClassifyUTXOs(plain)
	require.Equal(t, plain, plainAgain)
	require.Empty(t, inscribedAgain)

	plain, inscribed = txbuilder.ClassifyUTXOs(nil)
	require.Empty(t, plain)
	require.Empty(t, inscribed)
}

func TestSelectInputs(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	cfg := txbuilder.DefaultConfig()
	cfg.Network = "testnet"
	cfg.FeeRate = 2

	t.Run("empty list", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.NoError(t, a.AddOutput(receiver.taprootAddress, 50000))

		err = txbuilder.SelectInputs(nil, 50000, a)
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)
		require.NoError(t, txbuilder.SelectInputs(nil, 0, a))
	})

	t.Run("first fit with fee", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.NoError(t, a.AddOutput(receiver.taprootAddress, 50000))

		utxos := []bitcoin.UTXO{sender.utxo(1, 30000), sender.utxo(2, 30000), sender.utxo(3, 30000)}
		require.NoError(t, txbuilder.SelectInputs(utxos, a.TotalOutput(), a))
		require.EqualValues(t, 60000, a.TotalInput())
	})

	t.Run("below required", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.NoError(t, a.AddOutput(receiver.taprootAddress, 50000))

		err = txbuilder.SelectInputs([]bitcoin.UTXO{sender.utxo(1, 20000), sender.utxo(2, 20000)}, a.TotalOutput(), a)
		var insufficientErr *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficientErr)
		require.EqualValues(t, 10000, insufficientErr.Shortfall())
	})
}

func TestAssembler(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	cfg := txbuilder.DefaultConfig()
	cfg.Network = "testnet"
	cfg.FeeRate = 2

	newAssembler := func(t *testing.T, input, output int64) *txbuilder.Assembler {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.NoError(t, a.SetChangeAddress(sender.taprootAddress))
		require.NoError(t, a.AddOutput(receiver.taprootAddress, output))

		utxo := sender.utxo(1, input)
		require.NoError(t, a.AddInput(&utxo))

		return a
	}

	t.Run("auto adjust", func(t *testing.T) {
		a := newAssembler(t, 50100, 50000)

		result, err := a.EstimateThenFinalize(true)
		require.NoError(t, err)
		require.Len(t, result.Tx.TxOut, 1)
		require.EqualValues(t, 49789, result.Tx.TxOut[0].Value)
		require.EqualValues(t, 311, result.Fee)
		verify(t, result.Packet)
	})

	t.Run("auto adjust below dust", func(t *testing.T) {
		a := newAssembler(t, 700, 600)

		_, err := a.EstimateThenFinalize(true)
		require.ErrorIs(t, err, txbuilder.ErrOutputBelowDust)
	})

	t.Run("no change address", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.ErrorIs(t, a.AddChangeOutput(1000), txbuilder.ErrNoChangeAddress)
	})

	t.Run("wrong network address", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)
		require.Error(t, a.AddOutput("bc1p5cyxnuxmeuwuvkwfem96lqzszd02n6xdcjrs20cac6yqjjwudpxqkedrcr", 1000))
	})

	t.Run("no signer", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, nil)
		require.NoError(t, err)

		utxo := sender.utxo(1, 1000)
		require.ErrorIs(t, a.AddInput(&utxo), txbuilder.ErrNoSigner)
	})

	t.Run("invalid utxo", func(t *testing.T) {
		a, err := txbuilder.NewAssembler(cfg, sender.signer)
		require.NoError(t, err)

		utxo := sender.utxo(1, -1)
		require.ErrorIs(t, a.AddInput(&utxo), bitcoin.ErrInvalidUTXOAmount)

		utxo = sender.utxo(1, 1000)
		utxo.AddressType = 0
		require.ErrorIs(t, a.AddInput(&utxo), bitcoin.ErrUnsupportedAddressType)
		require.ErrorIs(t, a.AddInput(&utxo), txbuilder.ErrPSBTInputBuilder)
	})
}

func TestBuildPayment(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	txBuilder := newTestTxBuilder(t)

	params := func(amount int64, utxos ...bitcoin.UTXO) txbuilder.PaymentParams {
		return txbuilder.PaymentParams{
			UTXOs:         utxos,
			ToAddress:     receiver.taprootAddress,
			Amount:        amount,
			ChangeAddress: sender.taprootAddress,
			Signer:        sender.signer,
		}
	}

	t.Run("change", func(t *testing.T) {
		result, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 200000)))
		require.NoError(t, err)

		require.Len(t, result.Tx.TxIn, 1)
		require.Len(t, result.Tx.TxOut, 2)
		require.EqualValues(t, 50000, result.Tx.TxOut[0].Value)
		require.Equal(t, receiver.taprootScript, result.Tx.TxOut[0].PkScript)
		require.EqualValues(t, 149689, result.Tx.TxOut[1].Value)
		require.Equal(t, sender.taprootScript, result.Tx.TxOut[1].PkScript)
		require.EqualValues(t, 311, result.Fee)
		require.EqualValues(t, 2, result.FeeRate)

		fee, err := txbuilder.EstimateFee(result.Packet, result.FeeRate)
		require.NoError(t, err)
		require.Equal(t, result.Fee, fee)

		requireBalanced(t, result)
		verify(t, result.Packet)
	})

	t.Run("dust change absorbed", func(t *testing.T) {
		result, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 50611)))
		require.NoError(t, err)

		require.Len(t, result.Tx.TxOut, 1)
		require.EqualValues(t, 611, result.Fee)
		requireBalanced(t, result)
	})

	t.Run("several inputs", func(t *testing.T) {
		result, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 30000), sender.utxo(2, 30000), sender.utxo(3, 30000)))
		require.NoError(t, err)

		require.Len(t, result.Tx.TxIn, 2)
		require.EqualValues(t, 426, result.Fee)
		require.EqualValues(t, 9574, result.Tx.TxOut[1].Value)
		requireBalanced(t, result)
		verify(t, result.Packet)
	})

	t.Run("insufficient", func(t *testing.T) {
		_, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 50100)))
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)

		var insufficientErr *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficientErr)
		require.EqualValues(t, 50311, insufficientErr.Need)
		require.EqualValues(t, 50100, insufficientErr.Have)
		require.EqualValues(t, 211, insufficientErr.Shortfall())
		require.Contains(t, err.Error(), "shortfall")

		_, err = txBuilder.BuildPayment(params(50000))
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)
	})

	t.Run("inscriptions are never spent", func(t *testing.T) {
		inscribed := sender.utxo(1, 100000, inscriptionID(1))
		plain := sender.utxo(2, 60000)

		result, err := txBuilder.BuildPayment(params(50000, inscribed, plain))
		require.NoError(t, err)
		require.Len(t, result.Tx.TxIn, 1)
		require.Equal(t, plain.TxHash, result.Tx.TxIn[0].PreviousOutPoint.Hash.String())

		_, err = txBuilder.BuildPayment(params(50000, inscribed))
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)
	})

	t.Run("receiver pays fee", func(t *testing.T) {
		p := params(50000, sender.utxo(1, 200000))
		p.ReceiverPaysFee = true

		result, err := txBuilder.BuildPayment(p)
		require.NoError(t, err)
		require.EqualValues(t, 49689, result.Tx.TxOut[0].Value)
		require.EqualValues(t, 150000, result.Tx.TxOut[1].Value)
		require.EqualValues(t, 311, result.Fee)
		requireBalanced(t, result)

		p = params(700, sender.utxo(1, 700))
		p.ReceiverPaysFee = true

		_, err = txBuilder.BuildPayment(p)
		var insufficientErr *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficientErr)
		require.Equal(t, txbuilder.CauserReceiver, insufficientErr.Causer)
	})

	t.Run("replace by fee", func(t *testing.T) {
		result, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 200000)))
		require.NoError(t, err)
		require.EqualValues(t, wire.MaxTxInSequenceNum-2, result.Tx.TxIn[0].Sequence)

		noRBFBuilder := newTestTxBuilder(t, func(cfg *txbuilder.Config) { cfg.NoRBF = true })
		result, err = noRBFBuilder.BuildPayment(params(50000, sender.utxo(1, 200000)))
		require.NoError(t, err)
		require.EqualValues(t, wire.MaxTxInSequenceNum, result.Tx.TxIn[0].Sequence)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 30000), sender.utxo(2, 30000)))
		require.NoError(t, err)

		second, err := txBuilder.BuildPayment(params(50000, sender.utxo(1, 30000), sender.utxo(2, 30000)))
		require.NoError(t, err)

		firstHex, err := first.TxHex()
		require.NoError(t, err)
		secondHex, err := second.TxHex()
		require.NoError(t, err)
		require.Equal(t, firstHex, secondHex)
	})

	t.Run("fee rate override", func(t *testing.T) {
		p := params(50000, sender.utxo(1, 200000))
		p.FeeRate = 4

		result, err := txBuilder.BuildPayment(p)
		require.NoError(t, err)
		require.EqualValues(t, 622, result.Fee)
		require.EqualValues(t, 4, result.FeeRate)
	})
}

func TestBuildMultiPayment(t *testing.T) {
	sender := newWallet(t, 0x01)
	first, second := newWallet(t, 0x02), newWallet(t, 0x03)
	txBuilder := newTestTxBuilder(t)

	result, err := txBuilder.BuildMultiPayment(txbuilder.MultiPaymentParams{
		UTXOs: []bitcoin.UTXO{sender.segwitUTXO(1, 30000), sender.utxo(2, 30000)},
		Receivers: []txbuilder.Receiver{
			{Address: first.taprootAddress, Amount: 20000},
			{Address: second.segwitAddress, Amount: 25000},
		},
		ChangeAddress: sender.segwitAddress,
		Signer:        sender.signer,
	})
	require.NoError(t, err)

	require.Len(t, result.Tx.TxIn, 2)
	require.Len(t, result.Tx.TxOut, 3)
	require.Equal(t, first.taprootScript, result.Tx.TxOut[0].PkScript)
	require.Equal(t, second.segwitScript, result.Tx.TxOut[1].PkScript)
	require.Equal(t, sender.segwitScript, result.Tx.TxOut[2].PkScript)
	requireBalanced(t, result)
	verify(t, result.Packet)

	_, err = txBuilder.BuildMultiPayment(txbuilder.MultiPaymentParams{Signer: sender.signer, ChangeAddress: sender.taprootAddress})
	require.ErrorIs(t, err, txbuilder.ErrNoOutputs)
}

func TestBuildInscriptionTransfer(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	txBuilder := newTestTxBuilder(t)

	inscribed := sender.utxo(1, 10000, inscriptionID(1))
	plain := sender.utxo(2, 50000)

	params := func(id string, utxos ...bitcoin.UTXO) txbuilder.InscriptionTransferParams {
		return txbuilder.InscriptionTransferParams{
			UTXOs:         utxos,
			ToAddress:     receiver.taprootAddress,
			InscriptionID: id,
			ChangeAddress: sender.taprootAddress,
			Signer:        sender.signer,
		}
	}

	t.Run("transfer", func(t *testing.T) {
		result, err := txBuilder.BuildInscriptionTransfer(params(inscriptionID(1), plain, inscribed))
		require.NoError(t, err)

		require.Len(t, result.Tx.TxIn, 2)
		require.Equal(t, inscribed.TxHash, result.Tx.TxIn[0].PreviousOutPoint.Hash.String())
		require.Equal(t, inscribed.Index, result.Tx.TxIn[0].PreviousOutPoint.Index)
		require.EqualValues(t, 10000, result.Tx.TxOut[0].Value)
		require.Equal(t, receiver.taprootScript, result.Tx.TxOut[0].PkScript)
		requireBalanced(t, result)
		verify(t, result.Packet)
	})

	t.Run("output value", func(t *testing.T) {
		p := params(inscriptionID(1), plain, inscribed)
		p.OutputValue = 546

		result, err := txBuilder.BuildInscriptionTransfer(p)
		require.NoError(t, err)
		require.EqualValues(t, 546, result.Tx.TxOut[0].Value)
		requireBalanced(t, result)

		withOffset := inscribed
		withOffset.Inscriptions = []bitcoin.InscriptionUTXO{{ID: inscriptionID(1), Offset: 600}}
		p = params(inscriptionID(1), plain, withOffset)
		p.OutputValue = 546

		_, err = txBuilder.BuildInscriptionTransfer(p)
		require.ErrorIs(t, err, txbuilder.ErrInscriptionOffsetOutOfRange)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := txBuilder.BuildInscriptionTransfer(params(inscriptionID(2), plain, inscribed))
		require.ErrorIs(t, err, bitcoin.ErrInscriptionNotFound)

		multiple := sender.utxo(3, 10000, inscriptionID(3), inscriptionID(4))
		_, err = txBuilder.BuildInscriptionTransfer(params(inscriptionID(4), plain, multiple))
		require.ErrorIs(t, err, bitcoin.ErrMultipleInscriptions)
	})
}

func TestBuildMultiInscriptionTransfer(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	txBuilder := newTestTxBuilder(t)

	result, err := txBuilder.BuildMultiInscriptionTransfer(txbuilder.MultiInscriptionTransferParams{
		UTXOs: []bitcoin.UTXO{
			sender.utxo(1, 546, inscriptionID(1)),
			sender.utxo(2, 50000),
			sender.utxo(3, 10000, inscriptionID(2)),
		},
		ToAddress:      receiver.taprootAddress,
		InscriptionIDs: []string{inscriptionID(2), inscriptionID(1)},
		ChangeAddress:  sender.taprootAddress,
		Signer:         sender.signer,
	})
	require.NoError(t, err)

	require.Len(t, result.Tx.TxIn, 3)
	require.Equal(t, fmt.Sprintf("%064x", 3), result.Tx.TxIn[0].PreviousOutPoint.Hash.String())
	require.Equal(t, fmt.Sprintf("%064x", 1), result.Tx.TxIn[1].PreviousOutPoint.Hash.String())
	require.EqualValues(t, 10000, result.Tx.TxOut[0].Value)
	require.EqualValues(t, 546, result.Tx.TxOut[1].Value)
	requireBalanced(t, result)
	verify(t, result.Packet)

	_, err = txBuilder.BuildMultiInscriptionTransfer(txbuilder.MultiInscriptionTransferParams{
		ToAddress:     receiver.taprootAddress,
		ChangeAddress: sender.taprootAddress,
		Signer:        sender.signer,
	})
	require.True(t, errors.Is(err, bitcoin.ErrInscriptionNotFound))

	_, err = txBuilder.BuildMultiInscriptionTransfer(txbuilder.MultiInscriptionTransferParams{
		UTXOs: []bitcoin.UTXO{
			sender.utxo(5, 546, inscriptionID(5)),
			sender.utxo(6, 50000),
		},
		ToAddress:      receiver.taprootAddress,
		InscriptionIDs: []string{inscriptionID(5), inscriptionID(5)},
		ChangeAddress:  sender.taprootAddress,
		Signer:         sender.signer,
	})
	require.ErrorIs(t, err, txbuilder.ErrDuplicateInscription)
}

// inscriptionID returns test inscription id.
func inscriptionID(seq int) string {
	return fmt.Sprintf("%064xi0", seq+100)
}

func TestEstimateFeeECDSA(t *testing.T) {
	sender, receiver := newWallet(t, 0x01), newWallet(t, 0x02)
	txBuilder := newTestTxBuilder(t)

	var expectedFee int64
	for amount := int64(200000); amount < 200100; amount++ {
		result, err := txBuilder.BuildPayment(txbuilder.PaymentParams{
			UTXOs:         []bitcoin.UTXO{sender.segwitUTXO(1, amount), sender.segwitUTXO(2, amount)},
			ToAddress:     receiver.segwitAddress,
			Amount:        250000,
			ChangeAddress: sender.segwitAddress,
			Signer:        sender.signer,
		})
		require.NoError(t, err)
		require.Len(t, result.Tx.TxOut, 2)

		fee, err := txbuilder.EstimateFee(result.Packet, result.FeeRate)
		require.NoError(t, err)
		require.Equal(t, fee, result.Fee, "amount %d", amount)

		// signature length does not change the fee.
		if expectedFee == 0 {
			expectedFee = result.Fee
		}
		require.Equal(t, expectedFee, result.Fee, "amount %d", amount)
	}
}
