// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordtx/bitcoin/txbuilder"
)

func TestExtractInputIndexesFromPSBT(t *testing.T) {
	newPacket := func(inputs int, unknowns ...*psbt.Unknown) []byte {
		outPoints := make([]*wire.OutPoint, inputs)
		sequences := make([]uint32, inputs)
		for idx := range outPoints {
			outPoints[idx] = wire.NewOutPoint(&chainhash.Hash{byte(idx)}, uint32(idx))
			sequences[idx] = wire.MaxTxInSequenceNum
		}

		packet, err := psbt.New(outPoints, []*wire.TxOut{wire.NewTxOut(1000, []byte{0x51})}, 2, 0, sequences)
		require.NoError(t, err)
		packet.Unknowns = unknowns

		w := bytes.NewBuffer(nil)
		require.NoError(t, packet.Serialize(w))

		return w.Bytes()
	}

	tests := []struct {
		name     string
		psbt     []byte
		expected map[txbuilder.InputsHelpingKey][]int
		err      error
	}{
		{
			"offer",
			newPacket(3,
				&psbt.Unknown{Key: txbuilder.PlaceholderInputsHelpingKey.Bytes(), Value: []byte{0, 1}},
				&psbt.Unknown{Key: txbuilder.SellerInputsHelpingKey.Bytes(), Value: []byte{2}},
			),
			map[txbuilder.InputsHelpingKey][]int{
				txbuilder.PlaceholderInputsHelpingKey: {0, 1},
				txbuilder.SellerInputsHelpingKey:      {2},
			},
			nil,
		},
		{
			"buyer",
			newPacket(5,
				&psbt.Unknown{Key: txbuilder.DummyInputsHelpingKey.Bytes(), Value: []byte{0, 1}},
				&psbt.Unknown{Key: txbuilder.SellerInputsHelpingKey.Bytes(), Value: []byte{2}},
				&psbt.Unknown{Key: txbuilder.PaymentInputsHelpingKey.Bytes(), Value: []byte{3, 4}},
			),
			map[txbuilder.InputsHelpingKey][]int{
				txbuilder.DummyInputsHelpingKey:   {0, 1},
				txbuilder.SellerInputsHelpingKey:  {2},
				txbuilder.PaymentInputsHelpingKey: {3, 4},
			},
			nil,
		},
		{
			"no keys",
			newPacket(1),
			map[txbuilder.InputsHelpingKey][]int{},
			nil,
		},
		{
			"index out of range",
			newPacket(2, &psbt.Unknown{Key: txbuilder.PaymentInputsHelpingKey.Bytes(), Value: []byte{2}}),
			nil,
			txbuilder.ErrInvalidOfferStructure,
		},
		{
			"unknown key",
			newPacket(1, &psbt.Unknown{Key: []byte{0x50}, Value: []byte{0}}),
			nil,
			txbuilder.ErrUnknownInputsHelpingKey,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := txbuilder.ExtractInputIndexesFromPSBT(test.psbt)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}

			require.NoError(t, err)
			require.EqualValues(t, test.expected, result)
		})
	}
}
