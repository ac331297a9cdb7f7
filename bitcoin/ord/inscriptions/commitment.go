// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordtx/bitcoin/utils"
)

// Commitment describes taproot output committing to the envelope leaf.
// The output is funded by the commit transaction and spent by the reveal transaction via script path.
type Commitment struct {
	InternalKey  *btcec.PublicKey
	LeafScript   []byte
	Tree         *txscript.IndexedTapScriptTree
	OutputKey    *btcec.PublicKey
	PkScript     []byte
	Address      *btcutil.AddressTaproot
	ControlBlock []byte
}

// Commit derives taproot output for the envelope with single leaf tree locked to internalKey.
func (e *Envelope) Commit(internalKey *btcec.PublicKey, chainParams *chaincfg.Params) (*Commitment, error) {
	leafScript, err := e.IntoScript(schnorr.SerializePubKey(internalKey))
	if err != nil {
		return nil, err
	}

	tree, err := utils.NewTapScriptTreeFromRawScripts(leafScript)
	if err != nil {
		return nil, err
	}

	outputKey := utils.TaprootOutputKey(internalKey, tree)
	address, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), chainParams)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	leafControlBlock := tree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlock, err := leafControlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	return &Commitment{
		InternalKey:  internalKey,
		LeafScript:   leafScript,
		Tree:         tree,
		OutputKey:    outputKey,
		PkScript:     pkScript,
		Address:      address,
		ControlBlock: controlBlock,
	}, nil
}

// PrepareInput fills psbt input spending the commitment output of provided value via script path.
func (c *Commitment) PrepareInput(input *psbt.PInput, value int64) error {
	input.WitnessUtxo = wire.NewTxOut(value, c.PkScript)
	input.TaprootInternalKey = schnorr.SerializePubKey(c.InternalKey)

	return utils.UpdatePSBTInputWithTapScriptLeafData(input, c.Tree, 0)
}
