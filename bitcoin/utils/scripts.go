// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// UpdatePSBTInputWithTapScriptLeafData updates provided psbt input with all data needed
// to spend taproot utxo by the leaf with provided index.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, tapScriptTree *txscript.IndexedTapScriptTree, leafIdx int) error {
	if len(input.TaprootInternalKey) == 0 {
		return errors.New("no taproot internal key provided")
	}
	if leafIdx < 0 || leafIdx >= len(tapScriptTree.LeafMerkleProofs) {
		return errors.New("no such leaf in tapScript tree")
	}

	internalKey, err := schnorr.ParsePubKey(input.TaprootInternalKey)
	if err != nil {
		return err
	}

	proof := tapScriptTree.LeafMerkleProofs[leafIdx]
	ctrlBlock := proof.ToControlBlock(internalKey)
	tapLeafScript := &psbt.TaprootTapLeafScript{
		Script:      proof.TapLeaf.Script,
		LeafVersion: proof.TapLeaf.LeafVersion,
	}
	tapLeafScript.ControlBlock, err = ctrlBlock.ToBytes()
	if err != nil {
		return err
	}

	input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{tapLeafScript}
	input.TaprootMerkleRoot = ctrlBlock.RootHash(proof.TapLeaf.Script)

	return nil
}
