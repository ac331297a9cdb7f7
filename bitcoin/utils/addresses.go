// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// NewKeyPathTaprootAddress generates BIP-86 taproot address (no script tree) for provided internal key.
func NewKeyPathTaprootAddress(chainParams *chaincfg.Params, internalKey *btcec.PublicKey) (*btcutil.AddressTaproot, error) {
	outputKey := txscript.ComputeTaprootKeyNoScript(internalKey)

	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), chainParams)
}

// TaprootOutputKey returns output key of internal key tweaked with the tapScript tree root.
func TaprootOutputKey(internalKey *btcec.PublicKey, tapScriptTree *txscript.IndexedTapScriptTree) *btcec.PublicKey {
	tapScriptRootHash := tapScriptTree.RootNode.TapHash()

	return txscript.ComputeTaprootOutputKey(internalKey, tapScriptRootHash[:])
}

// KeyPathTaprootScript returns BIP-86 taproot pkScript for provided internal key.
func KeyPathTaprootScript(internalKey *btcec.PublicKey) ([]byte, error) {
	return txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(internalKey))
}
