// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordtx/bitcoin"
)

// ErrPSBTInputBuilder defines errors class for psbt input preparation.
var ErrPSBTInputBuilder = errors.New("prepare psbt input")

// PSBTInputBuilder is a helping tool to prepare psbt input based on utxo address type.
type PSBTInputBuilder struct {
	addressType  bitcoin.AddressType
	xOnlyPubKey  []byte
	redeemScript []byte
}

// NewPSBTInputBuilder is a constructor for PSBTInputBuilder.
func NewPSBTInputBuilder(pubKey *btcec.PublicKey, addressType bitcoin.AddressType) (pib *PSBTInputBuilder, err error) {
	pib = &PSBTInputBuilder{addressType: addressType}

	defer func(err *error) {
		if err != nil && *err != nil {
			*err = errors.Join(ErrPSBTInputBuilder, *err)
		}
	}(&err)

	err = addressType.Validate()
	if err != nil {
		return pib, err
	}

	switch addressType {
	case bitcoin.AddressTypeP2TR:
		pib.xOnlyPubKey = schnorr.SerializePubKey(pubKey)
	case bitcoin.AddressTypeP2SHP2WPKH:
		pib.redeemScript, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).
			AddData(btcutil.Hash160(pubKey.SerializeCompressed())).
			Script()
	}
	if err != nil {
		return pib, err
	}

	return pib, nil
}

// PrepareInput updates input with required data based on address type.
func (pib *PSBTInputBuilder) PrepareInput(input *psbt.PInput) {
	switch pib.addressType {
	case bitcoin.AddressTypeP2TR:
		input.TaprootInternalKey = pib.xOnlyPubKey
	case bitcoin.AddressTypeP2SHP2WPKH:
		input.RedeemScript = pib.redeemScript
	}
}

// NewInput returns assembler input spending provided utxo.
func (pib *PSBTInputBuilder) NewInput(utxo *bitcoin.UTXO) (*Input, error) {
	if utxo.Amount < 0 {
		return nil, errors.Join(ErrPSBTInputBuilder, bitcoin.ErrInvalidUTXOAmount)
	}

	hash, err := chainhash.NewHashFromStr(utxo.TxHash)
	if err != nil {
		return nil, errors.Join(ErrPSBTInputBuilder, err)
	}

	input := &Input{
		OutPoint: *wire.NewOutPoint(hash, utxo.Index),
		UTXO:     utxo,
	}
	input.Data.WitnessUtxo = wire.NewTxOut(utxo.Amount, utxo.Script)
	pib.PrepareInput(&input.Data)

	return input, nil
}
