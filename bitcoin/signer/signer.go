// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrSigning defines errors class for input signing.
	ErrSigning = errors.New("signing")
	// ErrKeyMismatch defines that input is not spendable by the signer key.
	ErrKeyMismatch = errors.New("input is not spendable by signer key")
	// ErrUnsupportedScript defines that input script type can not be signed.
	ErrUnsupportedScript = errors.New("unsupported input script")
	// ErrMissingWitnessUTXO defines that input has no previous output data.
	ErrMissingWitnessUTXO = errors.New("missing witness utxo")
	// ErrInvalidInputIndex defines that input index is out of range.
	ErrInvalidInputIndex = errors.New("invalid input index")
)

// SignParams defines parameters for Sign method.
type SignParams struct {
	SerializedPSBT []byte
	Inputs         []int // inputs indexes, all spendable inputs if empty.
}

// signInputParams defines parameters for signInput method.
type signInputParams struct {
	packet    *psbt.Packet
	input     int
	sigHashes *txscript.TxSigHashes
}

// Signer signs and finalizes psbt inputs spendable by one private key.
type Signer struct {
	networkParams *chaincfg.Params
	privateKey    *btcec.PrivateKey
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params, privateKey *btcec.PrivateKey) *Signer {
	return &Signer{
		networkParams: networkParams,
		privateKey:    privateKey,
	}
}

// PublicKey returns public key of the signer.
func (signer *Signer) PublicKey() *btcec.PublicKey {
	return signer.privateKey.PubKey()
}

// Sign signs inputs of serialized PSBT by provided indexes, returns updated serialized PSBT.
func (signer *Signer) Sign(params SignParams) ([]byte, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(params.SerializedPSBT), false)
	if err != nil {
		return nil, err
	}

	err = signer.SignPSBT(packet, params.Inputs...)
	if err != nil {
		return nil, err
	}

	w := bytes.NewBuffer(nil)
	err = packet.Serialize(w)
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// SignPSBT signs and finalizes packet inputs by provided indexes.
// If no indexes provided, every not finalized input spendable by signer key is signed,
// others are left for later signers.
func (signer *Signer) SignPSBT(packet *psbt.Packet, inputs ...int) error {
	var (
		tx                   = packet.UnsignedTx
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return errors.Join(ErrSigning, fmt.Errorf("input %d: %w", idx, ErrMissingWitnessUTXO))
		}

		prevOutputFetcherMap[tx.TxIn[idx].PreviousOutPoint] = in.WitnessUtxo
	}

	explicit := len(inputs) != 0
	if !explicit {
		inputs = make([]int, len(packet.Inputs))
		for idx := range inputs {
			inputs[idx] = idx
		}
	}

	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap))
	for _, input := range inputs {
		if input < 0 || len(packet.Inputs) <= input {
			return errors.Join(ErrSigning, fmt.Errorf("%w: %d", ErrInvalidInputIndex, input))
		}
		if isFinalized(&packet.Inputs[input]) {
			continue
		}

		err := signer.signInput(signInputParams{
			packet:    packet,
			input:     input,
			sigHashes: sigHashes,
		})
		if !explicit && errors.Is(err, ErrKeyMismatch) {
			continue
		}
		if err != nil {
			return errors.Join(ErrSigning, fmt.Errorf("input %d: %w", input, err))
		}
	}

	return nil
}

// signInput signs input based on its previous output script type and finalizes it.
func (signer *Signer) signInput(params signInputParams) error {
	var (
		input    = &params.packet.Inputs[params.input]
		pkScript = input.WitnessUtxo.PkScript
	)

	switch {
	case len(input.TaprootLeafScript) != 0:
		return signer.signTapscriptInput(params)
	case txscript.IsPayToTaproot(pkScript):
		return signer.signTaprootKeyInput(params)
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return signer.signWitnessPubKeyHashInput(params, pkScript)
	case txscript.IsPayToScriptHash(pkScript) && txscript.IsPayToWitnessPubKeyHash(input.RedeemScript):
		return signer.signWitnessPubKeyHashInput(params, input.RedeemScript)
	case txscript.IsPayToPubKeyHash(pkScript):
		return signer.signPubKeyHashInput(params)
	default:
		return ErrUnsupportedScript
	}
}

// signTapscriptInput signs taproot input via script path of the first provided leaf.
func (signer *Signer) signTapscriptInput(params signInputParams) error {
	var (
		input   = &params.packet.Inputs[params.input]
		leaf    = input.TaprootLeafScript[0]
		xOnly   = schnorr.SerializePubKey(signer.PublicKey())
		tapLeaf = txscript.NewTapLeaf(leaf.LeafVersion, leaf.Script)
	)

	if !bytes.Contains(leaf.Script, xOnly) {
		return ErrKeyMismatch
	}

	sig, err := txscript.RawTxInTapscriptSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		input.WitnessUtxo.Value, input.WitnessUtxo.PkScript, tapLeaf,
		input.SighashType, signer.privateKey,
	)
	if err != nil {
		return err
	}

	return finalizeInput(input, wire.TxWitness{sig, leaf.Script, leaf.ControlBlock}, nil)
}

// signTaprootKeyInput signs taproot input via key path.
func (signer *Signer) signTaprootKeyInput(params signInputParams) error {
	var (
		input    = &params.packet.Inputs[params.input]
		pkScript = input.WitnessUtxo.PkScript
		xOnly    = schnorr.SerializePubKey(signer.PublicKey())
	)

	if len(input.TaprootInternalKey) != 0 && !bytes.Equal(input.TaprootInternalKey, xOnly) {
		return ErrKeyMismatch
	}

	outputKey := txscript.ComputeTaprootOutputKey(signer.PublicKey(), input.TaprootMerkleRoot)
	if !bytes.Equal(schnorr.SerializePubKey(outputKey), pkScript[2:]) {
		return ErrKeyMismatch
	}

	sig, err := txscript.RawTxInTaprootSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		input.WitnessUtxo.Value, pkScript, input.TaprootMerkleRoot,
		input.SighashType, signer.privateKey,
	)
	if err != nil {
		return err
	}

	return finalizeInput(input, wire.TxWitness{sig}, nil)
}

// signWitnessPubKeyHashInput signs native or nested into P2SH P2WPKH input.
func (signer *Signer) signWitnessPubKeyHashInput(params signInputParams, witnessProgram []byte) error {
	input := &params.packet.Inputs[params.input]
	if !bytes.Equal(witnessProgram[2:], btcutil.Hash160(signer.PublicKey().SerializeCompressed())) {
		return ErrKeyMismatch
	}

	witness, err := txscript.WitnessSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		input.WitnessUtxo.Value, witnessProgram, ecdsaSigHashType(input.SighashType),
		signer.privateKey, true,
	)
	if err != nil {
		return err
	}

	var sigScript []byte
	if len(input.RedeemScript) != 0 {
		sigScript, err = txscript.NewScriptBuilder().AddData(input.RedeemScript).Script()
		if err != nil {
			return err
		}
	}

	return finalizeInput(input, witness, sigScript)
}

// signPubKeyHashInput signs legacy P2PKH input.
func (signer *Signer) signPubKeyHashInput(params signInputParams) error {
	var (
		input    = &params.packet.Inputs[params.input]
		pkScript = input.WitnessUtxo.PkScript
	)

	// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
	if !bytes.Equal(pkScript[3:23], btcutil.Hash160(signer.PublicKey().SerializeCompressed())) {
		return ErrKeyMismatch
	}

	sigScript, err := txscript.SignatureScript(
		params.packet.UnsignedTx, params.input, pkScript,
		ecdsaSigHashType(input.SighashType), signer.privateKey, true,
	)
	if err != nil {
		return err
	}

	return finalizeInput(input, nil, sigScript)
}

// ecdsaSigHashType returns SigHashAll for unset sighash type, since SigHashDefault is taproot only.
func ecdsaSigHashType(sigHashType txscript.SigHashType) txscript.SigHashType {
	if sigHashType == txscript.SigHashDefault {
		return txscript.SigHashAll
	}

	return sigHashType
}
