// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// ErrIncompletePSBT defines that some of the packet inputs are not finalized.
var ErrIncompletePSBT = errors.New("psbt is not fully signed")

// finalizeInput writes final witness and signature script, then clears partial signing data.
func finalizeInput(input *psbt.PInput, witness wire.TxWitness, sigScript []byte) error {
	if len(witness) != 0 {
		w := bytes.NewBuffer(nil)
		if err := psbt.WriteTxWitness(w, witness); err != nil {
			return err
		}

		input.FinalScriptWitness = w.Bytes()
	}
	input.FinalScriptSig = sigScript

	input.PartialSigs = nil
	input.SighashType = 0
	input.RedeemScript = nil
	input.WitnessScript = nil
	input.Bip32Derivation = nil
	input.TaprootKeySpendSig = nil
	input.TaprootScriptSpendSig = nil
	input.TaprootLeafScript = nil
	input.TaprootBip32Derivation = nil
	input.TaprootInternalKey = nil
	input.TaprootMerkleRoot = nil

	return nil
}

// isFinalized returns true if input already has final witness or signature script.
func isFinalized(input *psbt.PInput) bool {
	return len(input.FinalScriptWitness) != 0 || len(input.FinalScriptSig) != 0
}

// ParseWitness decodes serialized witness stack of a finalized input.
// Unlike psbt.Extract, items are not limited by the standard script size, so
// inscription envelopes of any allowed size can be extracted.
func ParseWitness(data []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(data)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > uint64(len(data)) {
		return nil, errors.New("witness items count exceeds data size")
	}

	witness := make(wire.TxWitness, count)
	for idx := range witness {
		witness[idx], err = wire.ReadVarBytes(r, 0, wire.MaxBlockPayload, "witness item")
		if err != nil {
			return nil, err
		}
	}

	if r.Len() != 0 {
		return nil, errors.New("unexpected data after witness items")
	}

	return witness, nil
}

// ExtractTx returns transaction with final data of every finalized input applied.
// Not finalized inputs are left empty, so it can be used to measure partially signed drafts.
func ExtractTx(packet *psbt.Packet) (*wire.MsgTx, error) {
	tx := packet.UnsignedTx.Copy()
	for idx, input := range packet.Inputs {
		if len(input.FinalScriptSig) != 0 {
			tx.TxIn[idx].SignatureScript = input.FinalScriptSig
		}

		if len(input.FinalScriptWitness) != 0 {
			witness, err := ParseWitness(input.FinalScriptWitness)
			if err != nil {
				return nil, err
			}

			tx.TxIn[idx].Witness = witness
		}
	}

	return tx, nil
}

// Extract returns fully signed transaction, fails if any input is not finalized.
func Extract(packet *psbt.Packet) (*wire.MsgTx, error) {
	if !packet.IsComplete() {
		return nil, ErrIncompletePSBT
	}

	return ExtractTx(packet)
}
