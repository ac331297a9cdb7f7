// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/signer"
)

// dummyUTXOsCount defines how many dummy utxos buyer needs for single purchase.
const dummyUTXOsCount = 2

// DummyUTXOsParams describes data needed to build transaction creating buyer dummy utxos.
type DummyUTXOsParams struct {
	UTXOs         []bitcoin.UTXO // spent from the end, inscription-bearing utxos are skipped.
	Address       string         // receives dummy utxos.
	ChangeAddress string         // dummy address if not set.
	FeeRate       int64          // in Satoshi per virtual byte, config fee rate if not set.
	Signer        Signer
}

// BuildDummyUTXOs constructs and signs transaction creating two dummy utxos for offer purchase.
// Returns not spent utxos in original order.
//
//	Tx struct
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - 1 │ dummy        │ dummy utxo value each                  │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ change       │ optional, if not dust                  │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildDummyUTXOs(params DummyUTXOsParams) (*Result, []bitcoin.UTXO, error) {
	changeAddress := params.ChangeAddress
	if changeAddress == "" {
		changeAddress = params.Address
	}

	a := b.newAssembler(params.Signer, params.FeeRate, !b.cfg.NoRBF)
	err := a.SetChangeAddress(changeAddress)
	if err != nil {
		return nil, nil, err
	}

	for range dummyUTXOsCount {
		err = a.AddOutput(params.Address, b.cfg.DummyUTXOValue)
		if err != nil {
			return nil, nil, err
		}
	}

	var (
		fee       = a.FeeRate() * b.cfg.DummyTxAssumedSize
		need      = a.TotalOutput() + fee
		remaining = append([]bitcoin.UTXO{}, params.UTXOs...)
	)
	for a.TotalInput() < need {
		var utxo bitcoin.UTXO
		utxo, remaining, err = popUTXO(remaining)
		if err != nil {
			return nil, nil, NewInsufficientError(InsufficientErrorTypeDummy, need, a.TotalInput())
		}

		err = a.AddInput(&utxo)
		if err != nil {
			return nil, nil, err
		}
	}

	if left := a.TotalInput() - need; !a.IsDust(left, a.changeTo.PkScript) {
		err = a.AddChangeOutput(left)
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := a.finalize()
	if err != nil {
		return nil, nil, err
	}

	b.dump("dummy utxos", result)

	return result, remaining, nil
}

// popUTXO removes the last plain utxo from the list, inscription-bearing utxos stay in place.
func popUTXO(utxos []bitcoin.UTXO) (bitcoin.UTXO, []bitcoin.UTXO, error) {
	for idx := len(utxos) - 1; idx >= 0; idx-- {
		if !utxos[idx].IsPlain() {
			continue
		}

		utxo := utxos[idx]

		return utxo, append(utxos[:idx], utxos[idx+1:]...), nil
	}

	return bitcoin.UTXO{}, utxos, bitcoin.ErrInsufficientNativeBalance
}

// plainUTXOs returns copy of plain utxos of the list.
func plainUTXOs(utxos []bitcoin.UTXO) []bitcoin.UTXO {
	plain, _ := ClassifyUTXOs(utxos)

	return plain
}

// SelectDummyUTXOs returns the first two plain utxos not exceeding max value as dummies,
// and all the others as rest preserving order.
func SelectDummyUTXOs(utxos []bitcoin.UTXO, maxValue int64) (dummies, rest []bitcoin.UTXO) {
	for _, utxo := range utxos {
		if len(dummies) < dummyUTXOsCount && utxo.IsPlain() && utxo.Amount <= maxValue {
			dummies = append(dummies, utxo)
			continue
		}

		rest = append(rest, utxo)
	}

	return dummies, rest
}

// DummyUTXOsFromSignedPSBT returns dummy utxos created by fully signed result of BuildDummyUTXOs.
func (b *TxBuilder) DummyUTXOsFromSignedPSBT(packetHex string) ([]bitcoin.UTXO, error) {
	packet, err := parsePSBT(packetHex)
	if err != nil {
		return nil, err
	}

	tx, err := signer.Extract(packet)
	if err != nil {
		return nil, err
	}

	if len(tx.TxOut) < dummyUTXOsCount {
		return nil, fmt.Errorf("transaction has %d outputs, at least %d expected", len(tx.TxOut), dummyUTXOsCount)
	}

	txHash := tx.TxHash()
	dummies := make([]bitcoin.UTXO, dummyUTXOsCount)
	for idx := range dummies {
		output := tx.TxOut[idx]
		addressType, err := bitcoin.AddressTypeFromScript(output.PkScript)
		if err != nil {
			return nil, err
		}

		_, addresses, _, err := txscript.ExtractPkScriptAddrs(output.PkScript, b.networkParams)
		if err != nil {
			return nil, err
		}
		if len(addresses) != 1 {
			return nil, errors.New("dummy output script has no single address")
		}

		dummies[idx] = bitcoin.UTXO{
			TxHash:      txHash.String(),
			Index:       uint32(idx),
			Amount:      output.Value,
			Script:      output.PkScript,
			Address:     addresses[0].EncodeAddress(),
			AddressType: addressType,
		}
	}

	return dummies, nil
}
