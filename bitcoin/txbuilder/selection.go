// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/BoostyLabs/ordtx/bitcoin"
)

// ClassifyUTXOs splits utxos into plain and inscription-bearing ones preserving order.
func ClassifyUTXOs(utxos []bitcoin.UTXO) (plain, inscribed []bitcoin.UTXO) {
	for _, utxo := range utxos {
		if utxo.IsPlain() {
			plain = append(plain, utxo)
		} else {
			inscribed = append(inscribed, utxo)
		}
	}

	return plain, inscribed
}

// SelectInputs adds plain utxos to assembler in provided order until total input covers
// required output value plus estimated fee. Utxos are added without fee estimation
// while total input is below required value.
func SelectInputs(plain []bitcoin.UTXO, required int64, a *Assembler) error {
	if len(plain) == 0 {
		if required > 0 {
			return NewInsufficientError(InsufficientErrorTypeBitcoin, required, a.TotalInput())
		}

		return nil
	}

	for idx := range plain {
		total := a.TotalInput()
		if total >= required {
			fee, err := a.EstimateFee()
			if err != nil {
				return err
			}

			if total >= required+fee {
				break
			}
		}

		err := a.AddInput(&plain[idx])
		if err != nil {
			return err
		}

		log.Debugf("selected utxo %s:%d of %d sats", plain[idx].TxHash, plain[idx].Index, plain[idx].Amount)
	}

	if total := a.TotalInput(); total < required {
		return NewInsufficientError(InsufficientErrorTypeBitcoin, required, total)
	}

	return nil
}
