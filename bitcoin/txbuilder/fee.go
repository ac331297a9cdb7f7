// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/BoostyLabs/ordtx/bitcoin/signer"
)

const (
	// witnessScaleFactor defines how many times base bytes weigh more than witness bytes.
	witnessScaleFactor = 4
	// maxECDSASigLen defines the longest DER signature with sighash type byte.
	maxECDSASigLen = 73
	// compressedPubKeyLen defines length of serialized compressed public key.
	compressedPubKeyLen = 33
)

// EstimateFee returns fee in satoshi for the draft by its serialized size with finalized
// witnesses discounted: ceil((size - 0.75 * witness) * feeRate).
// Draft should be signed to get realistic size, not finalized inputs are measured as is.
// ECDSA signatures are measured as the longest DER encoding, so the estimate does not
// depend on the signature length the signer happened to produce.
func EstimateFee(packet *psbt.Packet, feeRate int64) (int64, error) {
	tx, err := signer.ExtractTx(packet)
	if err != nil {
		return 0, err
	}

	var witnessLen, sigPadding, witnessSigPadding int64
	for idx, input := range packet.Inputs {
		witnessLen += int64(len(input.FinalScriptWitness))
		witnessSigPadding += ecdsaSigPadding(tx.TxIn[idx].Witness)

		if len(input.FinalScriptSig) != 0 {
			pushes, err := txscript.PushedData(input.FinalScriptSig)
			if err == nil {
				sigPadding += ecdsaSigPadding(pushes)
			}
		}
	}

	weight := witnessScaleFactor*int64(tx.SerializeSize()) - (witnessScaleFactor-1)*witnessLen
	weight += witnessScaleFactor*sigPadding + witnessSigPadding

	return ceilDiv(weight*feeRate, witnessScaleFactor), nil
}

// ecdsaSigPadding returns how many bytes the signature of <sig> <pubKey> pair lacks
// to the longest DER encoding, zero for other data.
func ecdsaSigPadding(items [][]byte) int64 {
	if len(items) != 2 || len(items[1]) != compressedPubKeyLen {
		return 0
	}

	sig := items[0]
	if len(sig) < 9 || len(sig) > maxECDSASigLen || sig[0] != 0x30 {
		return 0
	}

	return int64(maxECDSASigLen - len(sig))
}

// virtualSize returns transaction size in virtual bytes.
func virtualSize(tx *wire.MsgTx) int64 {
	weight := (witnessScaleFactor-1)*tx.SerializeSizeStripped() + tx.SerializeSize()

	return ceilDiv(int64(weight), witnessScaleFactor)
}

// ceilDiv returns division result with ceil function applied.
func ceilDiv(divided, divisor int64) int64 {
	quotient := divided / divisor
	if divided%divisor != 0 {
		quotient++
	}

	return quotient
}

// isDust returns true if output value is below dust threshold by config policy.
func isDust(cfg Config, value int64, pkScript []byte) bool {
	if cfg.DustPolicy == DustPolicyRelay {
		return txrules.IsDustOutput(wire.NewTxOut(value, pkScript), txrules.DefaultRelayFeePerKb)
	}

	return value < cfg.DustThreshold
}
