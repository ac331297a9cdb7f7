// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// rbfSequence defines input sequence signaling replace-by-fee.
	rbfSequence uint32 = wire.MaxTxInSequenceNum - 2
	// offerSigHashType defines signature hash type of the seller input of the offer.
	offerSigHashType = txscript.SigHashSingle | txscript.SigHashAnyOneCanPay
)

// Signer describes signing collaborator of the builders.
// Implementations sign and finalize inputs spendable by their key and leave others untouched.
type Signer interface {
	// PublicKey returns public key the signer signs with.
	PublicKey() *btcec.PublicKey
	// SignPSBT signs and finalizes inputs by provided indexes, all spendable inputs if none.
	SignPSBT(packet *psbt.Packet, inputs ...int) error
}

// Receiver describes payment output.
type Receiver struct {
	Address string
	Amount  int64 // in Satoshi.
}

// Result describes built transaction.
type Result struct {
	Packet  *psbt.Packet
	Tx      *wire.MsgTx // nil for partially signed packets.
	Fee     int64       // total input minus total output in Satoshi.
	FeeRate int64       // in Satoshi per virtual byte.
}

// TxHex returns serialized final transaction with witness data as hex string.
func (r *Result) TxHex() (string, error) {
	w := bytes.NewBuffer(make([]byte, 0, r.Tx.SerializeSize()))
	err := r.Tx.Serialize(w)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(w.Bytes()), nil
}

// PSBTHex returns serialized packet as hex string.
func (r *Result) PSBTHex() (string, error) {
	return serializePSBT(r.Packet)
}

// serializePSBT returns serialized packet as hex string.
func serializePSBT(packet *psbt.Packet) (string, error) {
	w := bytes.NewBuffer(nil)
	err := packet.Serialize(w)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(w.Bytes()), nil
}

// parsePSBT parses packet from hex string.
func parsePSBT(packetHex string) (*psbt.Packet, error) {
	data, err := hex.DecodeString(packetHex)
	if err != nil {
		return nil, err
	}

	return psbt.NewFromRawBytes(bytes.NewReader(data), false)
}

// TxBuilder provides transaction building related logic.
type TxBuilder struct {
	cfg           Config
	networkParams *chaincfg.Params
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(cfg Config) (*TxBuilder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	networkParams, _ := cfg.ChainParams()

	return &TxBuilder{
		cfg:           cfg,
		networkParams: networkParams,
	}, nil
}

// Config returns builder config.
func (b *TxBuilder) Config() Config {
	return b.cfg
}

// newAssembler returns assembler with builder config and provided fee rate and rbf signaling.
func (b *TxBuilder) newAssembler(signer Signer, feeRate int64, rbf bool) *Assembler {
	return &Assembler{
		cfg:           b.cfg,
		networkParams: b.networkParams,
		signer:        signer,
		feeRate:       b.cfg.feeRateOrDefault(feeRate),
		rbf:           rbf,
	}
}

// dump logs human readable transaction summary if enabled.
func (b *TxBuilder) dump(title string, result *Result) {
	if !b.cfg.Dump {
		return
	}

	log.Infof("%s\n%v", title, newLogClosure(func() string {
		return Dump(result, b.networkParams)
	}))
}
