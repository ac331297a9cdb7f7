// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/signer"
)

var (
	// ErrOutputBelowDust defines that output value would be below dust threshold.
	ErrOutputBelowDust = errors.New("output value is below dust threshold")
	// ErrNoChangeAddress defines that change output is needed but change address is not set.
	ErrNoChangeAddress = errors.New("change address is not set")
	// ErrNoOutputs defines that transaction has no outputs to adjust.
	ErrNoOutputs = errors.New("transaction has no outputs")
	// ErrNoSigner defines that operation needs signer, but it is not provided.
	ErrNoSigner = errors.New("signer is required")
)

// Input describes draft transaction input.
type Input struct {
	OutPoint wire.OutPoint
	Data     psbt.PInput   // previous output and signing data, or final witness for pre-signed inputs.
	UTXO     *bitcoin.UTXO // nil for synthetic and foreign inputs.
	Sequence *uint32       // overrides assembler sequence policy if set.
}

// value returns previous output value of the input.
func (in *Input) value() int64 {
	if in.Data.WitnessUtxo == nil {
		return 0
	}

	return in.Data.WitnessUtxo.Value
}

// Output describes draft transaction output.
type Output struct {
	Address  string // empty if output is added by script.
	PkScript []byte
	Value    int64 // in Satoshi.
}

// Assembler owns inputs and outputs of one draft transaction,
// tracks change output and converges fee in two passes.
// Assembler is not safe for concurrent use.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ primary      │ optional, inscription or reveal input  │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│   1 - n │ inputs       │ in order of addition                   │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - k │ outputs      │ in order of addition                   │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│     k+1 │ change       │ optional, always the last one          │
//	└─────────┴──────────────┴────────────────────────────────────────┘
type Assembler struct {
	cfg           Config
	networkParams *chaincfg.Params
	signer        Signer
	feeRate       int64
	rbf           bool

	primary  *Input
	inputs   []*Input
	outputs  []*Output
	change   *Output
	changeTo *Output // change destination template.
}

// NewAssembler is a constructor for Assembler with config fee rate and rbf policy.
func NewAssembler(cfg Config, signer Signer) (*Assembler, error) {
	networkParams, err := cfg.ChainParams()
	if err != nil {
		return nil, err
	}

	return &Assembler{
		cfg:           cfg,
		networkParams: networkParams,
		signer:        signer,
		feeRate:       cfg.FeeRate,
		rbf:           !cfg.NoRBF,
	}, nil
}

// FeeRate returns assembler fee rate in satoshi per virtual byte.
func (a *Assembler) FeeRate() int64 {
	return a.feeRate
}

// AddInput appends input spending provided utxo, signing data is prepared by utxo address type.
func (a *Assembler) AddInput(utxo *bitcoin.UTXO) error {
	input, err := a.newInput(utxo)
	if err != nil {
		return err
	}

	a.inputs = append(a.inputs, input)

	return nil
}

// SetPrimaryInput sets input which is always placed at index 0.
func (a *Assembler) SetPrimaryInput(utxo *bitcoin.UTXO) error {
	input, err := a.newInput(utxo)
	if err != nil {
		return err
	}

	a.primary = input

	return nil
}

// AddRawInput appends already prepared input.
func (a *Assembler) AddRawInput(input *Input) {
	a.inputs = append(a.inputs, input)
}

// SetPrimaryRawInput sets already prepared input which is always placed at index 0.
func (a *Assembler) SetPrimaryRawInput(input *Input) {
	a.primary = input
}

// newInput returns input for provided utxo prepared for assembler signer key.
func (a *Assembler) newInput(utxo *bitcoin.UTXO) (*Input, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("%w: to spend utxos", ErrNoSigner)
	}

	builder, err := NewPSBTInputBuilder(a.signer.PublicKey(), utxo.AddressType)
	if err != nil {
		return nil, err
	}

	return builder.NewInput(utxo)
}

// AddOutput appends output paying to provided address.
func (a *Assembler) AddOutput(address string, value int64) error {
	output, err := a.newOutput(address, value)
	if err != nil {
		return err
	}

	a.outputs = append(a.outputs, output)

	return nil
}

// AddOutputScript appends output paying to provided script.
func (a *Assembler) AddOutputScript(pkScript []byte, value int64) {
	a.outputs = append(a.outputs, &Output{PkScript: pkScript, Value: value})
}

// newOutput decodes address into output.
func (a *Assembler) newOutput(address string, value int64) (*Output, error) {
	addr, err := btcutil.DecodeAddress(address, a.networkParams)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(a.networkParams) {
		return nil, fmt.Errorf("address %s is not for %s network", address, a.networkParams.Name)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &Output{Address: address, PkScript: pkScript, Value: value}, nil
}

// Outputs returns draft outputs without change.
func (a *Assembler) Outputs() []*Output {
	return a.outputs
}

// SetChangeAddress sets destination of the change output.
func (a *Assembler) SetChangeAddress(address string) error {
	output, err := a.newOutput(address, 0)
	if err != nil {
		return err
	}

	a.changeTo = output

	return nil
}

// AddChangeOutput adds (or replaces) change output with provided value.
func (a *Assembler) AddChangeOutput(value int64) error {
	if a.changeTo == nil {
		return ErrNoChangeAddress
	}

	a.change = &Output{Address: a.changeTo.Address, PkScript: a.changeTo.PkScript, Value: value}

	return nil
}

// RemoveChangeOutput removes change output if any.
func (a *Assembler) RemoveChangeOutput() {
	a.change = nil
}

// ChangeOutput returns change output, nil if there is none.
func (a *Assembler) ChangeOutput() *Output {
	return a.change
}

// TotalInput returns sum of input values in satoshi.
func (a *Assembler) TotalInput() int64 {
	var total int64
	for _, input := range a.allInputs() {
		total += input.value()
	}

	return total
}

// TotalOutput returns sum of output values including change in satoshi.
func (a *Assembler) TotalOutput() int64 {
	var total int64
	for _, output := range a.allOutputs() {
		total += output.Value
	}

	return total
}

// Unspent returns total input minus total output, may be negative.
func (a *Assembler) Unspent() int64 {
	return a.TotalInput() - a.TotalOutput()
}

// allInputs returns inputs in transaction order.
func (a *Assembler) allInputs() []*Input {
	if a.primary == nil {
		return a.inputs
	}

	return append([]*Input{a.primary}, a.inputs...)
}

// allOutputs returns outputs in transaction order.
func (a *Assembler) allOutputs() []*Output {
	if a.change == nil {
		return a.outputs
	}

	return append(append(make([]*Output, 0, len(a.outputs)+1), a.outputs...), a.change)
}

// sequence returns input sequence by rbf policy.
func (a *Assembler) sequence(input *Input) uint32 {
	switch {
	case input.Sequence != nil:
		return *input.Sequence
	case a.rbf:
		return rbfSequence
	default:
		return wire.MaxTxInSequenceNum
	}
}

// Packet returns unsigned draft as psbt packet.
func (a *Assembler) Packet() (*psbt.Packet, error) {
	var (
		inputs    = a.allInputs()
		outputs   = a.allOutputs()
		outPoints = make([]*wire.OutPoint, len(inputs))
		sequences = make([]uint32, len(inputs))
		txOuts    = make([]*wire.TxOut, len(outputs))
	)
	for idx, input := range inputs {
		outPoint := input.OutPoint
		outPoints[idx] = &outPoint
		sequences[idx] = a.sequence(input)
	}
	for idx, output := range outputs {
		txOuts[idx] = wire.NewTxOut(output.Value, output.PkScript)
	}

	packet, err := psbt.New(outPoints, txOuts, txVersion, 0, sequences)
	if err != nil {
		return nil, err
	}

	for idx, input := range inputs {
		packet.Inputs[idx] = input.Data
	}

	return packet, nil
}

// Sign returns draft signed and finalized by assembler signer.
func (a *Assembler) Sign() (*psbt.Packet, error) {
	packet, err := a.Packet()
	if err != nil {
		return nil, err
	}

	if a.signer != nil {
		err = a.signer.SignPSBT(packet)
		if err != nil {
			return nil, err
		}
	}

	return packet, nil
}

// EstimateFee signs disposable copy of the draft and returns its fee by assembler fee rate.
func (a *Assembler) EstimateFee() (int64, error) {
	packet, err := a.Sign()
	if err != nil {
		return 0, err
	}

	return EstimateFee(packet, a.feeRate)
}

// IsDust returns true if value is below dust threshold for provided output script.
func (a *Assembler) IsDust(value int64, pkScript []byte) bool {
	return isDust(a.cfg, value, pkScript)
}

// EstimateThenFinalize converges fee in two passes and returns signed transaction.
// At first, fully signed draft with provisional change is measured and discarded.
// Then change is re-added if it is not dust, otherwise the remainder goes to fee.
// If inputs do not cover outputs and fee, the first output is reduced by the shortfall
// when autoAdjust is set, otherwise InsufficientError is returned.
// Result fee equals EstimateFee of the final packet when change is kept, and exceeds it
// by the absorbed remainder otherwise. ECDSA signatures are estimated at the longest DER
// length, so such inputs may overpay by a fraction of a virtual byte each.
func (a *Assembler) EstimateThenFinalize(autoAdjust bool) (*Result, error) {
	unspent := a.Unspent()
	if a.changeTo != nil {
		if err := a.AddChangeOutput(max(unspent, 0)); err != nil {
			return nil, err
		}
	}

	fee, err := a.EstimateFee()
	a.RemoveChangeOutput()
	if err != nil {
		return nil, err
	}

	switch {
	case unspent > fee:
		left := unspent - fee
		if a.changeTo != nil && !a.IsDust(left, a.changeTo.PkScript) {
			if err = a.AddChangeOutput(left); err != nil {
				return nil, err
			}

			log.Debugf("change output of %d sats added, fee %d sats", left, fee)
		} else {
			log.Debugf("remainder of %d sats absorbed by fee %d sats", left, fee)
		}
	case unspent < fee && autoAdjust:
		if err = a.reduceFirstOutput(fee - unspent); err != nil {
			return nil, err
		}
	case unspent < fee:
		return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, a.TotalOutput()+fee, a.TotalInput())
	}

	return a.finalize()
}

// reduceFirstOutput reduces the first output by provided amount.
func (a *Assembler) reduceFirstOutput(amount int64) error {
	if len(a.outputs) == 0 {
		return ErrNoOutputs
	}

	first := a.outputs[0]
	if first.Value-amount < 0 || a.IsDust(first.Value-amount, first.PkScript) {
		return fmt.Errorf("%w: %d - %d", ErrOutputBelowDust, first.Value, amount)
	}

	log.Debugf("first output reduced by %d sats to pay fee", amount)
	first.Value -= amount

	return nil
}

// finalize signs draft and returns result, all inputs must be finalized.
func (a *Assembler) finalize() (*Result, error) {
	packet, err := a.Sign()
	if err != nil {
		return nil, err
	}

	tx, err := signer.Extract(packet)
	if err != nil {
		return nil, err
	}

	log.Tracef("finalized transaction: %v", spewClosure(tx))

	return &Result{
		Packet:  packet,
		Tx:      tx,
		Fee:     a.Unspent(),
		FeeRate: a.feeRate,
	}, nil
}
