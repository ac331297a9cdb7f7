// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/BoostyLabs/ordtx/bitcoin"
)

var (
	// ErrInscriptionOffsetOutOfRange defines that inscription would leave the transfer output.
	ErrInscriptionOffsetOutOfRange = errors.New("inscription offset is out of output range")
	// ErrDuplicateInscription defines that the same inscription utxo is requested more than once.
	ErrDuplicateInscription = errors.New("inscription utxo is requested twice")
)

// PaymentParams describes data needed to build plain value payment transaction.
type PaymentParams struct {
	UTXOs           []bitcoin.UTXO // inscription-bearing utxos are never spent.
	ToAddress       string
	Amount          int64 // in Satoshi.
	ChangeAddress   string
	FeeRate         int64 // in Satoshi per virtual byte, config fee rate if not set.
	ReceiverPaysFee bool  // deduct fee from the receiver output.
	Signer          Signer
}

// MultiPaymentParams describes data needed to build plain value payment transaction with many receivers.
type MultiPaymentParams struct {
	UTXOs         []bitcoin.UTXO // inscription-bearing utxos are never spent.
	Receivers     []Receiver
	ChangeAddress string
	FeeRate       int64 // in Satoshi per virtual byte, config fee rate if not set.
	Signer        Signer

	noRBF bool
}

// InscriptionTransferParams describes data needed to build inscription transfer transaction.
type InscriptionTransferParams struct {
	UTXOs         []bitcoin.UTXO // both inscription-bearing and plain utxos.
	ToAddress     string
	InscriptionID string
	OutputValue   int64 // value of the transfer output in Satoshi, inscription utxo value if not set.
	ChangeAddress string
	FeeRate       int64 // in Satoshi per virtual byte, config fee rate if not set.
	Signer        Signer
}

// MultiInscriptionTransferParams describes data needed to build transaction transferring many inscriptions.
type MultiInscriptionTransferParams struct {
	UTXOs          []bitcoin.UTXO // both inscription-bearing and plain utxos.
	ToAddress      string
	InscriptionIDs []string
	ChangeAddress  string
	FeeRate        int64 // in Satoshi per virtual byte, config fee rate if not set.
	Signer         Signer
}

// BuildPayment constructs and signs plain value payment transaction.
//
//	Tx struct
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ payment      │ amount, minus fee if receiver pays it  │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, if not dust                  │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildPayment(params PaymentParams) (*Result, error) {
	a := b.newAssembler(params.Signer, params.FeeRate, !b.cfg.NoRBF)
	err := a.SetChangeAddress(params.ChangeAddress)
	if err != nil {
		return nil, err
	}

	err = a.AddOutput(params.ToAddress, params.Amount)
	if err != nil {
		return nil, err
	}

	plain, _ := ClassifyUTXOs(params.UTXOs)
	err = SelectInputs(plain, a.TotalOutput(), a)
	if err != nil {
		return nil, err
	}

	var result *Result
	if params.ReceiverPaysFee {
		result, err = b.receiverPaysFee(a)
	} else {
		result, err = a.EstimateThenFinalize(false)
	}
	if err != nil {
		return nil, err
	}

	b.dump("payment", result)

	return result, nil
}

// receiverPaysFee returns all unspent value as change and deducts fee from the first output.
func (b *TxBuilder) receiverPaysFee(a *Assembler) (*Result, error) {
	if unspent := a.Unspent(); !a.IsDust(unspent, a.changeTo.PkScript) {
		err := a.AddChangeOutput(unspent)
		if err != nil {
			return nil, err
		}
	}

	fee, err := a.EstimateFee()
	if err != nil {
		return nil, err
	}

	receiver := a.outputs[0]
	if receiver.Value-fee < 0 || a.IsDust(receiver.Value-fee, receiver.PkScript) {
		return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, fee, receiver.Value).setCauser(CauserReceiver)
	}
	receiver.Value -= fee

	return a.finalize()
}

// BuildMultiPayment constructs and signs plain value payment transaction with many receivers.
// Outputs follow receivers order, change output is the last one.
func (b *TxBuilder) BuildMultiPayment(params MultiPaymentParams) (*Result, error) {
	if len(params.Receivers) == 0 {
		return nil, ErrNoOutputs
	}

	a := b.newAssembler(params.Signer, params.FeeRate, !b.cfg.NoRBF && !params.noRBF)
	err := a.SetChangeAddress(params.ChangeAddress)
	if err != nil {
		return nil, err
	}

	for _, receiver := range params.Receivers {
		err = a.AddOutput(receiver.Address, receiver.Amount)
		if err != nil {
			return nil, err
		}
	}

	plain, _ := ClassifyUTXOs(params.UTXOs)
	err = SelectInputs(plain, a.TotalOutput(), a)
	if err != nil {
		return nil, err
	}

	result, err := a.EstimateThenFinalize(false)
	if err != nil {
		return nil, err
	}

	b.dump("multi payment", result)

	return result, nil
}

// BuildInscriptionTransfer constructs and signs transaction transferring single inscription.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ inscription  │ utxo holding exactly one inscription   │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│   1 - n │ plain        │ fee paying utxos                       │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ inscription  │ output value or inscription utxo value │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, if not dust                  │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildInscriptionTransfer(params InscriptionTransferParams) (*Result, error) {
	plain, inscribed := ClassifyUTXOs(params.UTXOs)
	inscriptionUTXO, err := findInscriptionUTXO(inscribed, params.InscriptionID)
	if err != nil {
		return nil, err
	}

	outputValue := params.OutputValue
	if outputValue <= 0 {
		outputValue = inscriptionUTXO.Amount
	}
	if offset := inscriptionUTXO.Inscriptions[0].Offset; offset >= uint64(outputValue) {
		return nil, fmt.Errorf("%w: offset %d, output value %d", ErrInscriptionOffsetOutOfRange, offset, outputValue)
	}

	a := b.newAssembler(params.Signer, params.FeeRate, !b.cfg.NoRBF)
	err = a.SetChangeAddress(params.ChangeAddress)
	if err != nil {
		return nil, err
	}

	err = a.SetPrimaryInput(inscriptionUTXO)
	if err != nil {
		return nil, err
	}

	err = a.AddOutput(params.ToAddress, outputValue)
	if err != nil {
		return nil, err
	}

	if len(plain) != 0 {
		err = SelectInputs(plain, a.TotalOutput(), a)
		if err != nil {
			return nil, err
		}
	}

	result, err := a.EstimateThenFinalize(false)
	if err != nil {
		return nil, err
	}

	b.dump("inscription transfer", result)

	return result, nil
}

// BuildMultiInscriptionTransfer constructs and signs transaction transferring many inscriptions,
// every inscription utxo gets own output of the same value in the same order.
func (b *TxBuilder) BuildMultiInscriptionTransfer(params MultiInscriptionTransferParams) (*Result, error) {
	if len(params.InscriptionIDs) == 0 {
		return nil, bitcoin.ErrInscriptionNotFound
	}

	plain, inscribed := ClassifyUTXOs(params.UTXOs)
	a := b.newAssembler(params.Signer, params.FeeRate, !b.cfg.NoRBF)
	err := a.SetChangeAddress(params.ChangeAddress)
	if err != nil {
		return nil, err
	}

	type outPoint struct {
		txHash string
		index  uint32
	}

	spent := make(map[outPoint]struct{}, len(params.InscriptionIDs))
	for _, id := range params.InscriptionIDs {
		inscriptionUTXO, err := findInscriptionUTXO(inscribed, id)
		if err != nil {
			return nil, err
		}

		key := outPoint{inscriptionUTXO.TxHash, inscriptionUTXO.Index}
		if _, ok := spent[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInscription, id)
		}
		spent[key] = struct{}{}

		err = a.AddInput(inscriptionUTXO)
		if err != nil {
			return nil, err
		}

		err = a.AddOutput(params.ToAddress, inscriptionUTXO.Amount)
		if err != nil {
			return nil, err
		}
	}

	if len(plain) != 0 {
		err = SelectInputs(plain, a.TotalOutput(), a)
		if err != nil {
			return nil, err
		}
	}

	result, err := a.EstimateThenFinalize(false)
	if err != nil {
		return nil, err
	}

	b.dump("multi inscription transfer", result)

	return result, nil
}

// findInscriptionUTXO returns utxo holding inscription with provided id.
func findInscriptionUTXO(inscribed []bitcoin.UTXO, id string) (*bitcoin.UTXO, error) {
	for idx := range inscribed {
		if !inscribed[idx].HasInscription(id) {
			continue
		}

		if len(inscribed[idx].Inscriptions) > 1 {
			return nil, fmt.Errorf("%w: %s:%d", bitcoin.ErrMultipleInscriptions, inscribed[idx].TxHash, inscribed[idx].Index)
		}

		return &inscribed[idx], nil
	}

	return nil, fmt.Errorf("%w: %s", bitcoin.ErrInscriptionNotFound, id)
}
