// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/ord/inscriptions"
)

var (
	// ErrEnvelopeAlreadySet defines that reveal envelope can be set only once.
	ErrEnvelopeAlreadySet = errors.New("envelope is already set")
	// ErrRevealNotReady defines that reveal envelope or commit input is not set.
	ErrRevealNotReady = errors.New("reveal envelope or commit input is not set")
)

// Reveal builds transaction spending commit output via envelope script path.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ commit       │ commitment output, script path         │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - n │ outputs      │ the first one receives the inscription │
//	└─────────┴──────────────┴────────────────────────────────────────┘
type Reveal struct {
	a          *Assembler
	commitment *inscriptions.Commitment
}

// NewReveal is a constructor for Reveal, signer key locks the envelope.
func (b *TxBuilder) NewReveal(signer Signer, feeRate int64) *Reveal {
	return &Reveal{a: b.newAssembler(signer, feeRate, !b.cfg.NoRBF)}
}

// SetEnvelope derives commitment of the envelope, can be called once.
func (r *Reveal) SetEnvelope(envelope *inscriptions.Envelope) error {
	if r.commitment != nil {
		return ErrEnvelopeAlreadySet
	}
	if r.a.signer == nil {
		return fmt.Errorf("%w: to commit envelope", ErrNoSigner)
	}

	commitment, err := envelope.Commit(r.a.signer.PublicKey(), r.a.networkParams)
	if err != nil {
		return err
	}

	r.commitment = commitment

	return nil
}

// Commitment returns envelope commitment, nil until envelope is set.
func (r *Reveal) Commitment() *inscriptions.Commitment {
	return r.commitment
}

// SetCommitInput sets commit output of provided value as the reveal input.
func (r *Reveal) SetCommitInput(outPoint wire.OutPoint, value int64) error {
	if r.commitment == nil {
		return ErrRevealNotReady
	}

	input := &Input{OutPoint: outPoint}
	err := r.commitment.PrepareInput(&input.Data, value)
	if err != nil {
		return err
	}

	r.a.SetPrimaryRawInput(input)

	return nil
}

// AddOutput appends reveal output paying to provided address.
func (r *Reveal) AddOutput(address string, value int64) error {
	return r.a.AddOutput(address, value)
}

// EstimateFee returns reveal fee by signed draft, commit input value is not relevant.
func (r *Reveal) EstimateFee() (int64, error) {
	if r.commitment == nil || r.a.primary == nil {
		return 0, ErrRevealNotReady
	}

	return r.a.EstimateFee()
}

// Build signs reveal, commit input must cover outputs and fee.
// The whole remainder goes to fee, reveal has no change.
func (r *Reveal) Build() (*Result, error) {
	fee, err := r.EstimateFee()
	if err != nil {
		return nil, err
	}

	if unspent := r.a.Unspent(); unspent < fee {
		return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, r.a.TotalOutput()+fee, r.a.TotalInput()).setCauser(CauserSender)
	} else if unspent > fee {
		log.Debugf("reveal overpays fee by %d sats", unspent-fee)
	}

	return r.a.finalize()
}

// RevealParams describes data needed to build reveal transaction for existing commit output.
type RevealParams struct {
	ContentType    string
	Content        []byte
	CommitOutPoint wire.OutPoint
	CommitValue    int64  // in Satoshi.
	ToAddress      string // receives the inscription.
	FeeRate        int64  // in Satoshi per virtual byte, config fee rate if not set.
	Signer         Signer // must be the one the commitment was derived with.
}

// BuildReveal constructs and signs reveal transaction, inscription output value is
// configured inscription value.
func (b *TxBuilder) BuildReveal(params RevealParams) (*Result, error) {
	envelope, err := inscriptions.NewEnvelope(inscriptions.DefaultTag, params.ContentType, params.Content, b.cfg.MaxInscriptionSize)
	if err != nil {
		return nil, err
	}

	reveal, err := b.prepareReveal(params.Signer, params.FeeRate, envelope, params.ToAddress, params.CommitOutPoint, params.CommitValue)
	if err != nil {
		return nil, err
	}

	result, err := reveal.Build()
	if err != nil {
		return nil, err
	}

	b.dump("reveal", result)

	return result, nil
}

// prepareReveal returns reveal ready to build.
func (b *TxBuilder) prepareReveal(signer Signer, feeRate int64, envelope *inscriptions.Envelope, toAddress string,
	commitOutPoint wire.OutPoint, commitValue int64) (*Reveal, error) {
	reveal := b.NewReveal(signer, feeRate)
	err := reveal.SetEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	err = reveal.SetCommitInput(commitOutPoint, commitValue)
	if err != nil {
		return nil, err
	}

	err = reveal.AddOutput(toAddress, b.cfg.InscriptionValue)
	if err != nil {
		return nil, err
	}

	return reveal, nil
}

// InscribeParams describes data needed to inscribe content.
type InscribeParams struct {
	UTXOs         []bitcoin.UTXO // fund commit, inscription-bearing utxos are never spent.
	ContentType   string
	Content       []byte
	ToAddress     string // receives the inscription.
	ChangeAddress string
	FeeRate       int64     // in Satoshi per virtual byte, config fee rate if not set.
	Commission    *Receiver // optional, paid by commit transaction.
	Signer        Signer
}

// InscribeResult describes commit and reveal transactions pair.
type InscribeResult struct {
	Commit        *Result
	Reveal        *Result
	Commitment    *inscriptions.Commitment
	InscriptionID *inscriptions.ID
}

// BuildInscribe constructs and signs commit and reveal transactions. Reveal fee is measured
// on the phantom reveal first, so the commit output exactly covers inscription value and reveal fee.
//
//	Commit tx struct
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ commitment   │ reveal fee + inscription value         │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ commission   │ optional                               │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│     1-2 │ change       │ optional, if not dust                  │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildInscribe(params InscribeParams) (*InscribeResult, error) {
	envelope, err := inscriptions.NewEnvelope(inscriptions.DefaultTag, params.ContentType, params.Content, b.cfg.MaxInscriptionSize)
	if err != nil {
		return nil, err
	}

	phantom, err := b.prepareReveal(params.Signer, params.FeeRate, envelope, params.ToAddress,
		wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}, b.cfg.InscriptionValue)
	if err != nil {
		return nil, err
	}

	revealFee, err := phantom.EstimateFee()
	if err != nil {
		return nil, err
	}

	commitAmount := revealFee + b.cfg.InscriptionValue
	log.Debugf("phantom reveal fee %d sats, commit amount %d sats", revealFee, commitAmount)

	receivers := []Receiver{{Address: phantom.Commitment().Address.EncodeAddress(), Amount: commitAmount}}
	if params.Commission != nil {
		receivers = append(receivers, *params.Commission)
	}

	commit, err := b.BuildMultiPayment(MultiPaymentParams{
		UTXOs:         params.UTXOs,
		Receivers:     receivers,
		ChangeAddress: params.ChangeAddress,
		FeeRate:       params.FeeRate,
		Signer:        params.Signer,
		noRBF:         true,
	})
	if err != nil {
		return nil, err
	}

	reveal, err := b.prepareReveal(params.Signer, params.FeeRate, envelope, params.ToAddress,
		wire.OutPoint{Hash: commit.Tx.TxHash(), Index: 0}, commitAmount)
	if err != nil {
		return nil, err
	}

	revealResult, err := reveal.Build()
	if err != nil {
		return nil, err
	}

	b.dump("reveal", revealResult)

	return &InscribeResult{
		Commit:        commit,
		Reveal:        revealResult,
		Commitment:    reveal.Commitment(),
		InscriptionID: inscriptions.NewRevealID(revealResult.Tx.TxHash()),
	}, nil
}
