// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordtx/bitcoin"
	"github.com/BoostyLabs/ordtx/bitcoin/signer"
	"github.com/BoostyLabs/ordtx/bitcoin/utils"
)

var (
	// ErrInvalidOfferStructure defines that offer or merged buyer transaction breaks the offer layout.
	ErrInvalidOfferStructure = errors.New("invalid offer structure")
	// ErrNotEnoughDummyUTXOs defines that buyer has not provided exactly two dummy utxos.
	ErrNotEnoughDummyUTXOs = errors.New("exactly two dummy utxos are required")
)

// OfferPublicKey defines well-known key of the offer placeholder inputs and outputs.
// Nobody is expected to spend from it, buyer replaces every its occurrence.
const OfferPublicKey = "021bc91251f239f888706817e93e419f1532be84a1fc77166526902a36f6e8c707"

const (
	// sellerInputIndex defines index of the seller input and its paired output.
	sellerInputIndex = 2
	// commissionOutputIndex defines index of the optional commission output.
	commissionOutputIndex = 3
)

// placeholderOutPoints defines outpoints of the offer placeholder inputs.
var placeholderOutPoints = [2]wire.OutPoint{
	{Hash: chainhash.Hash{}, Index: 1},
	{Hash: chainhash.Hash{1}, Index: 2},
}

// offerKey and offerScript define parsed offer key and its BIP-86 taproot script.
var offerKey, offerScript = mustParseOfferKey(OfferPublicKey)

// mustParseOfferKey returns parsed key and its BIP-86 taproot script, panics on invalid key.
func mustParseOfferKey(keyHex string) (*btcec.PublicKey, []byte) {
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		panic(err)
	}

	key, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		panic(err)
	}

	script, err := utils.KeyPathTaprootScript(key)
	if err != nil {
		panic(err)
	}

	return key, script
}

// SellOfferParams describes data needed to build seller offer.
type SellOfferParams struct {
	UTXOs          []bitcoin.UTXO // seller utxos, the inscription one must be taproot.
	InscriptionID  string
	Price          int64 // in Satoshi.
	ReceiveAddress string
	Commission     *Receiver // optional.
	Signer         Signer
}

// BuildSellOffer builds and partially signs seller offer. Only the seller input is signed
// with SIGHASH_SINGLE|ANYONECANPAY, so the buyer can replace everything else except it
// and its paired output.
//
//	Offer struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ placeholder  │ offer key, value = price               │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ placeholder  │ offer key, value = price               │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ seller       │ inscription utxo, signed               │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ placeholder  │ offer key, value = 0                   │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ placeholder  │ offer key, value = inscription utxo    │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ seller       │ receive address, value = price         │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       3 │ commission   │ optional                               │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildSellOffer(params SellOfferParams) (*Result, error) {
	if params.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidOfferStructure)
	}

	_, inscribed := ClassifyUTXOs(params.UTXOs)
	inscriptionUTXO, err := findInscriptionUTXO(inscribed, params.InscriptionID)
	if err != nil {
		return nil, err
	}
	if inscriptionUTXO.AddressType != bitcoin.AddressTypeP2TR {
		return nil, fmt.Errorf("%w: offer requires %s inscription utxo, got %s",
			bitcoin.ErrUnsupportedAddressType, bitcoin.AddressTypeP2TR, inscriptionUTXO.AddressType)
	}

	a := b.newAssembler(params.Signer, 0, false)
	for _, outPoint := range placeholderOutPoints {
		input := &Input{OutPoint: outPoint}
		input.Data.WitnessUtxo = wire.NewTxOut(params.Price, offerScript)
		input.Data.TaprootInternalKey = schnorr.SerializePubKey(offerKey)
		a.AddRawInput(input)
	}

	sellerInput, err := a.newInput(inscriptionUTXO)
	if err != nil {
		return nil, err
	}
	sellerInput.Data.SighashType = offerSigHashType
	a.AddRawInput(sellerInput)

	a.AddOutputScript(offerScript, 0)
	a.AddOutputScript(offerScript, inscriptionUTXO.Amount)
	err = a.AddOutput(params.ReceiveAddress, params.Price)
	if err != nil {
		return nil, err
	}
	if params.Commission != nil {
		err = a.AddOutput(params.Commission.Address, params.Commission.Amount)
		if err != nil {
			return nil, err
		}
	}

	packet, err := a.Packet()
	if err != nil {
		return nil, err
	}

	err = params.Signer.SignPSBT(packet, sellerInputIndex)
	if err != nil {
		return nil, err
	}

	err = setInputIndexes(packet, PlaceholderInputsHelpingKey, 0, 1)
	if err != nil {
		return nil, err
	}
	err = setInputIndexes(packet, SellerInputsHelpingKey, sellerInputIndex)
	if err != nil {
		return nil, err
	}

	result := &Result{Packet: packet}
	b.dump("sell offer", result)

	return result, nil
}

// Offer describes parsed and validated seller offer.
type Offer struct {
	Packet           *psbt.Packet
	SellerOutPoint   wire.OutPoint
	SellerSequence   uint32
	SellerInput      psbt.PInput
	SellerOutput     *wire.TxOut // paired with the seller input, pays the price.
	Commission       *wire.TxOut // nil if offer has no commission.
	InscriptionValue int64       // value of the seller inscription utxo in Satoshi.
}

// Price returns offer price in satoshi.
func (o *Offer) Price() int64 {
	return o.SellerOutput.Value
}

// CommissionValue returns commission in satoshi, zero if there is none.
func (o *Offer) CommissionValue() int64 {
	if o.Commission == nil {
		return 0
	}

	return o.Commission.Value
}

// ParseOffer decodes hex offer and checks its layout and the seller signature.
func ParseOffer(offerHex string) (*Offer, error) {
	packet, err := parsePSBT(offerHex)
	if err != nil {
		return nil, errors.Join(ErrInvalidOfferStructure, err)
	}

	tx := packet.UnsignedTx
	if len(tx.TxIn) != 3 || len(tx.TxOut) < 3 || len(tx.TxOut) > 4 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrInvalidOfferStructure, len(tx.TxIn), len(tx.TxOut))
	}

	sellerInput := packet.Inputs[sellerInputIndex]
	if sellerInput.WitnessUtxo == nil || !txscript.IsPayToTaproot(sellerInput.WitnessUtxo.PkScript) {
		return nil, fmt.Errorf("%w: seller input is not taproot", ErrInvalidOfferStructure)
	}

	witness, err := signer.ParseWitness(sellerInput.FinalScriptWitness)
	if err != nil {
		return nil, errors.Join(ErrInvalidOfferStructure, err)
	}
	if len(witness) != 1 || len(witness[0]) != schnorr.SignatureSize+1 ||
		txscript.SigHashType(witness[0][schnorr.SignatureSize]) != offerSigHashType {
		return nil, fmt.Errorf("%w: seller input is not signed with single anyone can pay", ErrInvalidOfferStructure)
	}

	err = verifyInput(packet, sellerInputIndex)
	if err != nil {
		return nil, errors.Join(ErrInvalidOfferStructure, err)
	}

	offer := &Offer{
		Packet:           packet,
		SellerOutPoint:   tx.TxIn[sellerInputIndex].PreviousOutPoint,
		SellerSequence:   tx.TxIn[sellerInputIndex].Sequence,
		SellerInput:      sellerInput,
		SellerOutput:     tx.TxOut[sellerInputIndex],
		InscriptionValue: sellerInput.WitnessUtxo.Value,
	}
	if len(tx.TxOut) > commissionOutputIndex {
		offer.Commission = tx.TxOut[commissionOutputIndex]
	}

	return offer, nil
}

// verifyInput executes script of finalized input against the packet transaction.
func verifyInput(packet *psbt.Packet, inputIdx int) error {
	tx, err := signer.ExtractTx(packet)
	if err != nil {
		return err
	}

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	for idx, input := range packet.Inputs {
		if input.WitnessUtxo == nil {
			return fmt.Errorf("input %d: %w", idx, signer.ErrMissingWitnessUTXO)
		}

		prevOuts[tx.TxIn[idx].PreviousOutPoint] = input.WitnessUtxo
	}

	prevOut := packet.Inputs[inputIdx].WitnessUtxo
	prevFetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, inputIdx, txscript.StandardVerifyFlags,
		nil, txscript.NewTxSigHashes(tx, prevFetcher), prevOut.Value, prevFetcher,
	)
	if err != nil {
		return err
	}

	return vm.Execute()
}

// BuyOfferParams describes data needed to merge buyer funds into seller offer.
type BuyOfferParams struct {
	Offer          string           // hex encoded seller offer.
	DummyUTXOs     []bitcoin.UTXO   // exactly two buyer utxos of small value.
	UTXOs          []bitcoin.UTXO   // payment utxos, spent from the end.
	BuyerPublicKey *btcec.PublicKey // key of dummy and payment utxos.
	ReceiveAddress string           // receives the inscription and consolidated dummies.
	ChangeAddress  string           // receive address if not set.
	FeeRate        int64            // in Satoshi per virtual byte, config fee rate if not set.
}

// BuildBuyOffer merges buyer inputs into seller offer and returns unsigned buyer transaction.
// Buyer inputs are marked with helping keys for SignBuyOffer.
//
//	Tx struct
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - 1 │ dummy        │ buyer dummy utxos                      │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ seller       │ verbatim from the offer                │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│   3 - n │ payment      │ buyer utxos                            │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ dummy        │ sum of the dummy utxos to buyer        │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ inscription  │ inscription utxo value to buyer        │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       2 │ seller       │ verbatim from the offer                │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       3 │ commission   │ optional, verbatim from the offer      │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│     3-4 │ change       │ optional, above offer change threshold │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildBuyOffer(params BuyOfferParams) (*Result, error) {
	offer, err := ParseOffer(params.Offer)
	if err != nil {
		return nil, err
	}

	if len(params.DummyUTXOs) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughDummyUTXOs, len(params.DummyUTXOs))
	}

	changeAddress := params.ChangeAddress
	if changeAddress == "" {
		changeAddress = params.ReceiveAddress
	}

	a := b.newAssembler(nil, params.FeeRate, !b.cfg.NoRBF)
	err = a.SetChangeAddress(changeAddress)
	if err != nil {
		return nil, err
	}

	var dummyValue int64
	for idx := range params.DummyUTXOs {
		dummy := &params.DummyUTXOs[idx]
		if !dummy.IsPlain() {
			return nil, fmt.Errorf("%w: dummy utxo %s:%d holds inscription", ErrNotEnoughDummyUTXOs, dummy.TxHash, dummy.Index)
		}

		input, err := newBuyerInput(params.BuyerPublicKey, dummy)
		if err != nil {
			return nil, err
		}

		a.AddRawInput(input)
		dummyValue += dummy.Amount
	}

	sequence := offer.SellerSequence
	a.AddRawInput(&Input{
		OutPoint: offer.SellerOutPoint,
		Data: psbt.PInput{
			WitnessUtxo:        offer.SellerInput.WitnessUtxo,
			FinalScriptWitness: offer.SellerInput.FinalScriptWitness,
		},
		Sequence: &sequence,
	})

	err = a.AddOutput(params.ReceiveAddress, dummyValue)
	if err != nil {
		return nil, err
	}
	err = a.AddOutput(params.ReceiveAddress, offer.InscriptionValue)
	if err != nil {
		return nil, err
	}
	a.AddOutputScript(offer.SellerOutput.PkScript, offer.SellerOutput.Value)
	if offer.Commission != nil {
		a.AddOutputScript(offer.Commission.PkScript, offer.Commission.Value)
	}

	var (
		cost      = offer.Price() + offer.CommissionValue() + a.FeeRate()*b.cfg.OfferAssumedSize
		covered   int64
		remaining = plainUTXOs(params.UTXOs)
		payments  []int
	)
	for covered < cost {
		var utxo bitcoin.UTXO
		utxo, remaining, err = popUTXO(remaining)
		if err != nil {
			return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, cost, covered).setCauser(CauserBuyer)
		}

		input, err := newBuyerInput(params.BuyerPublicKey, &utxo)
		if err != nil {
			return nil, err
		}

		payments = append(payments, len(a.inputs))
		a.AddRawInput(input)
		covered += utxo.Amount
	}

	if left := covered - cost; left > b.cfg.OfferChangeThreshold {
		err = a.AddChangeOutput(left)
		if err != nil {
			return nil, err
		}
	}

	packet, err := a.Packet()
	if err != nil {
		return nil, err
	}

	err = setInputIndexes(packet, DummyInputsHelpingKey, 0, 1)
	if err != nil {
		return nil, err
	}
	err = setInputIndexes(packet, SellerInputsHelpingKey, sellerInputIndex)
	if err != nil {
		return nil, err
	}
	err = setInputIndexes(packet, PaymentInputsHelpingKey, payments...)
	if err != nil {
		return nil, err
	}

	err = VerifyOfferMerge(offer, packet)
	if err != nil {
		return nil, err
	}

	log.Debugf("offer merged with %d payment inputs, price %d, fee %d sats", len(payments), offer.Price(), a.Unspent())

	result := &Result{Packet: packet, Fee: a.Unspent(), FeeRate: a.FeeRate()}
	b.dump("buy offer", result)

	return result, nil
}

// newBuyerInput returns unsigned buyer input signed later with default signature hash type.
func newBuyerInput(pubKey *btcec.PublicKey, utxo *bitcoin.UTXO) (*Input, error) {
	if pubKey == nil {
		return nil, errors.Join(ErrPSBTInputBuilder, errors.New("buyer public key is required"))
	}

	builder, err := NewPSBTInputBuilder(pubKey, utxo.AddressType)
	if err != nil {
		return nil, err
	}

	return builder.NewInput(utxo)
}

// VerifyOfferMerge checks that merged transaction keeps everything the seller signature
// commits to, and that the inscription flows into the buyer output.
func VerifyOfferMerge(offer *Offer, merged *psbt.Packet) error {
	var (
		offerTx  = offer.Packet.UnsignedTx
		mergedTx = merged.UnsignedTx
	)

	switch {
	case len(mergedTx.TxIn) < 3 || len(mergedTx.TxOut) < 3:
		return fmt.Errorf("%w: merged transaction is too short", ErrInvalidOfferStructure)
	case mergedTx.Version != offerTx.Version || mergedTx.LockTime != offerTx.LockTime:
		return fmt.Errorf("%w: version or lock time differs", ErrInvalidOfferStructure)
	}

	var (
		sellerTxIn  = mergedTx.TxIn[sellerInputIndex]
		sellerInput = merged.Inputs[sellerInputIndex]
	)
	switch {
	case sellerTxIn.PreviousOutPoint != offer.SellerOutPoint:
		return fmt.Errorf("%w: seller outpoint differs", ErrInvalidOfferStructure)
	case sellerTxIn.Sequence != offer.SellerSequence:
		return fmt.Errorf("%w: seller sequence differs", ErrInvalidOfferStructure)
	case !bytes.Equal(sellerInput.FinalScriptWitness, offer.SellerInput.FinalScriptWitness):
		return fmt.Errorf("%w: seller witness differs", ErrInvalidOfferStructure)
	case !equalTxOut(sellerInput.WitnessUtxo, offer.SellerInput.WitnessUtxo):
		return fmt.Errorf("%w: seller previous output differs", ErrInvalidOfferStructure)
	case !equalTxOut(mergedTx.TxOut[sellerInputIndex], offer.SellerOutput):
		return fmt.Errorf("%w: seller output differs", ErrInvalidOfferStructure)
	}

	if offer.Commission != nil {
		if len(mergedTx.TxOut) <= commissionOutputIndex || !equalTxOut(mergedTx.TxOut[commissionOutputIndex], offer.Commission) {
			return fmt.Errorf("%w: commission output differs", ErrInvalidOfferStructure)
		}
	}

	var dummyValue int64
	for _, input := range merged.Inputs[:sellerInputIndex] {
		if input.WitnessUtxo == nil {
			return fmt.Errorf("%w: dummy input without previous output", ErrInvalidOfferStructure)
		}

		dummyValue += input.WitnessUtxo.Value
	}
	if mergedTx.TxOut[0].Value != dummyValue || mergedTx.TxOut[1].Value != offer.InscriptionValue {
		return fmt.Errorf("%w: inscription would not land in the buyer output", ErrInvalidOfferStructure)
	}

	return nil
}

// equalTxOut returns true if both outputs are set and equal.
func equalTxOut(a, b *wire.TxOut) bool {
	return a != nil && b != nil && a.Value == b.Value && bytes.Equal(a.PkScript, b.PkScript)
}

// SignBuyOfferParams describes data needed to sign merged buyer transaction.
type SignBuyOfferParams struct {
	PSBT   string // hex encoded result of BuildBuyOffer.
	Signer Signer
}

// SignBuyOffer signs buyer dummy and payment inputs and returns final transaction.
func (b *TxBuilder) SignBuyOffer(params SignBuyOfferParams) (*Result, error) {
	if params.Signer == nil {
		return nil, ErrNoSigner
	}

	packet, err := parsePSBT(params.PSBT)
	if err != nil {
		return nil, err
	}

	indexes, err := InputIndexes(packet)
	if err != nil {
		return nil, err
	}

	inputs := append(append([]int{}, indexes[DummyInputsHelpingKey]...), indexes[PaymentInputsHelpingKey]...)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no buyer inputs", ErrInvalidOfferStructure)
	}

	err = params.Signer.SignPSBT(packet, inputs...)
	if err != nil {
		return nil, err
	}

	tx, err := signer.Extract(packet)
	if err != nil {
		return nil, err
	}

	fee, err := packetFee(packet)
	if err != nil {
		return nil, err
	}

	result := &Result{Packet: packet, Tx: tx, Fee: fee, FeeRate: fee / virtualSize(tx)}
	b.dump("signed buy offer", result)

	return result, nil
}

// packetFee returns total input minus total output of the packet in satoshi.
func packetFee(packet *psbt.Packet) (int64, error) {
	var fee int64
	for idx, input := range packet.Inputs {
		if input.WitnessUtxo == nil {
			return 0, fmt.Errorf("input %d: %w", idx, signer.ErrMissingWitnessUTXO)
		}

		fee += input.WitnessUtxo.Value
	}

	for _, output := range packet.UnsignedTx.TxOut {
		fee -= output.Value
	}

	return fee, nil
}
