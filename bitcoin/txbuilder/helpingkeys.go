// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
)

// ErrUnknownInputsHelpingKey defines that inputs help keys is unknown.
var ErrUnknownInputsHelpingKey = errors.New("unknown inputs help keys")

// InputsHelpingKey defines type for additional data in PSBT Unknowns field
// to distinguish input roles and their indexes between parties of the offer.
type InputsHelpingKey byte

const (
	// PlaceholderInputsHelpingKey defines key for fixed placeholder inputs of the sell offer.
	PlaceholderInputsHelpingKey InputsHelpingKey = 0x10
	// SellerInputsHelpingKey defines key for the seller signed inscription input.
	SellerInputsHelpingKey InputsHelpingKey = 0x11
	// DummyInputsHelpingKey defines key for buyer dummy inputs.
	DummyInputsHelpingKey InputsHelpingKey = 0x20
	// PaymentInputsHelpingKey defines key for buyer payment (btc) inputs.
	PaymentInputsHelpingKey InputsHelpingKey = 0x21
)

// InputsHelpingKeyFromBytes parses bytes array into InputsHelpingKey if any.
func InputsHelpingKeyFromBytes(b []byte) (InputsHelpingKey, error) {
	if len(b) != 1 {
		return 0, ErrUnknownInputsHelpingKey
	}

	switch key := InputsHelpingKey(b[0]); key {
	case PlaceholderInputsHelpingKey, SellerInputsHelpingKey, DummyInputsHelpingKey, PaymentInputsHelpingKey:
		return key, nil
	}

	return 0, ErrUnknownInputsHelpingKey
}

// Byte returns InputsHelpingKey as byte.
func (k InputsHelpingKey) Byte() byte {
	return byte(k)
}

// Bytes returns InputsHelpingKey as bytes array.
func (k InputsHelpingKey) Bytes() []byte {
	return []byte{byte(k)}
}
