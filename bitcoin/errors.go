// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
)

var (
	// ErrInsufficientNativeBalance defines that selected utxos can not cover outputs and fee.
	ErrInsufficientNativeBalance = errors.New("insufficient native balance")
	// ErrInvalidUTXOAmount defines that utxo has negative or otherwise invalid amount.
	ErrInvalidUTXOAmount = errors.New("invalid utxo amount")
	// ErrInscriptionNotFound defines that requested inscription is not linked to any of provided utxos.
	ErrInscriptionNotFound = errors.New("inscription not found")
	// ErrMultipleInscriptions defines that utxo holds more than one inscription, it should be split first.
	ErrMultipleInscriptions = errors.New("multiple inscriptions in one utxo")
	// ErrUnsupportedAddressType defines that address type is not supported.
	ErrUnsupportedAddressType = errors.New("unsupported address type")
)
