// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/BoostyLabs/ordtx/bitcoin"
)

type balanceErrorType string

type causerSign string

const (
	// InsufficientErrorTypeBitcoin defines insufficient bitcoin balance error type.
	InsufficientErrorTypeBitcoin balanceErrorType = "bitcoin"
	// InsufficientErrorTypeDummy defines insufficient dummy utxos error type.
	InsufficientErrorTypeDummy balanceErrorType = "dummy utxos"

	// CauserSender defines that the sender (seller, inscriber) caused this error type.
	CauserSender causerSign = "sender"
	// CauserReceiver defines that the receiver paying fee caused this error type.
	CauserReceiver causerSign = "receiver"
	// CauserBuyer defines that the buyer caused this error type.
	CauserBuyer causerSign = "buyer"
)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Type   balanceErrorType
	Need   int64 // in Satoshi.
	Have   int64 // in Satoshi.
	Causer causerSign
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(type_ balanceErrorType, need, have int64) *InsufficientError {
	return &InsufficientError{type_, need, have, ""}
}

// Error returns error description with the shortfall.
func (e *InsufficientError) Error() string {
	var errMsg = fmt.Sprintf("insufficient %s balance: need %s, have %s, shortfall %s",
		e.Type, btcutil.Amount(e.Need), btcutil.Amount(e.Have), btcutil.Amount(e.Shortfall()))

	if e.Causer != "" {
		errMsg += " (" + string(e.Causer) + ")"
	}

	return errMsg
}

// Shortfall returns missing amount in satoshi.
func (e *InsufficientError) Shortfall() int64 {
	return max(e.Need-e.Have, 0)
}

// Is implements comparator method for [errors] package.
func (e *InsufficientError) Is(target error) bool {
	var insufficientErr *InsufficientError
	if errors.As(target, &insufficientErr) {
		return insufficientErr.Type == e.Type
	}

	return target == bitcoin.ErrInsufficientNativeBalance
}

// setCauser updates InsufficientError with provided causer.
func (e *InsufficientError) setCauser(causer causerSign) *InsufficientError {
	e.Causer = causer
	return e
}
