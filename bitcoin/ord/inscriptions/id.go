// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// idSeparator defines separator between TxID and Index in inscription ID.
const idSeparator string = "i"

// ID describes inscription identifier.
type ID struct {
	TxID  *chainhash.Hash // Reveal transaction ID.
	Index uint32          // Index of the inscription in the reveal transaction.
}

// NewRevealID returns ID of the first inscription created by the reveal transaction.
func NewRevealID(revealTxID chainhash.Hash) *ID {
	return &ID{TxID: &revealTxID, Index: 0}
}

// NewIDFromString parses inscription ID from "<txid>i<index>" string.
func NewIDFromString(idStr string) (*ID, error) {
	txIDStr, indexStr, found := strings.Cut(idStr, idSeparator)
	if !found || strings.Contains(indexStr, idSeparator) {
		return nil, fmt.Errorf("invalid ID format: %s", idStr)
	}

	if len(txIDStr) != chainhash.MaxHashStringSize {
		return nil, fmt.Errorf("invalid TxID format: %s", idStr)
	}

	txID, err := chainhash.NewHashFromStr(txIDStr)
	if err != nil {
		return nil, err
	}

	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return nil, err
	}

	return &ID{TxID: txID, Index: uint32(index)}, nil
}

// String returns inscription ID as string.
func (id *ID) String() string {
	return fmt.Sprintf("%s%s%d", id.TxID.String(), idSeparator, id.Index)
}
