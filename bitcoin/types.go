// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// AddressType defines the script type the UTXO is locked with.
type AddressType int

const (
	// AddressTypeP2PKH defines legacy pay-to-public-key-hash output.
	AddressTypeP2PKH AddressType = iota + 1
	// AddressTypeP2WPKH defines native segwit v0 pay-to-witness-public-key-hash output.
	AddressTypeP2WPKH
	// AddressTypeP2TR defines taproot (segwit v1) output.
	AddressTypeP2TR
	// AddressTypeP2SHP2WPKH defines P2WPKH wrapped into P2SH output.
	AddressTypeP2SHP2WPKH
)

// String returns address type name.
func (t AddressType) String() string {
	switch t {
	case AddressTypeP2PKH:
		return "P2PKH"
	case AddressTypeP2WPKH:
		return "P2WPKH"
	case AddressTypeP2TR:
		return "P2TR"
	case AddressTypeP2SHP2WPKH:
		return "P2SH-P2WPKH"
	default:
		return fmt.Sprintf("AddressType(%d)", int(t))
	}
}

// Validate returns ErrUnsupportedAddressType for values outside the enum.
func (t AddressType) Validate() error {
	switch t {
	case AddressTypeP2PKH, AddressTypeP2WPKH, AddressTypeP2TR, AddressTypeP2SHP2WPKH:
		return nil
	}

	return fmt.Errorf("%w: %d", ErrUnsupportedAddressType, int(t))
}

// AddressTypeFromScript returns address type of the output script.
// Any P2SH script is considered to wrap P2WPKH.
func AddressTypeFromScript(pkScript []byte) (AddressType, error) {
	switch {
	case txscript.IsPayToTaproot(pkScript):
		return AddressTypeP2TR, nil
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return AddressTypeP2WPKH, nil
	case txscript.IsPayToScriptHash(pkScript):
		return AddressTypeP2SHP2WPKH, nil
	case txscript.IsPayToPubKeyHash(pkScript):
		return AddressTypeP2PKH, nil
	}

	return 0, fmt.Errorf("%w: %x", ErrUnsupportedAddressType, pkScript)
}

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash       string
	Index        uint32 // output index in transaction outputs.
	Amount       int64  // in Satoshi.
	Script       []byte // ScriptPubKey.
	Address      string // output recipient address.
	AddressType  AddressType
	Inscriptions []InscriptionUTXO
}

// InscriptionUTXO describes inscription linked to the UTXO.
type InscriptionUTXO struct {
	ID     string // inscription id in "<txid>i<index>" form.
	Offset uint64 // sat offset of the inscription inside the UTXO.
}

// IsPlain returns true if no inscriptions are linked to the UTXO.
func (u *UTXO) IsPlain() bool {
	return len(u.Inscriptions) == 0
}

// HasInscription returns true if inscription with provided id is linked to the UTXO.
func (u *UTXO) HasInscription(id string) bool {
	for _, inscription := range u.Inscriptions {
		if inscription.ID == id {
			return true
		}
	}

	return false
}
