// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Dump renders human readable inputs and outputs table of the result.
func Dump(result *Result, networkParams *chaincfg.Params) string {
	if result == nil || result.Packet == nil {
		return ""
	}

	tx := result.Packet.UnsignedTx
	t := table.NewWriter()
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	if result.Tx != nil {
		t.SetTitle("tx %s", result.Tx.TxHash())
	} else {
		t.SetTitle("unsigned tx %s", tx.TxHash())
	}

	t.AppendHeader(table.Row{"#", "kind", "outpoint / address", "value", "state"})
	for idx, txIn := range tx.TxIn {
		var (
			input = result.Packet.Inputs[idx]
			value string
			state = "unsigned"
		)
		if input.WitnessUtxo != nil {
			value = btcutil.Amount(input.WitnessUtxo.Value).String()
		}
		if len(input.FinalScriptWitness) != 0 || len(input.FinalScriptSig) != 0 {
			state = "final"
		}

		t.AppendRow(table.Row{idx, "in", txIn.PreviousOutPoint.String(), value, fmt.Sprintf("%s seq %#x", state, txIn.Sequence)})
	}

	for idx, txOut := range tx.TxOut {
		t.AppendRow(table.Row{idx, "out", scriptAddress(txOut.PkScript, networkParams), btcutil.Amount(txOut.Value).String(), ""})
	}

	footer := table.Row{"", "fee", btcutil.Amount(result.Fee).String(), fmt.Sprintf("%d sat/vB", result.FeeRate), ""}
	if result.Tx != nil {
		footer[4] = fmt.Sprintf("%d vB", virtualSize(result.Tx))
	}
	t.AppendFooter(footer)

	return t.Render()
}

// scriptAddress returns addresses encoded by the script, hex script if there are none.
func scriptAddress(pkScript []byte, networkParams *chaincfg.Params) string {
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(pkScript, networkParams)
	if err != nil || len(addresses) == 0 {
		return fmt.Sprintf("%x", pkScript)
	}

	encoded := make([]string, len(addresses))
	for idx, address := range addresses {
		encoded[idx] = address.EncodeAddress()
	}

	return strings.Join(encoded, ",")
}
