// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ErrTooManyInputs defines that input index does not fit into the helping key value.
var ErrTooManyInputs = errors.New("too many inputs to mark with helping keys")

// ExtractInputIndexesFromPSBT returns map with input roles and their indexes.
func ExtractInputIndexesFromPSBT(data []byte) (map[InputsHelpingKey][]int, error) {
	p, err := psbt.NewFromRawBytes(bytes.NewBuffer(data), false)
	if err != nil {
		return nil, err
	}

	return InputIndexes(p)
}

// InputIndexes returns map with input roles and their indexes stored in packet unknowns.
func InputIndexes(p *psbt.Packet) (map[InputsHelpingKey][]int, error) {
	var result = make(map[InputsHelpingKey][]int, 2)
	for _, unknown := range p.Unknowns {
		key, err := InputsHelpingKeyFromBytes(unknown.Key)
		if err != nil {
			return nil, err
		}

		result[key] = make([]int, len(unknown.Value))
		for idx, val := range unknown.Value {
			if int(val) >= len(p.Inputs) {
				return nil, ErrInvalidOfferStructure
			}

			result[key][idx] = int(val)
		}
	}

	return result, nil
}

// setInputIndexes stores input indexes of provided role in packet unknowns.
// Every index takes one byte, so inputs above index 255 cannot be marked.
func setInputIndexes(p *psbt.Packet, key InputsHelpingKey, indexes ...int) error {
	value := make([]byte, len(indexes))
	for idx, inputIdx := range indexes {
		if inputIdx < 0 || inputIdx > math.MaxUint8 {
			return fmt.Errorf("%w: input %d", ErrTooManyInputs, inputIdx)
		}

		value[idx] = byte(inputIdx)
	}

	p.Unknowns = append(p.Unknowns, &psbt.Unknown{Key: key.Bytes(), Value: value})

	return nil
}
