// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/ordtx/internal/sequencereader"
)

var (
	// ErrMalformedInscription defines that envelope script is malformed and failed to parse.
	ErrMalformedInscription = errors.New("inscription is malformed")
	// ErrRepeatedFieldData defines that already filled field met while parsing.
	ErrRepeatedFieldData = errors.New("field already filled")
	// ErrContentTooLarge defines that inscription content exceeds configured ceiling.
	ErrContentTooLarge = errors.New("inscription content is too large")
	// ErrInvalidPublicKey defines that provided key is not a 32 bytes x-only public key.
	ErrInvalidPublicKey = errors.New("invalid x-only public key")
)

const (
	// DefaultTag defines ord tag to disambiguate inscriptions from other uses of envelopes.
	DefaultTag string = "ord"
	// DefaultMaxContentSize defines default content ceiling (320 KiB).
	DefaultMaxContentSize int = 320 * 1024
	// MaxChunkSize defines maximum size of the single body data push allowed by relay policy.
	MaxChunkSize int = 520

	xOnlyPubKeyLen = 32
)

// Envelope describes inscription envelope content committed to a taproot leaf.
type Envelope struct {
	Tag         string
	ContentType string
	Content     []byte
}

// NewEnvelope is a constructor for Envelope.
// Empty tag is replaced with DefaultTag, non-positive maxContentSize with DefaultMaxContentSize.
func NewEnvelope(tag, contentType string, content []byte, maxContentSize int) (*Envelope, error) {
	if tag == "" {
		tag = DefaultTag
	}
	if maxContentSize <= 0 {
		maxContentSize = DefaultMaxContentSize
	}

	if len(content) > maxContentSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrContentTooLarge, len(content), maxContentSize)
	}

	return &Envelope{
		Tag:         tag,
		ContentType: contentType,
		Content:     content,
	}, nil
}

// Chunks returns content split into data pushes of MaxChunkSize at most.
func (e *Envelope) Chunks() [][]byte {
	chunks := make([][]byte, 0, (len(e.Content)+MaxChunkSize-1)/MaxChunkSize)
	for start := 0; start < len(e.Content); start += MaxChunkSize {
		end := min(start+MaxChunkSize, len(e.Content))
		chunks = append(chunks, e.Content[start:end])
	}

	return chunks
}

// IntoScript returns tapscript leaf of the envelope locked to provided x-only public key.
// INFO: Script will have the next format:
// {<pubKey> OP_CHECKSIG OP_FALSE OP_IF <tag> OP_DATA_1 0x01 <content-type> OP_0 <chunk1> [<chunk2> ...] OP_ENDIF}.
// NOTE: Pushes are written as raw data pushes, so the script is not limited by txscript.MaxScriptSize.
func (e *Envelope) IntoScript(xOnlyPubKey []byte) ([]byte, error) {
	if len(xOnlyPubKey) != xOnlyPubKeyLen {
		return nil, ErrInvalidPublicKey
	}

	script := make([]byte, 0, len(e.Content)+len(e.ContentType)+len(e.Tag)+64)
	script = appendDataPush(script, xOnlyPubKey)
	script = append(script, txscript.OP_CHECKSIG, txscript.OP_FALSE, txscript.OP_IF)
	script = appendDataPush(script, []byte(e.Tag))
	script = append(script, TagContentType.IntoDataPush()...)
	script = appendDataPush(script, []byte(e.ContentType))
	script = append(script, txscript.OP_0)
	for _, chunk := range e.Chunks() {
		script = appendDataPush(script, chunk)
	}

	return append(script, txscript.OP_ENDIF), nil
}

// appendDataPush appends data with the shortest explicit push opcode.
func appendDataPush(script, data []byte) []byte {
	size := len(data)
	switch {
	case size == 0:
		return append(script, txscript.OP_0)
	case size < txscript.OP_PUSHDATA1:
		script = append(script, byte(size))
	case size <= 0xff:
		script = append(script, txscript.OP_PUSHDATA1, byte(size))
	case size <= 0xffff:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(size))
	default:
		script = append(script, txscript.OP_PUSHDATA4)
		script = binary.LittleEndian.AppendUint32(script, uint32(size))
	}

	return append(script, data...)
}

// token is a single parsed script instruction.
type token struct {
	opcode byte
	data   []byte
}

// isPush returns true if token pushes data (including an empty push).
func (t token) isPush() bool {
	return t.opcode <= txscript.OP_PUSHDATA4
}

// isOpcode returns matcher of the token with provided opcode.
func isOpcode(opcode byte) func(token) bool {
	return func(t token) bool {
		return t.opcode == opcode
	}
}

// ParseEnvelope parses envelope leaf script, returns envelope and x-only public key it is locked to.
func ParseEnvelope(script []byte) (*Envelope, []byte, error) {
	var tokens []token
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		tokens = append(tokens, token{opcode: tokenizer.Opcode(), data: tokenizer.Data()})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, nil, errors.Join(ErrMalformedInscription, err)
	}

	sr := sequencereader.New(tokens)
	// At least <pubKey> OP_CHECKSIG OP_FALSE OP_IF <tag> OP_ENDIF.
	if sr.Len() < 6 {
		return nil, nil, ErrMalformedInscription
	}

	pubKey, err := sr.Expect(func(t token) bool { return t.isPush() && len(t.data) == xOnlyPubKeyLen })
	if err != nil {
		return nil, nil, errors.Join(ErrMalformedInscription, err)
	}

	for _, opcode := range []byte{txscript.OP_CHECKSIG, txscript.OP_FALSE, txscript.OP_IF} {
		if _, err = sr.Expect(isOpcode(opcode)); err != nil {
			return nil, nil, errors.Join(ErrMalformedInscription, err)
		}
	}

	tag, err := sr.Expect(func(t token) bool { return t.isPush() && len(t.data) != 0 })
	if err != nil {
		return nil, nil, errors.Join(ErrMalformedInscription, err)
	}

	envelope := &Envelope{Tag: string(tag.data)}
	err = envelope.fillFields(sr)
	if err != nil {
		return nil, nil, err
	}

	return envelope, pubKey.data, nil
}

// fillFields reads tag/value pairs followed by the body till OP_ENDIF.
func (e *Envelope) fillFields(sr *sequencereader.SequenceReader[token]) error {
	var contentTypeSet bool
	for sr.HasNext() {
		next, _ := sr.Next() // skip error due to the loop condition check.
		switch {
		case next.opcode == txscript.OP_ENDIF:
			return ensureEnded(sr)
		case next.opcode == txscript.OP_0:
			return e.fillBody(sr)
		case next.isPush() && len(next.data) == 1:
			value, err := sr.Next()
			if err != nil || !value.isPush() {
				return ErrMalformedInscription
			}

			switch tag := Tag(next.data[0]); {
			case tag == TagContentType:
				if contentTypeSet {
					return ErrRepeatedFieldData
				}

				e.ContentType, contentTypeSet = string(value.data), true
			case !tag.IsKnown() && tag%2 == 0:
				return fmt.Errorf("%w: unrecognized even tag %d", ErrMalformedInscription, tag)
			}
		default:
			return ErrMalformedInscription
		}
	}

	return ErrMalformedInscription
}

// fillBody concatenates body data pushes till OP_ENDIF.
func (e *Envelope) fillBody(sr *sequencereader.SequenceReader[token]) error {
	for sr.HasNext() {
		next, _ := sr.Next() // skip error due to the loop condition check.
		if next.opcode == txscript.OP_ENDIF {
			return ensureEnded(sr)
		}
		if !next.isPush() {
			return ErrMalformedInscription
		}

		e.Content = append(e.Content, next.data...)
	}

	return ErrMalformedInscription
}

// ensureEnded checks nothing follows the envelope end.
func ensureEnded(sr *sequencereader.SequenceReader[token]) error {
	if sr.HasNext() {
		return ErrMalformedInscription
	}

	return nil
}
