// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package sequencereader

import (
	"errors"
)

var (
	// ErrEnded defines that there are no more elements in the sequence.
	ErrEnded = errors.New("the sequence is ended")
	// ErrUnexpected defines that the next element does not match expectation.
	ErrUnexpected = errors.New("unexpected sequence element")
)

// SequenceReader defines forward only reader of parsed items, such as script tokens.
type SequenceReader[T any] struct {
	s   []T
	idx int
}

// New is a constructor for SequenceReader.
func New[T any](seq []T) *SequenceReader[T] {
	return &SequenceReader[T]{s: seq}
}

// HasNext returns true is sequence is not ended.
func (sr *SequenceReader[T]) HasNext() bool {
	return sr.idx < len(sr.s)
}

// Next returns next element of the sequence.
func (sr *SequenceReader[T]) Next() (T, error) {
	if !sr.HasNext() {
		return *new(T), ErrEnded
	}

	sr.idx++

	return sr.s[sr.idx-1], nil
}

// Peek returns next element without advancing the reader.
func (sr *SequenceReader[T]) Peek() (T, error) {
	if !sr.HasNext() {
		return *new(T), ErrEnded
	}

	return sr.s[sr.idx], nil
}

// Expect reads next element and checks it matches. The reader is not advanced on mismatch.
func (sr *SequenceReader[T]) Expect(match func(T) bool) (T, error) {
	next, err := sr.Peek()
	if err != nil {
		return next, err
	}
	if !match(next) {
		return next, ErrUnexpected
	}

	sr.idx++

	return next, nil
}

// Len returns how many items are left.
func (sr *SequenceReader[T]) Len() int {
	return len(sr.s) - sr.idx
}
