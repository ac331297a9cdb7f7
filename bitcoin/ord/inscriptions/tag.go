// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"github.com/btcsuite/btcd/txscript"
)

// Tag defines special tag for distinguishing envelope field type.
type Tag byte

const (
	// TagContentType defines content-type tag in the inscription protocol.
	// The value is the MIME type of the body.
	TagContentType Tag = 1
	// TagPointer defines pointer tag in the inscription protocol.
	TagPointer Tag = 2
	// TagParent defines parent tag in the inscription protocol.
	TagParent Tag = 3
	// TagMetadata defines metadata tag in the inscription protocol.
	TagMetadata Tag = 5
	// TagMetaprotocol defines meta-protocol tag in the inscription protocol.
	TagMetaprotocol Tag = 7
	// TagContentEncoding defines content-encoding tag in the inscription protocol.
	TagContentEncoding Tag = 9
	// TagDelegate defines delegate tag in the inscription protocol.
	TagDelegate Tag = 11
)

// IntoDataPush returns Tag as bytes array with OP_PUSH command.
func (t Tag) IntoDataPush() []byte {
	return []byte{txscript.OP_DATA_1, byte(t)}
}

// IsKnown returns true if the tag is one of the protocol field tags.
// Unknown odd tags may be ignored by parsers, unknown even tags may not.
func (t Tag) IsKnown() bool {
	switch t {
	case TagContentType, TagPointer, TagParent, TagMetadata, TagMetaprotocol, TagContentEncoding, TagDelegate:
		return true
	}

	return false
}
