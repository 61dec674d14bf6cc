// Package der encodes RSA public keys as X.509 SubjectPublicKeyInfo structures
// using the ASN.1 Distinguished Encoding Rules.
package der

import (
	"errors"
	"fmt"
)

// Universal tags used by SubjectPublicKeyInfo
const (
	TagInteger   = 0x02
	TagBitString = 0x03
	TagNull      = 0x05
	TagOID       = 0x06
	TagSequence  = 0x30 // SEQUENCE with the constructed bit set
)

const (
	// MaxShortFormLength is the largest length that fits in a single octet
	MaxShortFormLength = 0x7f
	// LengthLongFormBit marks the first length octet of the long form
	LengthLongFormBit = 0x80
)

// OIDRSAEncryption is the encoded form of rsaEncryption (1.2.840.113549.1.1.1)
var OIDRSAEncryption = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01}

var (
	ErrInvalidArgument = errors.New("der: invalid argument")
	ErrNegativeLength  = fmt.Errorf("%w: negative length", ErrInvalidArgument)
)
