package der

// EncodeLength returns the definite length octets for n. Values up to 127 use
// the short form, anything larger is written as 0x80|k followed by the k
// big-endian octets of n.
func EncodeLength(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n <= MaxShortFormLength {
		return []byte{byte(n)}, nil
	}

	numBytes := 0
	for tmp := n; tmp > 0; tmp >>= 8 {
		numBytes++
	}

	res := make([]byte, 1, numBytes+1)
	res[0] = byte(LengthLongFormBit | numBytes)
	for i := numBytes - 1; i >= 0; i-- {
		res = append(res, byte(n>>(8*i)))
	}
	return res, nil
}

// EncodeInteger returns an INTEGER TLV for the big-endian value in b. Leading
// zero octets are treated as padding. With forceUnsigned set, a value whose
// first significant octet has the high bit set gets a 0x00 guard octet so it
// is not read back as negative.
func EncodeInteger(b []byte, forceUnsigned bool) ([]byte, error) {
	prefixZeros := 0
	for prefixZeros < len(b) && b[prefixZeros] == 0 {
		prefixZeros++
	}
	remaining := b[prefixZeros:]

	if len(remaining) == 0 {
		return TLV(TagInteger, []byte{0x00})
	}
	if forceUnsigned && remaining[0] > 0x7f {
		return TLV(TagInteger, []byte{0x00}, remaining)
	}
	return TLV(TagInteger, remaining)
}

// TLV frames the concatenation of values with the given tag.
func TLV(tag byte, values ...[]byte) ([]byte, error) {
	size := 0
	for _, v := range values {
		size += len(v)
	}
	l, err := EncodeLength(size)
	if err != nil {
		return nil, err
	}

	res := make([]byte, 0, 1+len(l)+size)
	res = append(res, tag)
	res = append(res, l...)
	for _, v := range values {
		res = append(res, v...)
	}
	return res, nil
}

// Sequence frames the already encoded elements as a SEQUENCE.
func Sequence(elements ...[]byte) ([]byte, error) {
	return TLV(TagSequence, elements...)
}

// BitString wraps content in a BIT STRING with zero unused bits.
func BitString(content []byte) ([]byte, error) {
	return TLV(TagBitString, []byte{0x00}, content)
}
