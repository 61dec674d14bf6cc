package der

import "fmt"

// AlgorithmIdentifier returns SEQUENCE { rsaEncryption, NULL }.
func AlgorithmIdentifier() ([]byte, error) {
	oid, err := TLV(TagOID, OIDRSAEncryption)
	if err != nil {
		return nil, err
	}
	null, err := TLV(TagNull)
	if err != nil {
		return nil, err
	}
	return Sequence(oid, null)
}

// RSAPublicKey returns the PKCS#1 SEQUENCE { modulus INTEGER, publicExponent INTEGER }.
func RSAPublicKey(modulus, exponent []byte) ([]byte, error) {
	n, err := EncodeInteger(modulus, true)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := EncodeInteger(exponent, true)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return Sequence(n, e)
}

// Encode builds the SubjectPublicKeyInfo for an RSA key from the raw
// big-endian modulus and public exponent. The inputs are not validated as
// an RSA key: empty or zero values encode as INTEGER 0.
func Encode(modulus, exponent []byte) ([]byte, error) {
	params, err := RSAPublicKey(modulus, exponent)
	if err != nil {
		return nil, err
	}
	bits, err := BitString(params)
	if err != nil {
		return nil, err
	}
	algo, err := AlgorithmIdentifier()
	if err != nil {
		return nil, err
	}
	return Sequence(algo, bits)
}
