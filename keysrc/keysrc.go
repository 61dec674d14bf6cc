// Package keysrc turns the textual forms RSA public keys are published in into
// raw big-endian modulus and exponent values.
package keysrc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyValue = errors.New("keysrc: empty value")
	ErrNotRSA     = errors.New("keysrc: not an RSA key")
	ErrNoKeys     = errors.New("keysrc: no keys found")
)

// Key is an RSA public key as two unsigned big-endian byte strings.
type Key struct {
	Name     string
	Source   string
	Modulus  []byte
	Exponent []byte

	// The textual values as supplied, for status output
	ModulusText  string
	ExponentText string
}

// decodeBase64 accepts standard and URL-safe base64, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, ErrEmptyValue
	}
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// FromBase64 decodes a modulus and exponent given as base64 text.
func FromBase64(name, modulus, exponent string) (*Key, error) {
	n, err := decodeBase64(modulus)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := decodeBase64(exponent)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return &Key{
		Name:         name,
		Source:       "base64",
		Modulus:      n,
		Exponent:     e,
		ModulusText:  modulus,
		ExponentText: exponent,
	}, nil
}
