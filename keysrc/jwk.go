package keysrc

import (
	"encoding/json"
	"fmt"
	"io"
)

type jwk struct {
	Kty string `json:"kty,omitempty"`
	Kid string `json:"kid,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

type jwkDocument struct {
	jwk
	Keys []jwk `json:"keys,omitempty"`
}

// FromJWK reads RSA keys from a JSON Web Key or a JWK Set. Keys of other
// types in a set are skipped; a single non-RSA key returns ErrNotRSA.
func FromJWK(r io.Reader) ([]*Key, error) {
	doc := &jwkDocument{}
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if doc.Keys == nil {
		if doc.Kty != "RSA" {
			return nil, fmt.Errorf("%w: kty %q", ErrNotRSA, doc.Kty)
		}
		doc.Keys = []jwk{doc.jwk}
	}

	res := []*Key{}
	for i, ent := range doc.Keys {
		if ent.Kty != "RSA" {
			continue
		}
		name := ent.Kid
		if name == "" {
			name = fmt.Sprintf("jwk-%d", i)
		}
		k, err := FromBase64(name, ent.N, ent.E)
		if err != nil {
			return nil, fmt.Errorf("jwk %s: %w", name, err)
		}
		k.Source = "jwk"
		res = append(res, k)
	}
	if len(res) == 0 {
		return nil, ErrNoKeys
	}
	return res, nil
}
