// Package badkeys checks RSA moduli against the badkeys.info blocklist of
// known compromised keys.
package badkeys

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/runZeroInc/excrypto/crypto/sha256"
)

const BadKeysMetaURL = "https://update.badkeys.info/v0/badkeysdata.json"

var ErrNotFound = errors.New("badkeys: not found")

// PrefixFromModulus implements the badkeys `blocklistmaker` hashing method for
// RSA keys: the first BlockHashPrefix bytes of sha256 over the modulus without
// leading zero bytes.
func PrefixFromModulus(modulus []byte) []byte {
	sum := sha256.Sum256(bytes.TrimLeft(modulus, "\x00"))
	return sum[0:BlockHashPrefix]
}

// GetExecutableDir returns the full path to the running binary's directory
func GetExecutableDir() string {
	filename, _ := os.Executable()
	filename, _ = filepath.Abs(filename)
	return filepath.Dir(filename)
}

func ReadBadKeysManifest(r io.Reader) (*Meta, error) {
	meta := &Meta{}
	if err := json.NewDecoder(r).Decode(meta); err != nil {
		return meta, fmt.Errorf("decode: %w", err)
	}
	return meta, nil
}
