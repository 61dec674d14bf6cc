// Package pemkey renders DER encoded public keys as PEM text.
package pemkey

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/runZeroInc/rsapem/der"
)

const (
	Header    = "-----BEGIN PUBLIC KEY-----"
	Footer    = "-----END PUBLIC KEY-----"
	LineWidth = 64
)

// Lines returns the header, the base64 body split into LineWidth chunks,
// and the footer, in output order.
func Lines(derBytes []byte) []string {
	body := base64.StdEncoding.EncodeToString(derBytes)
	lines := make([]string, 0, 2+(len(body)+LineWidth-1)/LineWidth)
	lines = append(lines, Header)
	for i := 0; i < len(body); i += LineWidth {
		lines = append(lines, body[i:min(i+LineWidth, len(body))])
	}
	return append(lines, Footer)
}

// Render returns the PEM text for derBytes with every line terminated by "\n".
func Render(derBytes []byte) string {
	var sb strings.Builder
	for _, line := range Lines(derBytes) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Write renders derBytes to w.
func Write(w io.Writer, derBytes []byte) error {
	_, err := io.WriteString(w, Render(derBytes))
	return err
}

// Encode builds the SubjectPublicKeyInfo for modulus and exponent and
// renders it as PEM.
func Encode(modulus, exponent []byte) (string, error) {
	derBytes, err := der.Encode(modulus, exponent)
	if err != nil {
		return "", err
	}
	return Render(derBytes), nil
}
