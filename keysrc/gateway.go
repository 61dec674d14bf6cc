package keysrc

import (
	"encoding/json"
	"fmt"
	"io"
)

type gatewayPublicKey struct {
	Exponent string `json:"exponent"`
	Modulus  string `json:"modulus"`
}

type gateway struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name,omitempty"`
	PublicKey *gatewayPublicKey `json:"publicKey,omitempty"`
}

// gatewayDocument matches both the single gateway and the gateway list responses
type gatewayDocument struct {
	gateway
	Value []gateway `json:"value,omitempty"`
}

// FromGatewayJSON reads the public keys out of a Power BI getGateway or
// getGateways response.
func FromGatewayJSON(r io.Reader) ([]*Key, error) {
	doc := &gatewayDocument{}
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	gws := doc.Value
	if len(gws) == 0 && doc.PublicKey != nil {
		gws = []gateway{doc.gateway}
	}

	res := []*Key{}
	for i, gw := range gws {
		if gw.PublicKey == nil {
			continue
		}
		name := gw.Name
		if name == "" {
			name = gw.ID
		}
		if name == "" {
			name = fmt.Sprintf("gateway-%d", i)
		}
		k, err := FromBase64(name, gw.PublicKey.Modulus, gw.PublicKey.Exponent)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: %w", name, err)
		}
		k.Source = "gateway"
		res = append(res, k)
	}
	if len(res) == 0 {
		return nil, ErrNoKeys
	}
	return res, nil
}
