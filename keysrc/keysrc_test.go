package keysrc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/runZeroInc/excrypto/x/crypto/ssh"
)

func TestFromBase64(t *testing.T) {
	testCases := []struct {
		Modulus  string
		Exponent string
		ExpN     []byte
		ExpE     []byte
	}{
		{"AIAB", "AQAB", []byte{0x00, 0x80, 0x01}, []byte{0x01, 0x00, 0x01}},
		{"gAE=", "AQAB", []byte{0x80, 0x01}, []byte{0x01, 0x00, 0x01}},
		{"gAE", "Iw==", []byte{0x80, 0x01}, []byte{0x23}},
		{"_-8", "AQAB", []byte{0xff, 0xef}, []byte{0x01, 0x00, 0x01}},
		{" gA\nE= ", "AAAA", []byte{0x80, 0x01}, []byte{0x00, 0x00, 0x00}},
	}
	for _, tc := range testCases {
		k, err := FromBase64("test", tc.Modulus, tc.Exponent)
		if err != nil {
			t.Fatalf("%q/%q: unexpected error: %v", tc.Modulus, tc.Exponent, err)
		}
		if !bytes.Equal(k.Modulus, tc.ExpN) || !bytes.Equal(k.Exponent, tc.ExpE) {
			t.Errorf("%q/%q: got %x/%x, expected %x/%x", tc.Modulus, tc.Exponent, k.Modulus, k.Exponent, tc.ExpN, tc.ExpE)
		}
	}
}

func TestFromBase64Errors(t *testing.T) {
	if _, err := FromBase64("test", "", "AQAB"); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("empty modulus: got %v", err)
	}
	if _, err := FromBase64("test", "AQAB", "  "); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("empty exponent: got %v", err)
	}
	if _, err := FromBase64("test", "not*base64", "AQAB"); err == nil {
		t.Errorf("invalid modulus accepted")
	}
}

func TestFromGatewayJSON(t *testing.T) {
	single := `{"id":"1f69e798","name":"gw","type":"Resource","publicKey":{"exponent":"AQAB","modulus":"AIAB"}}`
	keys, err := FromGatewayJSON(strings.NewReader(single))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "gw" || keys[0].Source != "gateway" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
	if !bytes.Equal(keys[0].Modulus, []byte{0x00, 0x80, 0x01}) {
		t.Errorf("unexpected modulus %x", keys[0].Modulus)
	}

	list := `{"@odata.context":"x","value":[
		{"id":"a","name":"first","publicKey":{"exponent":"AQAB","modulus":"gAE="}},
		{"id":"b","publicKey":{"exponent":"Aw==","modulus":"fw=="}},
		{"id":"c"}
	]}`
	keys, err = FromGatewayJSON(strings.NewReader(list))
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for _, k := range keys {
		got = append(got, k.Name)
	}
	if diff := cmp.Diff([]string{"first", "b"}, got); diff != "" {
		t.Errorf("unexpected names: %s", diff)
	}

	if _, err := FromGatewayJSON(strings.NewReader(`{"id":"x"}`)); !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected no keys, got %v", err)
	}
	if _, err := FromGatewayJSON(strings.NewReader(`{`)); err == nil {
		t.Errorf("truncated document accepted")
	}
}

func TestFromJWK(t *testing.T) {
	keys, err := FromJWK(strings.NewReader(`{"kty":"RSA","kid":"k1","n":"gAE","e":"AQAB"}`))
	if err != nil {
		t.Fatal(err)
	}
	exp := []*Key{{
		Name:         "k1",
		Source:       "jwk",
		Modulus:      []byte{0x80, 0x01},
		Exponent:     []byte{0x01, 0x00, 0x01},
		ModulusText:  "gAE",
		ExponentText: "AQAB",
	}}
	if diff := cmp.Diff(exp, keys); diff != "" {
		t.Errorf("unexpected keys: %s", diff)
	}

	set := `{"keys":[{"kty":"EC","crv":"P-256","x":"AA","y":"AA"},{"kty":"RSA","n":"_w","e":"AQAB"}]}`
	keys, err = FromJWK(strings.NewReader(set))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "jwk-1" || !bytes.Equal(keys[0].Modulus, []byte{0xff}) {
		t.Fatalf("unexpected keys: %+v", keys)
	}

	if _, err := FromJWK(strings.NewReader(`{"kty":"OKP","crv":"Ed25519","x":"AA"}`)); !errors.Is(err, ErrNotRSA) {
		t.Errorf("expected not RSA, got %v", err)
	}
	if _, err := FromJWK(strings.NewReader(`{"keys":[]}`)); !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected no keys, got %v", err)
	}
}

func TestAuthorizedKeysFile(t *testing.T) {

	content := strings.Join([]string{
		"# comment line",
		"",
		"ssh-rsa " + testKeyDebOpenSSLRSA3072 + " debian@weak",
		testKeyED25519,
		"ssh-rsa bm90LWEta2V5 broken",
		`command="true" ssh-rsa ` + testKeyDebOpenSSLRSA3072,
	}, "\n")
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	lgr := logrus.New()
	lgr.Out = &bytes.Buffer{}

	f := NewAuthorizedKeysFile(path, lgr)
	if _, err := f.Read(0); err == nil {
		t.Fatalf("read before open succeeded")
	}
	if err := f.Open(); err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	keys, err := f.Read(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "debian@weak" {
		t.Fatalf("unexpected first batch: %+v", keys)
	}
	if len(keys[0].Modulus) != 384 || keys[0].Modulus[0] != 0xbe {
		t.Errorf("unexpected modulus %x...", keys[0].Modulus[:4])
	}
	if !bytes.Equal(keys[0].Exponent, []byte{0x23}) {
		t.Errorf("unexpected exponent %x", keys[0].Exponent)
	}

	keys, err = f.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "key-6" {
		t.Fatalf("unexpected second batch: %+v", keys)
	}

	logged := lgr.Out.(*bytes.Buffer).String()
	if !strings.Contains(logged, "not an RSA key") || !strings.Contains(logged, "bad authorized key") {
		t.Errorf("skipped lines were not logged: %s", logged)
	}
}

func TestFromSSHPublicKeyNotRSA(t *testing.T) {
	sshEd, _, _, _, err := ssh.ParseAuthorizedKey([]byte(testKeyED25519))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := FromSSHPublicKey("ed", sshEd); !errors.Is(err, ErrNotRSA) {
		t.Fatalf("expected not RSA, got %v", err)
	}
}

// testKeyDebOpenSSLRSA3072 is the public key from https://github.com/badkeys/debianopenssl/blob/main/rsa3072/ssh/be32/29491.key
const testKeyDebOpenSSLRSA3072 = `AAAAB3NzaC1yc2EAAAABIwAAAYEAvhvE7T48ibbjuayQYscQiVCKJ6bGx8xktWPNoIX1f7iDz9tK1YQ+KyPMlwvtoohiDTAGJ6uDMcjauoKnuwi0eM28sNwZr5Ijhb4TL761IHpLta+arf/CPfFuWtPNtYDH/aZsh3ZzX0VbxTAKLFCJuxSfAapHanQpv9fDQ25io48qCCJGMvXZNU2QZJY1hvTYtgVyc2RhHBJvT1s58GCDj4nlzhZnYWUlmMQ/rYgB4pPx/RuG8yKOSg5aoxt2i4BE9AfHidFcxtAPw9Gtzi+r5B6zLi0jzNtTUQlgz5u53nU7E+GD09Zf6CztM4aa54K+mNbnVxt++GWfdVR9e5N0B94jyLX6oCWGCG9exHY8lbFNwXDJd3LifjHKxb6OEWuq+FZciwV0Z/RG/bgJXSpu7hUsbpodh5kOvioZUfVSChnCLu67JgbhJ8bP0ZWRj7cF2JFa+XRPM9LHPRDFbJlBfYZfyRqVL0Yv1M9JaJhnPNC30wMBFN2Nujy2SNGv5qU7`

const testKeyED25519 = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8g ed@host"
