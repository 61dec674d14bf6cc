package keysrc

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/runZeroInc/excrypto/crypto/rsa"
	"github.com/runZeroInc/excrypto/x/crypto/ssh"
	"github.com/sirupsen/logrus"
)

const MaxAuthorizedKeyLine = 1024 * 64

// FromSSHPublicKey extracts the modulus and exponent of an ssh-rsa key.
func FromSSHPublicKey(name string, pub ssh.PublicKey) (*Key, error) {
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRSA, pub.Type())
	}
	rpk, ok := cpk.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRSA, pub.Type())
	}
	n := rpk.N.Bytes()
	e := big.NewInt(int64(rpk.E)).Bytes()
	return &Key{
		Name:         name,
		Source:       "ssh",
		Modulus:      n,
		Exponent:     e,
		ModulusText:  base64.StdEncoding.EncodeToString(n),
		ExponentText: base64.StdEncoding.EncodeToString(e),
	}, nil
}

// AuthorizedKeysFile reads RSA keys from an OpenSSH authorized_keys file.
type AuthorizedKeysFile struct {
	path string
	fd   io.ReadCloser
	m    sync.Mutex
	scan *bufio.Scanner
	line int
	logr *logrus.Logger
}

func NewAuthorizedKeysFile(path string, logr *logrus.Logger) *AuthorizedKeysFile {
	return &AuthorizedKeysFile{path: path, logr: logr}
}

// Open opens the file, or stdin when the path is "-".
func (f *AuthorizedKeysFile) Open() error {
	f.Close()

	f.m.Lock()
	defer f.m.Unlock()

	var fd io.ReadCloser = os.Stdin
	if f.path != "-" {
		var err error
		if fd, err = os.Open(f.path); err != nil {
			return err
		}
	}
	f.fd = fd
	f.line = 0

	scan := bufio.NewScanner(f.fd)
	buff := make([]byte, MaxAuthorizedKeyLine)
	scan.Buffer(buff, MaxAuthorizedKeyLine)
	f.scan = scan
	return nil
}

func (f *AuthorizedKeysFile) Close() {
	f.m.Lock()
	defer f.m.Unlock()
	if f.fd != nil && f.fd != os.Stdin {
		f.fd.Close()
	}
	f.fd = nil
}

// Read returns up to cnt RSA keys, or all remaining keys when cnt is zero.
// Unparseable lines and keys of other types are logged and skipped.
func (f *AuthorizedKeysFile) Read(cnt int) ([]*Key, error) {
	res := []*Key{}
	f.m.Lock()
	defer f.m.Unlock()
	if f.fd == nil {
		return res, fmt.Errorf("no open file")
	}

	for f.scan.Scan() {
		f.line++
		line := strings.TrimSpace(f.scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			f.logr.Errorf("%s:%d: bad authorized key: %v", f.path, f.line, err)
			continue
		}

		name := comment
		if name == "" {
			name = fmt.Sprintf("key-%d", f.line)
		}
		k, err := FromSSHPublicKey(name, pub)
		if err != nil {
			f.logr.Errorf("%s:%d: skipping key: %v", f.path, f.line, err)
			continue
		}
		res = append(res, k)
		if len(res) == cnt {
			return res, nil
		}
	}
	return res, f.scan.Err()
}
