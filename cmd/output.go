package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/runZeroInc/rsapem/keysrc"
	"github.com/runZeroInc/rsapem/pemkey"
)

// writePEM writes the keys to w as consecutive PEM blocks in input order
func writePEM(w io.Writer, keys []*keysrc.Key) error {
	for _, k := range keys {
		text, err := pemkey.Encode(k.Modulus, k.Exponent)
		if err != nil {
			return fmt.Errorf("%s: %w", k.Name, err)
		}
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
	}
	return nil
}

var patUnsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// pemFileName maps a key name to a file name not yet in seen, numbering
// repeated names
func pemFileName(name string, seen map[string]int) string {
	base := patUnsafeFileChars.ReplaceAllString(name, "_")
	if base == "" || base == "." || base == ".." {
		base = "key"
	}
	name = base
	for cnt := 2; seen[name] > 0; cnt++ {
		name = base + "-" + strconv.Itoa(cnt)
	}
	seen[name]++
	return name + ".pem"
}

// writePEMFiles writes each key to its own file in dir and returns the paths
func writePEMFiles(dir string, keys []*keysrc.Key) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	seen := make(map[string]int)
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		text, err := pemkey.Encode(k.Modulus, k.Exponent)
		if err != nil {
			return paths, fmt.Errorf("%s: %w", k.Name, err)
		}
		path := filepath.Join(dir, pemFileName(k.Name, seen))
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (conf *Config) printStatus(k *keysrc.Key, path string) {
	fmt.Fprintln(conf.Status, conf.Color.BrightGreen("Successfully generated RSA PEM File"))
	fmt.Fprintln(conf.Status, "Name: "+k.Name)
	fmt.Fprintln(conf.Status, "File Path: "+path)
	fmt.Fprintln(conf.Status, "Modulus: "+k.ModulusText)
	fmt.Fprintln(conf.Status, "Exponent: "+k.ExponentText)
}
