package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora/v3"
	"github.com/runZeroInc/rsapem/badkeys"
	"github.com/runZeroInc/rsapem/keysrc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// convertCmd encodes one or more keys as PEM
var convertCmd = &cobra.Command{
	Use:   "convert [--modulus <b64> --exponent <b64> | --gateway-json gw.json | --jwk jwks.json | --authorized-keys keys] [-o key.pem | --output-dir keys/]",
	Short: "Converts an RSA modulus and exponent into a PEM public key",
	Long:  "Converts an RSA modulus and exponent into a PEM public key (X.509 SubjectPublicKeyInfo)",
	Run:   runConvert,
}

var (
	gOutput          string
	gOutputDir       string
	gCheckBadKeys    bool
	gBadKeysCacheDir string
)

// Config holds the state shared by a single command invocation
type Config struct {
	Logger  *logrus.Logger
	Status  io.Writer
	Color   aurora.Aurora
	closers []io.Closer
}

func (conf *Config) Close() {
	for _, c := range conf.closers {
		_ = c.Close()
	}
	conf.closers = nil
}

// keySources names every input the convert command can read keys from
type keySources struct {
	Name           string
	Modulus        string
	Exponent       string
	GatewayJSON    string
	JWK            string
	AuthorizedKeys string
}

var errNoInput = errors.New("no input supplied (use --modulus/--exponent, --gateway-json, --jwk or --authorized-keys)")

func init() {
	convertCmd.Flags().String("modulus", "", "The base64 encoded RSA modulus")
	convertCmd.Flags().String("exponent", "", "The base64 encoded RSA public exponent")
	convertCmd.Flags().String("name", "key", "The name reported for --modulus/--exponent input")
	convertCmd.Flags().String("gateway-json", "", "A Power BI getGateway or getGateways response file")
	convertCmd.Flags().String("jwk", "", "A JSON Web Key or JWK Set file")
	convertCmd.Flags().String("authorized-keys", "", "An OpenSSH authorized_keys file with ssh-rsa keys")
	for _, name := range []string{"modulus", "exponent", "name", "gateway-json", "jwk", "authorized-keys"} {
		_ = viper.BindPFlag(name, convertCmd.Flags().Lookup(name))
	}

	convertCmd.Flags().StringVarP(&gOutput, "output", "o", "-", "The destination file for PEM output (default is stdout)")
	convertCmd.Flags().StringVar(&gOutputDir, "output-dir", "", "Write one <name>.pem file per key into this directory")
	convertCmd.Flags().BoolVar(&gCheckBadKeys, "check-badkeys", false, "Warn when a key is in the cached badkeys.info blocklist")
	convertCmd.Flags().StringVar(&gBadKeysCacheDir, "badkeys-cache", "", "The badkeys cache directory (default is the user cache directory)")
}

func sourcesFromConfig() keySources {
	return keySources{
		Name:           viper.GetString("name"),
		Modulus:        viper.GetString("modulus"),
		Exponent:       viper.GetString("exponent"),
		GatewayJSON:    viper.GetString("gateway-json"),
		JWK:            viper.GetString("jwk"),
		AuthorizedKeys: viper.GetString("authorized-keys"),
	}
}

func newConfig() *Config {
	conf := &Config{Status: os.Stderr}
	configureLogging(conf)
	conf.Color = aurora.NewAurora(isTerminal(os.Stderr))
	return conf
}

func runConvert(cmd *cobra.Command, args []string) {
	conf := newConfig()
	defer conf.Close()

	keys, err := collectKeys(conf.Logger, sourcesFromConfig())
	if err != nil {
		conf.Logger.Fatalf("failed to read keys: %v", err)
	}

	if gCheckBadKeys {
		cache := badkeys.NewCache(conf.Logger)
		if gBadKeysCacheDir != "" {
			cache.SetCacheDir(gBadKeysCacheDir)
		}
		checkBadKeys(conf, cache, keys)
	}

	if gOutputDir != "" {
		paths, err := writePEMFiles(gOutputDir, keys)
		if err != nil {
			conf.Logger.Fatalf("failed to write keys: %v", err)
		}
		for i, k := range keys {
			conf.printStatus(k, paths[i])
		}
		return
	}

	w := io.Writer(os.Stdout)
	path := "stdout"
	if gOutput != "" && gOutput != "-" && gOutput != "stdout" {
		fd, err := os.Create(gOutput)
		if err != nil {
			conf.Logger.Fatalf("failed to create %s: %v", gOutput, err)
		}
		w, path = fd, gOutput
		conf.closers = append(conf.closers, fd)
	}
	if err := writePEM(w, keys); err != nil {
		conf.Logger.Fatalf("failed to write %s: %v", path, err)
	}
	for _, k := range keys {
		conf.printStatus(k, path)
	}
}

// collectKeys reads every configured source in a fixed order
func collectKeys(lgr *logrus.Logger, src keySources) ([]*keysrc.Key, error) {
	res := []*keysrc.Key{}

	if src.Modulus != "" || src.Exponent != "" {
		k, err := keysrc.FromBase64(src.Name, src.Modulus, src.Exponent)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}

	readFile := func(path string, fn func(io.Reader) ([]*keysrc.Key, error)) error {
		fd, err := os.Open(path)
		if err != nil {
			return err
		}
		defer fd.Close()
		keys, err := fn(fd)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		lgr.Debugf("read %d keys from %s", len(keys), path)
		res = append(res, keys...)
		return nil
	}
	if src.GatewayJSON != "" {
		if err := readFile(src.GatewayJSON, keysrc.FromGatewayJSON); err != nil {
			return nil, err
		}
	}
	if src.JWK != "" {
		if err := readFile(src.JWK, keysrc.FromJWK); err != nil {
			return nil, err
		}
	}

	if src.AuthorizedKeys != "" {
		akf := keysrc.NewAuthorizedKeysFile(src.AuthorizedKeys, lgr)
		if err := akf.Open(); err != nil {
			return nil, err
		}
		keys, err := akf.Read(0)
		akf.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.AuthorizedKeys, err)
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("%s: %w", src.AuthorizedKeys, keysrc.ErrNoKeys)
		}
		lgr.Debugf("read %d keys from %s", len(keys), src.AuthorizedKeys)
		res = append(res, keys...)
	}

	if len(res) == 0 {
		return nil, errNoInput
	}
	return res, nil
}

type modulusChecker interface {
	Check(modulus []byte) (*badkeys.Result, error)
}

// checkBadKeys logs a warning for every key found in the blocklist and
// returns the number of matches
func checkBadKeys(conf *Config, checker modulusChecker, keys []*keysrc.Key) int {
	found := 0
	for _, k := range keys {
		res, err := checker.Check(k.Modulus)
		if err != nil {
			conf.Logger.Warnf("badkeys check unavailable: %v (try badkeys-update)", err)
			return found
		}
		if res == nil {
			conf.Logger.Debugf("%s is not in the badkeys blocklist", k.Name)
			continue
		}
		found++
		conf.Logger.WithFields(logrus.Fields{
			"id":        res.GetID(),
			"blocklist": res.ListDate,
		}).Warnf("%s is a known compromised key (%s %s)", k.Name, res.RepoName, res.ToURL())
	}
	return found
}
