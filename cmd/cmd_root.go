package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"

	"github.com/logrusorgru/aurora/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	cfgFile   string
	gLogfile  string
	gLogLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rsapem {convert --modulus <b64> --exponent <b64> -o key.pem}",
	Short: "Converts raw RSA public key parameters into PEM",
	Long: `
` + aurora.BrightCyan("rsapem").String() + ` builds an X.509 SubjectPublicKeyInfo from an RSA modulus and
exponent and writes it as a PEM "PUBLIC KEY" block.

Convert base64 parameters (for example from the Power BI gateway API) using:

$ rsapem convert --modulus <base64> --exponent AQAB -o gateway.pem

Convert every gateway in a getGateways response using:

$ rsapem convert --gateway-json gateways.json --output-dir keys/
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rsapem.json)")
	rootCmd.PersistentFlags().StringVarP(&gLogfile, "log", "l", "-", "The file to write logs to (default is stderr)")
	rootCmd.PersistentFlags().StringVarP(&gLogLevel, "log-level", "L", "info", "The log level to write (trace,debug,info,warn,error)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(badkeysCmd)

	rootCmd.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rsapem" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("json")
		viper.SetConfigName(".rsapem")
	}

	viper.SetEnvPrefix("RSAPEM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var patTerminalEscapeSequences = regexp.MustCompile(`(\x9b|\x1b\[)[0-?]*[ -\/]*[@-~]`)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalModeHook writes log lines to a console, keeping colour only when
// the console is a terminal
type TerminalModeHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
	Formatter logrus.Formatter
	Raw       bool
}

func (hook *TerminalModeHook) Fire(entry *logrus.Entry) error {
	line, err := hook.Formatter.Format(entry)
	if err != nil {
		return err
	}
	line = bytes.ReplaceAll(line, []byte{0x00}, []byte{})
	if !hook.Raw {
		line = patTerminalEscapeSequences.ReplaceAll(line, []byte{})
	}
	_, err = hook.Writer.Write(line)
	return err
}

func (hook *TerminalModeHook) Levels() []logrus.Level {
	return hook.LogLevels
}

type FileModeHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
	Formatter logrus.Formatter
}

func (hook *FileModeHook) Fire(entry *logrus.Entry) error {
	line, err := hook.Formatter.Format(entry)
	if err != nil {
		return err
	}
	line = bytes.ReplaceAll(line, []byte{0x00}, []byte{})

	// Filter terminal escapes
	line = patTerminalEscapeSequences.ReplaceAll(line, []byte{})

	_, err = hook.Writer.Write(line)
	return err
}

func (hook *FileModeHook) Levels() []logrus.Level {
	return hook.LogLevels
}

func parseLogLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

func configureLogging(conf *Config) {
	logger := logrus.New()
	logger.Level = parseLogLevel(gLogLevel)

	// Store the logger in the config
	conf.Logger = logger

	// Discard and use the hooks instead
	logger.Out = io.Discard

	if gLogfile != "" && gLogfile != "-" {
		logFD, err := os.OpenFile(gLogfile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			logrus.Fatalf("can't open log '%s': %v", gLogfile, err)
		}
		conf.closers = append(conf.closers, logFD)

		logger.AddHook(&FileModeHook{
			Writer:    logFD,
			LogLevels: logrus.AllLevels,
			Formatter: &logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
				DisableColors:   true,
			},
		})
		return
	}

	tty := isTerminal(os.Stderr)
	logger.AddHook(&TerminalModeHook{
		Writer:    os.Stderr,
		LogLevels: logrus.AllLevels,
		Formatter: &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceColors:     tty,
		},
		Raw: tty,
	})
}
