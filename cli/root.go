/*
Package cli implements the quelio command line.

COMMANDS:
  serve                 Run the HTTP API (graceful shutdown on SIGINT/SIGTERM)
  compute FILE          Compute a report from a JSON punch file
  fetch --user U        Log into the portal and print the current report
  credentials set|delete --user U
                        Manage the portal password in the OS keyring
  config init [PATH]    Write an annotated configuration file
  admin hash            Print a bcrypt hash for admin_password_hash

GLOBAL FLAGS:
  --config PATH   JSON configuration (defaults when omitted)
  --debug         Debug logging, mirrored to stderr

SEE ALSO:
  - config package: keys and environment overrides
  - api package: the server started by "serve"
*/
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/config"
	"github.com/quelio/engine/logger"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	debug      bool

	cfg config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "quelio",
		Short: "Quelio - working time accounting on top of a Kelio portal",
		Long: `quelio reads badge punches from a Kelio portal, computes effective and
paid working time per day and per ISO week, and serves the result to the
Quel io web app.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("QUELIO_CONFIG"), "Path to the JSON configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newComputeCmd(a),
		newFetchCmd(a),
		newCredentialsCmd(),
		newConfigCmd(),
		newAdminCmd(),
	)
	return root
}

// skipConfig lets a command run without loading the configuration.
func skipConfig(*cobra.Command, []string) error { return nil }

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return logger.Init(logger.Config{Debug: cfg.Debug, Dir: cfg.LogDir})
}

// readSecret returns flagValue, or the first line of in when it is empty.
func readSecret(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty secret")
	}
	return line, nil
}
