// Package cli provides the command-line interface for esdsn.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/editor"
	"github.com/xabinapal/esdsn/internal/keyring"
	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/notify"
	"github.com/xabinapal/esdsn/internal/probe"
	"github.com/xabinapal/esdsn/internal/store"
)

// CLI holds the application state for the CLI.
type CLI struct {
	Config  *config.Config
	Keyring keyring.Store
	Store   store.Store
	Logger  *logging.Logger
	rootCmd *cobra.Command

	in  io.Reader
	out io.Writer

	// Test seams
	probeClient   probe.Client
	notifyBackend notify.Backend

	// Flags
	configFlag  string
	verboseFlag bool
	outputFlag  string
}

// Option configures a CLI.
type Option func(*CLI)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(cli *CLI) {
		cli.in = in
		cli.out = out
	}
}

// WithKeyring replaces the platform keyring.
func WithKeyring(k keyring.Store) Option {
	return func(cli *CLI) {
		cli.Keyring = k
	}
}

// WithProbeClient replaces the network client used by connection tests.
func WithProbeClient(c probe.Client) Option {
	return func(cli *CLI) {
		cli.probeClient = c
	}
}

// WithNotifyBackend replaces the desktop notification backend.
func WithNotifyBackend(b notify.Backend) Option {
	return func(cli *CLI) {
		cli.notifyBackend = b
	}
}

// New creates a new CLI instance.
func New(opts ...Option) *CLI {
	cli := &CLI{
		in:  os.Stdin,
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(cli)
	}
	if cli.Keyring == nil {
		cli.Keyring = keyring.DefaultStore()
	}

	cli.rootCmd = &cobra.Command{
		Use:   "esdsn [command]",
		Short: "esdsn - Elasticsearch ODBC DSN manager",
		Long: `esdsn creates, edits and tests the data source names used by the
Elasticsearch ODBC driver.

A DSN is validated before it is saved: the endpoint (host and port, or an
Elastic Cloud ID), the TLS trust level and the driver logging settings are
checked together and every problem is reported at once. Passwords are kept
in the system keyring, never in the configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
	}
	cli.rootCmd.SetIn(cli.in)
	cli.rootCmd.SetOut(cli.out)

	// Global flags
	cli.rootCmd.PersistentFlags().StringVarP(&cli.configFlag, "config", "c", "", "Path to the configuration file")
	cli.rootCmd.PersistentFlags().BoolVarP(&cli.verboseFlag, "verbose", "v", false, "Enable verbose output")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json)")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newDSNCmd(),
		cli.newCloudIDCmd(),
		cli.newConfigCmd(),
		cli.newDoctorCmd(),
		cli.newCompletionCmd(),
	)
}

// initialize loads configuration and wires the storage and logging layers.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	if _, err := ParseOutputFormat(cli.outputFlag); err != nil {
		return err
	}

	if err := cli.loadConfig(); err != nil {
		return err
	}

	// Without a log file the application log only reaches stderr in verbose mode.
	if cli.Config.LogFile == "" && !cli.verboseFlag {
		cli.Logger = logging.Discard()
	} else {
		logger, err := logging.New(cli.Config.LoggerConfig(cli.verboseFlag))
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		cli.Logger = logger
	}

	cli.Store = store.NewFileStore(cli.Config, cli.Keyring)
	cli.Logger.Debug("configuration loaded", map[string]interface{}{
		"command": cmd.CommandPath(),
		"path":    cli.Config.FilePath(),
		"dsns":    len(cli.Config.DSNs),
	})
	return nil
}

func (cli *CLI) loadConfig() error {
	if cli.Config != nil {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if cli.configFlag != "" {
		cfg, err = config.LoadFrom(cli.configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.Config = cfg
	return nil
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	defer func() {
		if cli.Logger != nil {
			_ = cli.Logger.Close()
		}
	}()
	return cli.rootCmd.ExecuteContext(ctx)
}

// newProber builds a prober honouring the configured timeout unless
// timeout overrides it.
func (cli *CLI) newProber(timeout time.Duration) *probe.Prober {
	if timeout <= 0 {
		timeout = cli.Config.Probe.Timeout
	}
	opts := []probe.Option{
		probe.WithLogger(cli.Logger),
		probe.WithTimeout(timeout),
	}
	if cli.probeClient != nil {
		opts = append(opts, probe.WithClient(cli.probeClient))
	}
	return probe.New(opts...)
}

func (cli *CLI) newNotifier() notify.Notifier {
	var opts []notify.Option
	if cli.notifyBackend != nil {
		opts = append(opts, notify.WithBackend(cli.notifyBackend))
	}
	return notify.New(cli.Config.Notifications, opts...)
}

// editorOptions wires an editing session to the CLI's collaborators.
func (cli *CLI) editorOptions(timeout time.Duration) []editor.Option {
	return []editor.Option{
		editor.WithLogger(cli.Logger),
		editor.WithProber(cli.newProber(timeout)),
		editor.WithNotifier(cli.newNotifier()),
	}
}

// output returns the writer for the selected output format.
func (cli *CLI) output() *OutputWriter {
	format, err := ParseOutputFormat(cli.outputFlag)
	if err != nil {
		format = OutputFormatText
	}
	return NewOutputWriter(format, cli.out)
}

// getDSNNames returns the stored DSN names for shell completion.
func (cli *CLI) getDSNNames() []string {
	if err := cli.loadConfig(); err != nil {
		return nil
	}
	return cli.Config.DSNNames()
}

func (cli *CLI) completeDSNNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cli.getDSNNames(), cobra.ShellCompDirectiveNoFileComp
}
