package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xabinapal/esdsn/internal/cloudid"
	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/connstr"
	"github.com/xabinapal/esdsn/internal/editor"
	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/probe"
	"github.com/xabinapal/esdsn/internal/profile"
	"github.com/xabinapal/esdsn/internal/trust"
	"github.com/xabinapal/esdsn/internal/utils"
)

// unsavedDSNName names a DSN tested straight from a connection string.
const unsavedDSNName = "unsaved"

// errConnectionFailed makes a failed connection test exit non-zero.
var errConnectionFailed = errors.New("connection test failed")

// DSNLoggingOutput is the driver logging part of DSNOutput.
type DSNLoggingOutput struct {
	Level     string `json:"level"`
	Directory string `json:"directory"`
}

// DSNOutput represents a stored DSN for display. It never carries the password.
type DSNOutput struct {
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	CloudID         string            `json:"cloud_id,omitempty"`
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	Username        string            `json:"username,omitempty"`
	PasswordSet     bool              `json:"password_set"`
	Trust           string            `json:"trust"`
	CertificatePath string            `json:"certificate_path,omitempty"`
	Logging         *DSNLoggingOutput `json:"logging,omitempty"`
}

// DSNListOutput represents dsn list output for JSON.
type DSNListOutput struct {
	DSNs []DSNOutput `json:"dsns"`
}

// ViolationOutput is one failed validation rule.
type ViolationOutput struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationOutput lists every rule a DSN violates.
type ValidationOutput struct {
	DSN        string            `json:"dsn"`
	Valid      bool              `json:"valid"`
	Violations []ViolationOutput `json:"violations,omitempty"`
}

// TestOutput represents a connection test result for JSON.
type TestOutput struct {
	DSN     string        `json:"dsn"`
	Outcome probe.Outcome `json:"outcome"`
}

// ConnStrOutput represents dsn connstr output for JSON.
type ConnStrOutput struct {
	DSN              string `json:"dsn"`
	ConnectionString string `json:"connection_string"`
}

func newDSNOutput(p profile.Profile) DSNOutput {
	out := DSNOutput{
		Name:            p.Name,
		Description:     p.Description,
		CloudID:         p.CloudID,
		Host:            p.Host,
		Port:            p.Port,
		Username:        p.Username,
		PasswordSet:     p.Password != "",
		Trust:           p.Trust.String(),
		CertificatePath: p.CertificatePath,
	}
	if p.Logging.Enabled {
		out.Logging = &DSNLoggingOutput{
			Level:     p.Logging.Level.String(),
			Directory: p.Logging.Directory,
		}
	}
	return out
}

// newDSNCmd creates the dsn command group.
func (cli *CLI) newDSNCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dsn",
		Aliases: []string{"dsns"},
		Short:   "Manage Elasticsearch ODBC data source names",
		Long: `Manage the data source names used by the Elasticsearch ODBC driver.

Examples:
  # List all DSNs
  esdsn dsn list

  # Add a DSN for a self-managed cluster
  esdsn dsn add local --host=localhost --port=9200 --user=elastic --password-stdin

  # Add a DSN for an Elastic Cloud deployment
  esdsn dsn add cloud --cloud-id='my-deployment:ZXUtd2VzdC0x...' --user=elastic

  # Test a DSN
  esdsn dsn test local

  # Print the ODBC connection string of a DSN
  esdsn dsn connstr local`,
	}

	cmd.AddCommand(
		cli.newDSNListCmd(),
		cli.newDSNShowCmd(),
		cli.newDSNAddCmd(),
		cli.newDSNEditCmd(),
		cli.newDSNRemoveCmd(),
		cli.newDSNValidateCmd(),
		cli.newDSNTestCmd(),
		cli.newDSNConnStrCmd(),
	)

	return cmd
}

// newDSNListCmd creates the dsn list command.
func (cli *CLI) newDSNListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all configured DSNs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.runDSNList(cmd.Context())
		},
	}
}

func (cli *CLI) runDSNList(ctx context.Context) error {
	output := cli.output()

	names, err := cli.Store.List(ctx)
	if err != nil {
		return err
	}

	list := DSNListOutput{DSNs: make([]DSNOutput, 0, len(names))}
	for _, name := range names {
		p, err := cli.Store.Load(ctx, name)
		if err != nil {
			return err
		}
		list.DSNs = append(list.DSNs, newDSNOutput(p))
	}

	if len(list.DSNs) == 0 {
		return output.Write(list, func(w io.Writer) {
			fmt.Fprintln(w, "No DSNs configured.")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Add one with: esdsn dsn add <name> --host=<host>")
		})
	}

	return output.Write(list, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tENDPOINT\tTRUST\tUSER")
		for _, d := range list.DSNs {
			endpoint := fmt.Sprintf("%s:%d", d.Host, d.Port)
			if d.CloudID != "" {
				endpoint += " (cloud)"
			}
			user := d.Username
			if user == "" {
				user = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, endpoint, d.Trust, user)
		}
		// #nosec G104 - Flush error on stdout; if write fails, user will see incomplete output
		_ = tw.Flush()
	})
}

// newDSNShowCmd creates the dsn show command.
func (cli *CLI) newDSNShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <name>",
		Aliases:           []string{"get"},
		Short:             "Show the settings of a DSN",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := newDSNOutput(p)

			return cli.output().Write(out, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
				if p.Description != "" {
					fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
				}
				if p.CloudID != "" {
					fmt.Fprintf(tw, "Cloud ID:\t%s\n", p.CloudID)
				}
				fmt.Fprintf(tw, "Host:\t%s\n", p.Host)
				fmt.Fprintf(tw, "Port:\t%d\n", p.Port)
				fmt.Fprintf(tw, "User:\t%s\n", p.Username)
				password := utils.Redact(p.Password)
				if password == "" {
					password = "(not set)"
				}
				fmt.Fprintf(tw, "Password:\t%s\n", password)
				fmt.Fprintf(tw, "Trust:\t%s (Secure=%d)\n", p.Trust, int(p.Trust))
				if p.CertificatePath != "" {
					fmt.Fprintf(tw, "Certificate:\t%s\n", p.CertificatePath)
				}
				if p.Logging.Enabled {
					fmt.Fprintf(tw, "Logging:\t%s to %s\n", p.Logging.Level, p.Logging.Directory)
				} else {
					fmt.Fprintln(tw, "Logging:\tdisabled")
				}
				// #nosec G104 - Flush error on stdout; if write fails, user will see incomplete output
				_ = tw.Flush()
			})
		},
	}
}

// dsnFlags are the editable DSN settings shared by add, edit and test.
type dsnFlags struct {
	name          string
	description   string
	cloudID       string
	host          string
	port          int
	username      string
	passwordStdin bool
	trust         string
	certificate   string
	logEnabled    bool
	logLevel      string
	logDir        string
	fromConnStr   string
}

func (f *dsnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&f.cloudID, "cloud-id", "", "Elastic Cloud ID; overrides --host and --port")
	cmd.Flags().StringVar(&f.host, "host", "", "Elasticsearch host")
	cmd.Flags().IntVar(&f.port, "port", profile.DefaultPort, "Elasticsearch HTTP port")
	cmd.Flags().StringVarP(&f.username, "user", "u", "", "User name")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&f.trust, "trust", "", "TLS trust level: disabled, no-validation, no-hostname, hostname, full (or 0-4)")
	cmd.Flags().StringVar(&f.certificate, "ca-cert", "", "Path to the CA certificate file")
	cmd.Flags().BoolVar(&f.logEnabled, "log", false, "Enable driver logging")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Driver log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logDir, "log-dir", "", "Driver log directory (default: the esdsn log directory)")
	cmd.Flags().StringVar(&f.fromConnStr, "from-connstr", "", "Start from an ODBC connection string")
}

// apply copies every flag the user set onto p. Flags left unset keep the
// draft value.
func (f *dsnFlags) apply(cmd *cobra.Command, in io.Reader, p *profile.Profile) error {
	changed := cmd.Flags().Changed

	if changed("from-connstr") {
		parsed, err := connstr.Parse(f.fromConnStr)
		if err != nil {
			return fmt.Errorf("invalid --from-connstr: %w", err)
		}
		if p.Name != "" {
			parsed.Name = p.Name
		}
		*p = parsed
	}

	if changed("name") {
		p.Name = f.name
	}
	if changed("description") {
		p.Description = f.description
	}
	if changed("cloud-id") {
		p.CloudID = f.cloudID
	}
	if changed("host") {
		p.Host = f.host
	}
	if changed("port") {
		p.Port = f.port
	}
	if changed("user") {
		p.Username = f.username
	}
	if f.passwordStdin {
		password, err := readPassword(in)
		if err != nil {
			return err
		}
		p.Password = password
	}
	if changed("trust") {
		level, err := trust.ParseLevel(f.trust)
		if err != nil {
			return fmt.Errorf("invalid --trust: %w", err)
		}
		p.Trust = level
	}
	if changed("ca-cert") {
		p.CertificatePath = f.certificate
	}
	if changed("log") {
		p.Logging.Enabled = f.logEnabled
	}
	if changed("log-level") {
		level, err := logging.ParseLevel(f.logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		p.Logging.Level = level
	}
	if changed("log-dir") {
		p.Logging.Directory = f.logDir
	}
	if p.Logging.Enabled && p.Logging.Directory == "" {
		p.Logging.Directory = config.GetPaths().LogDir
	}

	return nil
}

// readPassword reads a single line from in. An empty line clears the password.
func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newDSNAddCmd creates the dsn add command.
func (cli *CLI) newDSNAddCmd() *cobra.Command {
	var (
		flags    dsnFlags
		testFlag bool
	)

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a new DSN",
		Long: `Add a new Elasticsearch ODBC DSN.

Without a name, one is derived from the host. New DSNs default to port 9200
and the hostname trust level. A Cloud ID
replaces the host and port and never allows a plain HTTP connection.

Examples:
  # Add a DSN with basic authentication
  echo "$ES_PASSWORD" | esdsn dsn add local --host=localhost --user=elastic --password-stdin

  # Add a DSN that pins a private CA
  esdsn dsn add prod --host=es.internal --trust=full --ca-cert=/etc/ssl/es-ca.pem

  # Import a connection string and test it before saving
  esdsn dsn add imported --from-connstr='Server=es.local;Port=9200;Secure=0' --test`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := editor.New(cli.Store, cli.editorOptions(0)...)
			defer s.Cancel()

			var applyErr error
			if err := s.Edit(func(p *profile.Profile) {
				if len(args) == 1 {
					p.Name = args[0]
				}
				if applyErr = flags.apply(cmd, cli.in, p); applyErr != nil {
					return
				}
				if p.Name == "" {
					host := p.Host
					if ep, err := cloudid.Decode(p.CloudID); err == nil {
						host = ep.Host
					}
					p.Name = suggestDSNName(host, storeHas(ctx, cli.Store))
				}
			}); err != nil {
				return err
			}
			if applyErr != nil {
				return applyErr
			}

			return cli.saveSession(ctx, s, testFlag)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&testFlag, "test", false, "Test the connection and only save on success")

	return cmd
}

// newDSNEditCmd creates the dsn edit command.
func (cli *CLI) newDSNEditCmd() *cobra.Command {
	var (
		flags    dsnFlags
		testFlag bool
	)

	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Change the settings of a DSN",
		Long: `Change the settings of an existing DSN. Only the flags given are changed.

Examples:
  # Raise the trust level
  esdsn dsn edit prod --trust=full --ca-cert=/etc/ssl/es-ca.pem

  # Rename a DSN
  esdsn dsn edit prod --name=prod-eu

  # Clear the stored password
  echo "" | esdsn dsn edit prod --password-stdin`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := editor.Open(cmd.Context(), cli.Store, args[0], cli.editorOptions(0)...)
			if err != nil {
				return err
			}
			defer s.Cancel()

			var applyErr error
			if err := s.Edit(func(p *profile.Profile) {
				applyErr = flags.apply(cmd, cli.in, p)
			}); err != nil {
				return err
			}
			if applyErr != nil {
				return applyErr
			}

			return cli.saveSession(cmd.Context(), s, testFlag)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.name, "name", "", "Rename the DSN")
	cmd.Flags().BoolVar(&testFlag, "test", false, "Test the connection and only save on success")

	return cmd
}

// saveSession optionally tests the draft, then saves it.
func (cli *CLI) saveSession(ctx context.Context, s *editor.Session, test bool) error {
	if test {
		o, err := s.RunTest(ctx)
		if err != nil {
			return cli.reportInvalid(s.Draft().Name, err)
		}
		if !o.OK() {
			if err := cli.writeOutcome(s.Draft().Name, o); err != nil {
				return err
			}
			return fmt.Errorf("%w, DSN not saved", errConnectionFailed)
		}
	}

	renamed := !s.IsNew() && s.Original() != s.Draft().Name
	original := s.Original()

	r, err := s.Save(ctx)
	if err != nil {
		return cli.reportInvalid(s.Draft().Name, err)
	}

	out := newDSNOutput(r.Profile())
	return cli.output().Write(out, func(w io.Writer) {
		if renamed {
			fmt.Fprintf(w, "Renamed DSN %q to %q\n", original, r.Name())
		} else {
			fmt.Fprintf(w, "Saved DSN %q\n", r.Name())
		}
		if test {
			fmt.Fprintln(w, "Connection test passed.")
		}
	})
}

// reportInvalid prints every validation violation in err. Other errors are
// returned unchanged.
func (cli *CLI) reportInvalid(name string, err error) error {
	var verrs profile.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := ValidationOutput{DSN: name, Violations: violationsOf(verrs)}

	if werr := cli.output().Write(out, func(w io.Writer) {
		fmt.Fprintf(w, "DSN %q is invalid:\n", name)
		for _, v := range out.Violations {
			fmt.Fprintf(w, "  - %s\n", v.Message)
		}
	}); werr != nil {
		return werr
	}
	return fmt.Errorf("DSN %q has %d validation error(s)", name, len(verrs))
}

// newDSNRemoveCmd creates the dsn remove command.
func (cli *CLI) newDSNRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <name>",
		Aliases:           []string{"rm", "delete"},
		Short:             "Remove a DSN and its stored password",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := cli.Store.Delete(cmd.Context(), name); err != nil {
				return err
			}
			cli.Logger.Info("dsn removed", map[string]interface{}{"dsn": name})
			return cli.output().Write(map[string]string{"removed": name}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed DSN %q\n", name)
			})
		},
	}
}

// newDSNValidateCmd creates the dsn validate command.
func (cli *CLI) newDSNValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "validate <name>",
		Aliases:           []string{"check"},
		Short:             "Check a stored DSN against the validation rules",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := editor.Open(cmd.Context(), cli.Store, args[0], cli.editorOptions(0)...)
			if err != nil {
				return err
			}
			defer s.Cancel()

			if _, err := s.Validate(); err != nil {
				return cli.reportInvalid(args[0], err)
			}
			return cli.output().Write(ValidationOutput{DSN: args[0], Valid: true}, func(w io.Writer) {
				fmt.Fprintf(w, "DSN %q is valid\n", args[0])
			})
		},
	}
}

// newDSNTestCmd creates the dsn test command.
func (cli *CLI) newDSNTestCmd() *cobra.Command {
	var (
		flags   dsnFlags
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test [name]",
		Short: "Test that a DSN can connect and authenticate",
		Long: `Test that a DSN reaches its cluster and that the cluster accepts its
credentials. The DSN is validated first; nothing is sent to the server
while it is invalid. Flags override the stored settings for this test only.

Examples:
  # Test a stored DSN
  esdsn dsn test prod

  # Test with a longer deadline
  esdsn dsn test prod --timeout=30s

  # Test a connection string without saving it
  esdsn dsn test --from-connstr='Server=es.local;Port=9200;UID=elastic;PWD=secret;Secure=0'`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := cli.editorOptions(timeout)

			var s *editor.Session
			if len(args) == 1 {
				var err error
				if s, err = editor.Open(ctx, cli.Store, args[0], opts...); err != nil {
					return err
				}
			} else {
				if !cmd.Flags().Changed("from-connstr") {
					return errors.New("a DSN name or --from-connstr is required")
				}
				s = editor.New(cli.Store, opts...)
			}
			defer s.Cancel()

			var applyErr error
			if err := s.Edit(func(p *profile.Profile) {
				applyErr = flags.apply(cmd, cli.in, p)
				if p.Name == "" {
					p.Name = unsavedDSNName
				}
			}); err != nil {
				return err
			}
			if applyErr != nil {
				return applyErr
			}

			name := s.Draft().Name
			o, err := s.RunTest(ctx)
			if err != nil {
				return cli.reportInvalid(name, err)
			}
			if err := cli.writeOutcome(name, o); err != nil {
				return err
			}
			if !o.OK() {
				return errConnectionFailed
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Connection test deadline (default: probe.timeout from the configuration)")

	return cmd
}

func (cli *CLI) writeOutcome(name string, o probe.Outcome) error {
	return cli.output().Write(TestOutput{DSN: name, Outcome: o}, func(w io.Writer) {
		fmt.Fprintf(w, "DSN %q: %s (%s)\n", name, o, o.Elapsed.Round(time.Millisecond))
	})
}

// newDSNConnStrCmd creates the dsn connstr command.
func (cli *CLI) newDSNConnStrCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "connstr <name>",
		Short:             "Print the ODBC connection string of a DSN",
		Long:              "Print the ODBC connection string of a DSN. The password is never included.",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeDSNNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := editor.Open(cmd.Context(), cli.Store, args[0], cli.editorOptions(0)...)
			if err != nil {
				return err
			}
			defer s.Cancel()

			r, err := s.Validate()
			if err != nil {
				return cli.reportInvalid(args[0], err)
			}

			out := ConnStrOutput{DSN: r.Name(), ConnectionString: connstr.Format(r)}
			return cli.output().Write(out, func(w io.Writer) {
				fmt.Fprintln(w, out.ConnectionString)
			})
		},
	}
}
