package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/keyring"
	"github.com/xabinapal/esdsn/internal/profile"
)

// doctorTimeout bounds the whole diagnostics run.
const doctorTimeout = 60 * time.Second

// CheckResult represents the result of a diagnostic check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// CheckStatus represents the status of a diagnostic check.
type CheckStatus int

const (
	// CheckOK indicates the check passed.
	CheckOK CheckStatus = iota
	// CheckWarning indicates a non-critical issue.
	CheckWarning
	// CheckError indicates a critical failure.
	CheckError
	// CheckSkipped indicates the check was skipped.
	CheckSkipped
)

// String returns the status name.
func (s CheckStatus) String() string {
	switch s {
	case CheckOK:
		return "OK"
	case CheckWarning:
		return "WARN"
	case CheckError:
		return "ERROR"
	case CheckSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Icon returns the status icon for display.
func (s CheckStatus) Icon() string {
	switch s {
	case CheckOK:
		return "[OK]"
	case CheckWarning:
		return "[!!]"
	case CheckError:
		return "[XX]"
	case CheckSkipped:
		return "[--]"
	default:
		return "[??]"
	}
}

// MarshalJSON implements json.Marshaler.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DoctorOutput represents the doctor command output for JSON.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks"`
	HasErrors   bool          `json:"has_errors"`
	HasWarnings bool          `json:"has_warnings"`
}

// newDoctorCmd creates the doctor command.
func (cli *CLI) newDoctorCmd() *cobra.Command {
	var (
		verbose   bool
		probeDSNs bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify and troubleshoot common issues.

The doctor command checks:
  - Configuration file validity
  - Keyring availability
  - Trace log directory
  - Every configured DSN against the validation rules

With --probe every valid DSN is also connection tested.

Examples:
  # Run diagnostics
  esdsn doctor

  # Also test every DSN, showing suggested fixes
  esdsn doctor --probe --verbose

  # Output as JSON
  esdsn doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			results := cli.runDiagnostics(ctx, probeDSNs)

			output := DoctorOutput{Checks: results}
			for _, r := range results {
				if r.Status == CheckError {
					output.HasErrors = true
				}
				if r.Status == CheckWarning {
					output.HasWarnings = true
				}
			}

			writeErr := cli.output().Write(output, func(w io.Writer) {
				fmt.Fprintln(w, "esdsn Diagnostics")
				fmt.Fprintln(w, "=================")
				fmt.Fprintln(w)

				for _, r := range results {
					fmt.Fprintf(w, "%s %s", r.Status.Icon(), r.Name)
					if r.Message != "" {
						fmt.Fprintf(w, ": %s", r.Message)
					}
					fmt.Fprintln(w)

					if (r.Status == CheckError || r.Status == CheckWarning) && r.Fix != "" && verbose {
						fmt.Fprintf(w, "      -> %s\n", r.Fix)
					}
				}

				fmt.Fprintln(w)
				switch {
				case output.HasErrors:
					fmt.Fprintln(w, "Some checks failed. Run with --verbose for suggested fixes.")
				case output.HasWarnings:
					fmt.Fprintln(w, "All critical checks passed with some warnings.")
				default:
					fmt.Fprintln(w, "All checks passed!")
				}
			})

			if writeErr != nil {
				return writeErr
			}

			if output.HasErrors {
				return fmt.Errorf("diagnostics failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Show detailed output and suggested fixes")
	cmd.Flags().BoolVar(&probeDSNs, "probe", false, "Connection test every valid DSN")

	return cmd
}

func (cli *CLI) runDiagnostics(ctx context.Context, probeDSNs bool) []CheckResult {
	var results []CheckResult

	results = append(results, cli.checkConfigFile())
	results = append(results, cli.checkKeyring())
	results = append(results, cli.checkLogDirectory())
	results = append(results, cli.checkDSNs(ctx, probeDSNs)...)

	return results
}

func (cli *CLI) checkConfigFile() CheckResult {
	path := cli.Config.FilePath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Configuration file",
			Status:  CheckWarning,
			Message: "not found",
			Fix:     "Run 'esdsn dsn add' to create a DSN and the configuration file",
		}
	}

	// Re-read the file; the loaded copy may have been created from defaults.
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return CheckResult{
			Name:    "Configuration file",
			Status:  CheckError,
			Message: fmt.Sprintf("invalid: %v", err),
			Fix:     "Run 'esdsn config edit' to fix the file",
		}
	}

	return CheckResult{
		Name:    "Configuration file",
		Status:  CheckOK,
		Message: fmt.Sprintf("found (%d DSNs)", len(cfg.DSNs)),
	}
}

func (cli *CLI) checkKeyring() CheckResult {
	if err := cli.Keyring.IsAvailable(); err != nil {
		return CheckResult{
			Name:    "Keyring",
			Status:  CheckError,
			Message: fmt.Sprintf("unavailable: %v", err),
			Fix:     "Install and configure a keyring service (gnome-keyring, kwallet, or macOS Keychain)",
		}
	}

	var keyringType string
	switch cli.Keyring.(type) {
	case *keyring.DirStore:
		keyringType = "directory-based (test mode)"
	case *keyring.MockStore:
		keyringType = "in-memory"
	default:
		keyringType = "OS keyring"
	}

	return CheckResult{
		Name:    "Keyring",
		Status:  CheckOK,
		Message: keyringType,
	}
}

func (cli *CLI) checkLogDirectory() CheckResult {
	dir := config.GetPaths().LogDir
	if !(profile.OSFileSystem{}).IsWritableDirectory(dir) {
		return CheckResult{
			Name:    "Trace log directory",
			Status:  CheckWarning,
			Message: fmt.Sprintf("%s is not writable", dir),
			Fix:     "Pass --log-dir when enabling driver logging on a DSN",
		}
	}
	return CheckResult{
		Name:    "Trace log directory",
		Status:  CheckOK,
		Message: dir,
	}
}

func (cli *CLI) checkDSNs(ctx context.Context, probeDSNs bool) []CheckResult {
	names, err := cli.Store.List(ctx)
	if err != nil {
		return []CheckResult{{
			Name:    "DSNs",
			Status:  CheckError,
			Message: err.Error(),
		}}
	}
	if len(names) == 0 {
		return []CheckResult{{
			Name:    "DSNs",
			Status:  CheckWarning,
			Message: "no DSNs configured",
			Fix:     "Run 'esdsn dsn add <name> --host=<host>' to create one",
		}}
	}

	validator := profile.NewValidator()
	prober := cli.newProber(0)

	var results []CheckResult
	for _, name := range names {
		check := "DSN " + name

		p, err := cli.Store.Load(ctx, name)
		if err != nil {
			results = append(results, CheckResult{
				Name:    check,
				Status:  CheckError,
				Message: err.Error(),
				Fix:     "Run 'esdsn dsn edit " + name + " --password-stdin' to store the password again",
			})
			continue
		}

		r, err := validator.Validate(p)
		if err != nil {
			results = append(results, CheckResult{
				Name:    check,
				Status:  CheckError,
				Message: err.Error(),
				Fix:     "Run 'esdsn dsn edit " + name + "' to fix the settings",
			})
			continue
		}

		if !probeDSNs {
			results = append(results, CheckResult{
				Name:    check,
				Status:  CheckOK,
				Message: "valid (" + r.Profile().Address() + ")",
			})
			continue
		}

		o := prober.Probe(ctx, r)
		result := CheckResult{
			Name:    check,
			Status:  CheckOK,
			Message: o.String(),
		}
		if !o.OK() {
			result.Status = CheckError
			result.Fix = "Run 'esdsn dsn test " + name + " --verbose' for details"
		}
		results = append(results, result)
	}

	return results
}
