package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/profile"
	"github.com/xabinapal/esdsn/internal/store"
)

// configPathOutput represents config path output for JSON.
type configPathOutput struct {
	ConfigFile   string `json:"config_file"`
	ConfigDir    string `json:"config_dir"`
	LogDir       string `json:"log_dir"`
	ConfigExists bool   `json:"config_exists"`
}

// configValidationOutput represents config validate output for JSON.
type configValidationOutput struct {
	Valid         bool               `json:"valid"`
	DSNs          []ValidationOutput `json:"dsns"`
	ProbeTimeout  string             `json:"probe_timeout"`
	Notifications bool               `json:"notifications"`
	Errors        []string           `json:"errors,omitempty"`
}

// newConfigCmd creates the config command group.
func (cli *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage esdsn configuration",
	}

	cmd.AddCommand(
		cli.newConfigPathCmd(),
		cli.newConfigEditCmd(),
		cli.newConfigValidateCmd(),
	)

	return cmd
}

// newConfigPathCmd creates the config path command.
func (cli *CLI) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := config.GetPaths()
			configFile := cli.Config.FilePath()

			_, configErr := os.Stat(configFile)
			output := configPathOutput{
				ConfigFile:   configFile,
				ConfigDir:    paths.ConfigDir,
				LogDir:       paths.LogDir,
				ConfigExists: configErr == nil,
			}

			return cli.output().Write(output, func(w io.Writer) {
				fmt.Fprintln(w, "Configuration paths:")
				fmt.Fprintf(w, "  Config file:  %s\n", output.ConfigFile)
				fmt.Fprintf(w, "  Config dir:   %s\n", output.ConfigDir)
				fmt.Fprintf(w, "  Trace logs:   %s\n", output.LogDir)

				fmt.Fprintln(w, "\nStatus:")
				if output.ConfigExists {
					fmt.Fprintln(w, "  Config file exists")
				} else {
					fmt.Fprintln(w, "  Config file does not exist")
				}
			})
		},
	}
}

// newConfigEditCmd creates the config edit command.
func (cli *CLI) newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open configuration file in editor",
		Long: `Open the configuration file in $EDITOR. Passwords are not stored in
this file; use 'esdsn dsn edit <name> --password-stdin' to change them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = os.Getenv("VISUAL")
			}
			if editor == "" {
				for _, e := range []string{"vim", "vi", "nano", "notepad"} {
					if _, err := exec.LookPath(e); err == nil {
						editor = e
						break
					}
				}
			}
			if editor == "" {
				return fmt.Errorf("no editor found: set $EDITOR environment variable")
			}

			configPath := cli.Config.FilePath()

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := cli.Config.Save(); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
			}

			// #nosec G204 - editor is from $EDITOR env var (user-controlled but expected), configPath is from config file path (controlled)
			editorCmd := exec.CommandContext(cmd.Context(), editor, configPath)
			editorCmd.Stdin = cli.in
			editorCmd.Stdout = cli.out
			editorCmd.Stderr = os.Stderr

			return editorCmd.Run()
		},
	}
}

// newConfigValidateCmd creates the config validate command.
func (cli *CLI) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file and every DSN in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			validator := profile.NewValidator()

			result := configValidationOutput{
				Valid:         true,
				DSNs:          make([]ValidationOutput, 0, len(cli.Config.DSNs)),
				ProbeTimeout:  cli.Config.Probe.Timeout.String(),
				Notifications: cli.Config.Notifications.Enabled,
			}

			names, err := cli.Store.List(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				dv := ValidationOutput{DSN: name, Valid: true}

				p, err := cli.Store.Load(ctx, name)
				if err != nil {
					dv.Valid = false
					dv.Violations = append(dv.Violations, ViolationOutput{Kind: "Storage", Message: err.Error()})
				} else if _, err := validator.Validate(p); err != nil {
					dv.Valid = false
					dv.Violations = violationsOf(err)
				}

				if !dv.Valid {
					result.Valid = false
					for _, v := range dv.Violations {
						result.Errors = append(result.Errors, fmt.Sprintf("dsn %s: %s", name, v.Message))
					}
				}
				result.DSNs = append(result.DSNs, dv)
			}

			writeErr := cli.output().Write(result, func(w io.Writer) {
				fmt.Fprintln(w, "Configuration validation:")

				for _, dv := range result.DSNs {
					if dv.Valid {
						fmt.Fprintf(w, "\nDSN: %s (valid)\n", dv.DSN)
						continue
					}
					fmt.Fprintf(w, "\nDSN: %s (invalid)\n", dv.DSN)
					for _, v := range dv.Violations {
						fmt.Fprintf(w, "  - %s\n", v.Message)
					}
				}

				fmt.Fprintf(w, "\nConnection tests time out after %s\n", result.ProbeTimeout)
				if result.Notifications {
					fmt.Fprintln(w, "Desktop notifications are enabled")
				}

				fmt.Fprintln(w)
				if result.Valid {
					fmt.Fprintln(w, "Configuration is valid")
				} else {
					fmt.Fprintln(w, "Configuration has errors")
				}
			})

			if writeErr != nil {
				return writeErr
			}

			if !result.Valid {
				return fmt.Errorf("configuration has errors")
			}
			return nil
		},
	}
}

// violationsOf converts validation errors for display. Any other error
// becomes a single entry.
func violationsOf(err error) []ViolationOutput {
	var verrs profile.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ViolationOutput{{Kind: "Unknown", Message: err.Error()}}
	}
	out := make([]ViolationOutput, 0, len(verrs))
	for _, v := range verrs {
		out = append(out, ViolationOutput{
			Kind:    v.Kind.String(),
			Field:   v.Field,
			Message: v.Error(),
		})
	}
	return out
}

const maxNameSuggestions = 100

// suggestDSNName suggests a DSN name based on the host, avoiding names
// already in use.
func suggestDSNName(host string, taken func(string) bool) string {
	name := strings.TrimSpace(host)

	// Remove port
	if h, _, err := net.SplitHostPort(name); err == nil {
		name = h
	}

	// Remove domain suffix for common patterns
	name = strings.TrimSuffix(name, ".example.com")
	name = strings.TrimSuffix(name, ".elastic-cloud.com")

	switch {
	case name == "localhost" || name == "127.0.0.1" || name == "::1":
		name = "local"
	case name == "":
		name = "default"
	default:
		name = strings.ReplaceAll(name, ".", "-")
		name = strings.Map(func(r rune) rune {
			if strings.ContainsRune(profile.ReservedNameChars, r) || r == ':' {
				return -1
			}
			return r
		}, name)
		if name == "" {
			name = "default"
		}
	}

	if taken == nil || !taken(name) {
		return name
	}
	for i := 2; i <= maxNameSuggestions; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
	// Saving reports the clash.
	return name
}

// storeHas adapts a store lookup for suggestDSNName. Lookup failures count
// as taken so a suggestion never overwrites anything.
func storeHas(ctx context.Context, st store.Store) func(string) bool {
	return func(name string) bool {
		exists, err := st.Exists(ctx, name)
		return err != nil || exists
	}
}
