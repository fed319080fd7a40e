package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command.
func (cli *CLI) newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for esdsn.

DSN names are completed from the configuration file.

To load completions:

Bash:
  $ source <(esdsn completion bash)
  # To load completions for each session, execute once:
  $ esdsn completion bash > /etc/bash_completion.d/esdsn

Zsh:
  $ esdsn completion zsh > "${fpath[1]}/_esdsn"
  # You may need to start a new shell for this to take effect.

Fish:
  $ esdsn completion fish > ~/.config/fish/completions/esdsn.fish

PowerShell:
  PS> esdsn completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Completion scripts do not need the configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cli.out)
			case "zsh":
				return cmd.Root().GenZshCompletion(cli.out)
			case "fish":
				return cmd.Root().GenFishCompletion(cli.out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cli.out)
			}
			return nil
		},
	}
	return cmd
}
