package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/config"
	"github.com/blackwell-systems/libractl/internal/localstore"
)

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell autocompletion scripts",
		Long: `Generate autocompletion scripts for your shell.

Book ids and accounts are completed from the local store.

Examples:
  # Bash (add to ~/.bashrc)
  source <(libractl completion bash)

  # Zsh (add to ~/.zshrc)
  source <(libractl completion zsh)

  # Fish
  libractl completion fish > ~/.config/fish/completions/libractl.fish

  # PowerShell
  libractl completion powershell | Out-String | Invoke-Expression`,
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell %q", args[0])
			}
		},
	}

	return cmd
}

// completionStore opens the local store for shell completion, which runs
// without the root's PersistentPreRunE.
func completionStore() (localstore.KV, error) {
	c, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	return localstore.Open(c.Local.EffectiveBackend(), c.Local.EffectivePath(config.DataDir()))
}

func bookCandidates(cmd *cobra.Command, toComplete string) ([]string, cobra.ShellCompDirective) {
	kv, err := completionStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer kv.Close()
	all, err := localstore.ReadCollection[catalog.Book](commandContext(cmd), kv, localstore.KeyBooks)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, b := range all {
		if strings.HasPrefix(b.ID, toComplete) {
			out = append(out, b.ID+"\t"+b.Title)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func accountCandidates(cmd *cobra.Command, toComplete string) ([]string, cobra.ShellCompDirective) {
	kv, err := completionStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer kv.Close()
	all, err := localstore.ReadCollection[accounts.Account](commandContext(cmd), kv, localstore.KeyUsers)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, a := range all {
		switch {
		case strings.HasPrefix(a.ID, toComplete):
			out = append(out, a.ID+"\t"+a.Name)
		case strings.HasPrefix(strings.ToLower(a.Email), strings.ToLower(toComplete)):
			out = append(out, a.Email+"\t"+a.Name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeBook completes the first argument with book ids.
func completeBook(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return bookCandidates(cmd, toComplete)
}

// completeAccount completes the first argument with account ids and emails.
func completeAccount(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return accountCandidates(cmd, toComplete)
}

// completeLoan completes <book-id> <account>.
func completeLoan(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return bookCandidates(cmd, toComplete)
	case 1:
		return accountCandidates(cmd, toComplete)
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}
