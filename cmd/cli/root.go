package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	caFile     string
}

// NewRootCommand builds the `ca-keytool` command tree.
// NewRootCommand 构建 `ca-keytool` 命令树。
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "ca-keytool",
		Short: "Manage the private keys of certificate authorities.",
		Long: `ca-keytool creates, imports and checks the private keys of certificate
authorities held by the configured key backends, and regenerates the keys of
delegated OCSP responders.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default searches /etc/cakeys and the working directory)")
	rootCmd.PersistentFlags().StringVar(&opts.caFile, "ca-file", "cas.json", "file holding the certificate authority records")

	rootCmd.AddCommand(
		newKeyCommand(opts),
		newOCSPCommand(opts),
		newBackendsCommand(opts),
	)
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and executes the appropriate command.
// If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
