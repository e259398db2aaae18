package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kernelworks/kernelbot/internal/cli"
	"github.com/kernelworks/kernelbot/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kernelbot",
		Short: "Kernelbot CLI - talk to a running bot",
		Long: `Kernelbot CLI provides a terminal client for the bot.

Environment variables:
  KERNELBOT_URL   Bot base URL (default: http://localhost:3978)`,
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(client.ChatCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
