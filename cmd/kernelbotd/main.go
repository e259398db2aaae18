package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kernelworks/kernelbot/internal/cli"
	"github.com/kernelworks/kernelbot/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kernelbotd",
		Short: "Kernelbot daemon and admin CLI",
		Long:  "Kernelbot daemon for running the bot server and managing knowledge sources",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.SourceCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
