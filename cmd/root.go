package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "warelay",
	Short: "warelay — WhatsApp webhook relay with retrieval-augmented answers",
	Long: "warelay receives WhatsApp messages through the Cloud API webhook, answers them\n" +
		"with retrieval-augmented generation over a local document set, and replies in\n" +
		"kind: text for text, a synthesized voice note for voice notes.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
}
