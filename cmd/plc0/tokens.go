package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/miniplc0/compiler"
)

func newTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "Print the token stream of a source file",
		Long: `Scan a source file and print one token per line: its label, followed by
the value for integers and the name for identifiers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}

			tokens, err := compiler.Tokenize(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return compiler.DumpTokens(cmd.OutOrStdout(), tokens)
		},
	}
}
