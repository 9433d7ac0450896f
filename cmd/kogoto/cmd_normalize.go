package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kogoto-lab/kogoto/internal/service/answer"
)

func newNormalizeCmd() *cobra.Command {
	var tokens bool

	cmd := &cobra.Command{
		Use:   "normalize <text>...",
		Short: "Print the normalized form of each argument",
		Long: `Normalizes each argument the way spoken answers are normalized before
matching. With --tokens the arguments are treated as choices and their
match tokens are printed instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, arg := range args {
				if tokens {
					fmt.Fprintf(out, "%s\t%s\n", arg, strings.Join(answer.ChoiceTokens(arg), " | "))
					continue
				}
				norm := answer.Normalize(arg)
				if n, ok := answer.ResolveNumeral(norm); ok {
					fmt.Fprintf(out, "%s\t%s\t(choice %d)\n", arg, norm, n)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", arg, norm)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tokens, "tokens", false, "Print choice tokens instead")
	return cmd
}
