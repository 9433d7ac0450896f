package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
)

var errIssues = errors.New("vocabulary file has invalid rows")

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect vocabulary CSV files",
	}
	cmd.AddCommand(newVocabCheckCmd())
	return cmd
}

func newVocabCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate vocabulary files and report skipped rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				items, issues, err := vocab.Parse(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				polar := 0
				seen := make(map[string]int, len(items))
				dups := 0
				for _, item := range items {
					if item.Polarity != domain.PolarityNone {
						polar++
					}
					seen[item.Key()]++
					if seen[item.Key()] == 2 {
						dups++
					}
				}

				fmt.Fprintf(out, "%s: %d items, %d with polarity, %d duplicate ids, %d skipped rows\n",
					path, len(items), polar, dups, len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  %s\n", issue.Error())
				}
				if len(issues) > 0 || len(items) == 0 {
					failed = true
				}
			}

			if strict && failed {
				return errIssues
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any row is skipped or a file is empty")
	return cmd
}
