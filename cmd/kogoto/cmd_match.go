package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kogoto-lab/kogoto/internal/adapter/reading"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/answer"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
)

func newMatchCmd() *cobra.Command {
	var (
		readings  bool
		word      string
		vocabPath string
	)

	cmd := &cobra.Command{
		Use:   "match <utterance> [choice1 choice2 choice3 choice4]",
		Short: "Resolve an utterance against four choices",
		Example: `  kogoto match にばん しみじみとした趣 腹立たしい 恐ろしい 退屈だ
  kogoto match "よくないです" --word わろし --vocab data/vocab.csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			if word != "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			if len(args) != 1+domain.ChoiceCount {
				return fmt.Errorf("expected an utterance and %d choices, got %d arguments", domain.ChoiceCount, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			var choices domain.ChoiceSet
			correct := 0
			if word != "" {
				repo, err := vocab.LoadFile(vocabPath, log)
				if err != nil {
					return err
				}
				item, ok := findWord(repo.All(), word)
				if !ok {
					return fmt.Errorf("word %q not found in %s", word, vocabPath)
				}
				choices = item.Choices
				correct = item.Correct
			} else {
				copy(choices[:], args[1:])
				for i, c := range choices {
					if strings.TrimSpace(c) == "" {
						return fmt.Errorf("%w: choice %d is blank", domain.ErrInvalidChoiceSet, i+1)
					}
				}
			}

			var opts []answer.Option
			if readings {
				provider, err := reading.NewKagomeReadings(log)
				if err != nil {
					return err
				}
				opts = append(opts, answer.WithReadings(provider))
			}

			res := answer.NewMatcher(log, opts...).Match(args[0], choices)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "normalized: %s\nstatus: %s\n", res.Normalized, res.Status)
			if !res.Resolved() {
				return nil
			}
			fmt.Fprintf(out, "choice: %d %s\nrule: %s\n", res.Index, choices[res.Index-1], res.Rule)
			if correct > 0 {
				if res.Index == correct {
					fmt.Fprintln(out, "verdict: correct")
				} else {
					fmt.Fprintf(out, "verdict: wrong (answer %d)\n", correct)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readings, "readings", false, "Also compare kana readings (loads the IPA dictionary)")
	cmd.Flags().StringVar(&word, "word", "", "Take the choices from this vocabulary word")
	cmd.Flags().StringVar(&vocabPath, "vocab", "data/vocab.csv", "Vocabulary CSV used with --word")
	return cmd
}

// findWord accepts either the bare word or its word#reading key.
func findWord(items []domain.VocabItem, word string) (domain.VocabItem, bool) {
	for _, item := range items {
		if item.Word == word || item.Key() == word {
			return item, true
		}
	}
	return domain.VocabItem{}, false
}
