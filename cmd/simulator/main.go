package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	serverURL   = flag.String("server", "http://localhost:8080", "kogoto HTTP base URL")
	mode        = flag.String("mode", "all10", "Session mode (all10 or missed)")
	questions   = flag.Int("questions", 5, "Questions per session (5 or 10)")
	rounds      = flag.Int("rounds", 1, "Number of sessions to play")
	voice       = flag.Bool("voice", true, "Answer by utterance instead of selecting a choice")
	seed        = flag.Int64("seed", 0, "Random seed for guesses (0 uses the clock)")
	feed        = flag.Bool("feed", true, "Feed the wallet to the friend after each round")
	interactive = flag.Bool("interactive", false, "Type answers instead of guessing")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	config := &SimulatorConfig{
		ServerURL:     *serverURL,
		Mode:          *mode,
		QuestionCount: *questions,
		Voice:         *voice,
		Seed:          *seed,
		Feed:          *feed,
		Interactive:   *interactive,
	}

	sim := NewSimulator(config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down simulator...")
		cancel()
	}()

	if err := sim.Login(ctx); err != nil {
		logger.Fatal("Failed to create guest learner", zap.Error(err))
	}
	defer sim.Stop()

	for i := 0; i < *rounds; i++ {
		result, err := sim.PlayRound(ctx)
		if err != nil {
			logger.Fatal("Round failed", zap.Int("round", i+1), zap.Error(err))
		}
		fmt.Printf("Round %d: %d/%d correct, score %d, best streak %d\n",
			i+1, result.Correct, result.Total, result.Score, result.MaxStreak)

		if *feed {
			if err := sim.FeedFriend(ctx); err != nil {
				logger.Warn("Failed to feed friend", zap.Error(err))
			}
		}
	}
}
