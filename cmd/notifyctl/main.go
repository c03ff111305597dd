// Command notifyctl is the matchpulse admin CLI.
//
// Usage:
//
//	notifyctl replay --file payload.json
//	notifyctl state <matchID>
//	notifyctl send-test --token <device> --title "Test" --body "Hello"
//	notifyctl migrate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fiveaside/matchpulse/internal/audience"
	"github.com/fiveaside/matchpulse/internal/config"
	"github.com/fiveaside/matchpulse/internal/db"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/livematch"
	"github.com/fiveaside/matchpulse/internal/notify"
	"github.com/fiveaside/matchpulse/internal/push"
	"github.com/fiveaside/matchpulse/internal/round"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "notifyctl",
		Short: "matchpulse admin CLI",
	}

	root.AddCommand(replayCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(sendTestCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// replay command
// --------------------------------------------------------------------------

func replayCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a webhook payload from a file through the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				processor := buildProcessor(cfg, pool)
				report, err := processor.Process(ctx, body)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the webhook payload JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// --------------------------------------------------------------------------
// state command
// --------------------------------------------------------------------------

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <matchID>",
		Short: "Show the persisted notification state for a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st, err := notify.NewPGStateStore(pool.Pool).Get(ctx, args[0])
				if err != nil {
					return err
				}
				if st == nil {
					fmt.Println("no notification state for match", args[0])
					return nil
				}
				return printJSON(map[string]interface{}{
					"match_id":    st.MatchID,
					"home_score":  st.HomeScore,
					"away_score":  st.AwayScore,
					"status":      st.Status,
					"signature":   st.Signature,
					"goals":       st.Goals,
					"notified_at": st.NotifiedAt,
				})
			})
		},
	}
}

// --------------------------------------------------------------------------
// send-test command
// --------------------------------------------------------------------------

func sendTestCmd() *cobra.Command {
	var token, title, body string
	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a test push to a single device token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := push.New(cfg.PushAPIURL, cfg.PushAPIKey)
			accepted, failed, err := client.SendBatch(cmd.Context(), []string{token}, title, body,
				map[string]string{"type": "test"})
			if err != nil {
				return err
			}
			logger.Info("Test push sent", "accepted", accepted, "failed", failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Device token")
	cmd.Flags().StringVar(&title, "title", "matchpulse", "Notification title")
	cmd.Flags().StringVar(&body, "body", "Test notification", "Notification body")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("Migrations up to date")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func withPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func buildProcessor(cfg *config.Config, pool *db.Pool) *livematch.Processor {
	states := notify.NewPGStateStore(pool.Pool)
	claims := notify.NewCoordinator(states, notify.Windows{
		Goal:      cfg.GoalGraceWindow,
		Kickoff:   cfg.KickoffGraceWindow,
		Tolerance: cfg.ClaimTolerance,
	})
	fixtures := fixture.NewResolver(pool.Pool)
	audiences := audience.NewResolver(pool.Pool, fixtures)
	dispatcher := notify.NewDispatcher(push.New(cfg.PushAPIURL, cfg.PushAPIKey), logger)
	roundStore := round.NewPGStore(pool.Pool)
	rounds := round.NewAggregator(roundStore, fixtures, audiences, dispatcher, cfg.RoundMarkerWindow, logger)
	return livematch.NewProcessor(cfg, logger, states, claims, fixtures, audiences, dispatcher, rounds, notify.NewDeliveryLog(pool.Pool))
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
