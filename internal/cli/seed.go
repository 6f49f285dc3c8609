package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
)

// NewSeedCmd stores the demo quiz in Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo quiz into the quiz store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return seedDemoQuiz(cmd.Context(), cfg)
		},
	}
}

func seedDemoQuiz(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	quiz := memory.DemoQuiz()
	if err := postgres.NewQuizLoader(pool).SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	log.Printf("seeded quiz id=%s items=%d", quiz.ID, len(quiz.Items))
	return nil
}
