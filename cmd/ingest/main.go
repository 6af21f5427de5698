package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/config"
	"github.com/chemistry/api/internal/database"
	"github.com/chemistry/api/internal/eventbus"
	"github.com/chemistry/api/internal/ingest"
	"github.com/chemistry/api/internal/middleware"
	"github.com/chemistry/api/internal/models"
	"github.com/chemistry/api/internal/retrieval"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Rebuild the compound vector index from a JSON data file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if file != "" {
				cfg.DataFile = file
			}
			return runIngest(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "compound JSON file (defaults to DATA_FILE)")
	cmd.AddCommand(newTokenCommand())
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := middleware.IssueToken(config.Load().JWTSecret, subject, role, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "token role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		return err
	}
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	embedder, err := retrieval.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	store := retrieval.NewPGVectorStore(db.Pool(), cfg.VectorTable, cfg.EmbeddingDimension)

	logger.Info("starting ingestion", zap.String("file", cfg.DataFile))
	res, err := ingest.NewPipeline(embedder, store, logger).RunFile(ctx, cfg.DataFile)
	if err != nil {
		return err
	}

	if publisher, err := eventbus.Connect(cfg.NATSURL, logger); err != nil {
		logger.Warn("NATS unavailable, index rebuild not announced", zap.Error(err))
	} else {
		defer publisher.Close()
		event := models.IndexRebuiltEvent{
			Documents:  res.Documents,
			Chunks:     res.Chunks,
			DurationMS: res.Duration.Milliseconds(),
			Subject:    "cli",
			Timestamp:  time.Now().UTC(),
		}
		if err := publisher.Publish(ctx, eventbus.SubjectIndexRebuilt, event); err != nil {
			logger.Warn("index rebuild event not published", zap.Error(err))
		}
	}

	fmt.Println(res.Message())
	return nil
}
