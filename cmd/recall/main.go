package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dan-solli/recall/internal/server"
	"github.com/dan-solli/recall/pkg/metrics"
	"github.com/dan-solli/recall/pkg/recall"
)

var (
	flagDBPath        string
	flagAddr          string
	flagRetentionDays int
	flagDryRun        bool
	flagDebug         bool
)

func main() {
	root := &cobra.Command{
		Use:   "recall",
		Short: "Hierarchical memory and knowledge-graph retrieval engine",
	}
	root.PersistentFlags().StringVar(&flagDBPath, "db", "recall.db", "SQLite database path")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired TASK-tier memories",
		RunE:  runPrune,
	}
	pruneCmd.Flags().IntVar(&flagRetentionDays, "retention-days", 30, "retention window in days")
	pruneCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "count eligible memories without deleting")

	root.AddCommand(serveCmd, pruneCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newEngine(log *zap.Logger, collector metrics.Collector) (*recall.Engine, error) {
	return recall.New(recall.Config{
		DBPath:    flagDBPath,
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		Logger:    log,
		Metrics:   collector,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	prom := metrics.NewCollector()
	engine, err := newEngine(log, prom)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         flagAddr,
		Handler:      server.New(engine, log, prom).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", flagAddr), zap.String("db", flagDBPath))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runPrune(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, err := newEngine(log, metrics.NewNoopCollector())
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.PruneExpiredTaskMemories(ctx, recall.PruneOptions{
		RetentionDays: flagRetentionDays,
		DryRun:        flagDryRun,
	})
	if err != nil {
		return err
	}

	verb := "pruned"
	if result.DryRun {
		verb = "eligible"
	}
	fmt.Printf("%d TASK memories %s (cutoff %s)\n", result.MemoriesPruned, verb, result.Cutoff.Format(time.RFC3339))
	return nil
}
