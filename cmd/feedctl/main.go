// Package main provides feedctl, the operator CLI for design-feed. It runs
// against the same database and providers as the server.
//
// Run with: go run ./cmd/feedctl search --query "japandi bedroom"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/app"
	"github.com/fleveque/design-feed/internal/config"
	"github.com/fleveque/design-feed/internal/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "feedctl",
		Short:        "Design feed operator tools",
		SilenceUsage: true,
	}

	root.AddCommand(searchCmd(), sweepCmd(), prefetchCmd(), providersCmd())
	return root
}

// withApp loads config, builds the components and runs fn with a context
// cancelled on Ctrl+C.
func withApp(fn func(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) error) error {
	cfg, err := config.Load(os.Getenv(config.ConfigPathEnv))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The CLI always logs human-readable output.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, cfg, a, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func searchCmd() *cobra.Command {
	var (
		query      string
		page       int
		perPage    int
		aggregated bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one feed search and print the photos as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 || perPage < 1 || perPage > 100 {
				return fmt.Errorf("page must be >= 1 and per-page between 1 and 100")
			}
			return withApp(func(ctx context.Context, _ *config.Config, a *app.App, _ *zap.Logger) error {
				var (
					photos []model.Photo
					err    error
				)
				if aggregated {
					photos, err = a.Aggregator.SearchAggregated(ctx, query, page, perPage)
				} else {
					photos, err = a.Aggregator.Search(ctx, query, page, perPage)
				}
				if err != nil {
					return err
				}
				return printJSON(photos)
			})
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search query; empty searches trending")
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Photos per page")
	cmd.Flags().BoolVar(&aggregated, "aggregated", false, "Use the multi-provider aggregated feed")
	return cmd
}

func sweepCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete cache entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) error {
				age := maxAge
				if age <= 0 {
					age = cfg.Cache.Retention
				}
				deleted := a.Cache.Sweep(ctx, age)
				logger.Info("sweep complete", zap.Int64("deleted", deleted), zap.Duration("max_age", age))
				fmt.Println(deleted)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override the retention window (e.g. 72h)")
	return cmd
}

func prefetchCmd() *cobra.Command {
	var (
		query   string
		from    int
		pages   int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Warm the cache for a range of pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 || from < 1 {
				return fmt.Errorf("--from and --pages must be >= 1")
			}
			return withApp(func(ctx context.Context, _ *config.Config, a *app.App, logger *zap.Logger) error {
				stored := a.Prefetcher.Run(ctx, query, from, from+pages-1, perPage)
				logger.Info("prefetch complete",
					zap.String("query", query),
					zap.Int("pages", pages),
					zap.Int("stored", stored),
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search query to warm")
	cmd.Flags().IntVar(&from, "from", 2, "First page to warm")
	cmd.Flags().IntVar(&pages, "pages", 3, "Number of pages to warm")
	cmd.Flags().IntVar(&perPage, "per-page", 60, "Photos per page")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Print the provider order and rotation candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(_ context.Context, _ *config.Config, a *app.App, _ *zap.Logger) error {
				type entry struct {
					Name string `json:"name"`
					Tier string `json:"tier"`
				}
				var order []entry
				for _, e := range a.Registry.Entries() {
					order = append(order, entry{Name: e.Provider.Name(), Tier: e.Tier.String()})
				}
				var searchable []string
				for _, p := range a.Registry.SearchCapable() {
					searchable = append(searchable, p.Name())
				}
				return printJSON(map[string]any{
					"order":          order,
					"search_capable": searchable,
					"llm":            a.LLMNames,
				})
			})
		},
	}
}
