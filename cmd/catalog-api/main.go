package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-catalog-api/authz"
	"github.com/goliatone/go-catalog-api/internal/config"
	"github.com/goliatone/go-catalog-api/internal/httpapi"
	"github.com/goliatone/go-catalog-api/internal/store"
	"github.com/goliatone/go-catalog-api/pkg/di"
	"github.com/goliatone/go-catalog-api/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const statsInterval = time.Minute

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "catalog-api",
		Short:        "Catalog and customer users API with a tag-invalidated listing cache",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().Bool("pretty", false, "human readable logs (overrides CATALOG_LOG_PRETTY)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "customers",
			Short: "List customers, e.g. to issue tokens for seeded data",
			RunE:  runCustomers,
		},
		&cobra.Command{
			Use:   "token <customer-id>",
			Short: "Print a bearer token for a customer",
			Args:  cobra.ExactArgs(1),
			RunE:  runToken,
		},
	)
	return root
}

func setup(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		cfg.LogPretty = true
	}
	return cfg, logging.Setup(cfg.Logging()), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	server := httpapi.NewServer(cfg.HTTPAddr, container.API().Handler(), cfg.ShutdownTimeout, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	g.Go(func() error {
		reportCacheStats(ctx, container, logging.NewLogger("cache"))
		return nil
	})
	return g.Wait()
}

// reportCacheStats logs the cache counters until ctx ends.
func reportCacheStats(ctx context.Context, container *di.Container, logger zerolog.Logger) {
	cacheStore := container.CacheStore()
	if cacheStore == nil {
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := cacheStore.Stats()
			logger.Info().
				Int64("hits", stats.Hits).
				Int64("misses", stats.Misses).
				Int64("shared", stats.Shared).
				Int64("discards", stats.Discards).
				Int64("fallbacks", stats.Fallbacks).
				Int64("backend_errors", stats.BackendErrors).
				Int("entries", cacheStore.Len()).
				Msg("cache stats")
		}
	}
}

func runCustomers(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := store.Open(ctx, cfg.Store(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	customers, _, err := store.NewCustomerRepository(db).List(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	for _, c := range customers {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Name)
	}
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("customer id: %w", err)
	}

	token, err := authz.NewJWTAuthenticator(cfg.JWT()).IssueToken(authz.Principal{ID: id})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
