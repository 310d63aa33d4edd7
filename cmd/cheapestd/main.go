package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/app"
	"github.com/awaistahir/cheapest-period/internal/card"
	"github.com/awaistahir/cheapest-period/internal/config"
	"github.com/awaistahir/cheapest-period/internal/logging"
	"github.com/awaistahir/cheapest-period/internal/prices"
	"github.com/awaistahir/cheapest-period/internal/store"
	"github.com/awaistahir/cheapest-period/internal/uiapi"
)

func main() {
	var cfgFile string
	var listen string
	var dbPath string
	var noHistory bool

	rootCmd := &cobra.Command{
		Use:   "cheapestd",
		Short: "Cheapest period server with HTML cards and a JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return run(cfg, !noHistory, logger)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cheapest-period/config.yaml)")
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not open the database")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, history bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if history {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		var err error
		st, err = store.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer st.Close()
	}

	var cache prices.RateCache
	if st != nil {
		cache = st
	}
	source, err := app.BuildSource(ctx, cfg.Source, cache, logger)
	if err != nil {
		return fmt.Errorf("building %s source: %w", cfg.Source.Kind, err)
	}

	if len(cfg.Cards) == 0 {
		return errors.New("no cards configured")
	}

	cards := make([]*card.Card, 0, len(cfg.Cards))
	for _, cc := range cfg.Cards {
		opts := []card.Option{card.WithLogger(logger)}
		if st != nil {
			opts = append(opts, card.WithObserver(app.Recorder(st, logger)))
		}
		c, err := card.New(cc, source, opts...)
		if err != nil {
			return err
		}
		cards = append(cards, c)
	}

	var hist uiapi.HistoryStore
	var pruner app.Pruner
	if st != nil {
		hist, pruner = st, st
	}
	srv, err := uiapi.NewServer(cards, hist, logger)
	if err != nil {
		return err
	}

	refresher := &app.Refresher{
		Cards:    cards,
		Interval: cfg.RefreshInterval,
		Pruner:   pruner,
		Logger:   logger,
	}
	go refresher.Run(ctx)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("listen", cfg.Listen),
			zap.String("source", cfg.Source.Kind),
			zap.Int("cards", len(cards)))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
