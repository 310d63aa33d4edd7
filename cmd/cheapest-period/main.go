package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/app"
	"github.com/awaistahir/cheapest-period/internal/card"
	"github.com/awaistahir/cheapest-period/internal/config"
	"github.com/awaistahir/cheapest-period/internal/engine"
	"github.com/awaistahir/cheapest-period/internal/hass"
	"github.com/awaistahir/cheapest-period/internal/logging"
	"github.com/awaistahir/cheapest-period/internal/prices"
	"github.com/awaistahir/cheapest-period/internal/store"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cheapest-period",
		Short: "Find the cheapest period to run something on a half-hourly tariff",
		Long: `cheapest-period reads half-hourly rates from Home Assistant, an MQTT
statestream, a states dump or the Octopus API and finds the contiguous
period with the lowest average price.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cheapest-period/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(findCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, true)
}

func findCmd() *cobra.Command {
	var (
		statesFile string
		cardCfg    card.Config
		maxPrice   float64
		multiplier float64
		roundUnits int
		at         string
		bruteForce bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the cheapest period once and print it",
		Example: `  cheapest-period find --states states.json --current event.octopus_current_day_rates --duration 2
  cheapest-period find --duration 1.5 --max-price 15 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()

			var source hass.StateSource
			if statesFile != "" {
				source = hass.NewFileSource(statesFile)
			} else {
				source, err = app.BuildSource(ctx, cfg.Source, nil, logger)
				if err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("max-price") {
				cardCfg.MaxPrice = &maxPrice
			}
			if flags.Changed("multiplier") {
				cardCfg.Multiplier = &multiplier
			}
			if flags.Changed("round") {
				cardCfg.RoundUnits = &roundUnits
			}
			if cfg.Source.Kind == config.SourceOctopus && statesFile == "" &&
				cardCfg.CurrentEntity == "" && cardCfg.FutureEntity == "" {
				cardCfg.CurrentEntity = prices.DefaultCurrentEntity
				cardCfg.FutureEntity = prices.DefaultFutureEntity
			}

			now := time.Now()
			if at != "" {
				now, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at (use RFC3339): %w", err)
				}
			}

			var finderOpts []engine.Option
			if bruteForce {
				finderOpts = append(finderOpts, engine.WithBruteForce())
			}

			c, err := card.New(cardCfg, source,
				card.WithLogger(logger),
				card.WithClock(func() time.Time { return now }),
				card.WithFinder(engine.NewFinder(logger, finderOpts...)))
			if err != nil {
				return err
			}

			result := c.Refresh(ctx)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(os.Stdout, result)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&statesFile, "states", "", "read entity states from a JSON dump instead of the configured source")
	flags.StringVar(&cardCfg.CurrentEntity, "current", "", "entity with today's rates")
	flags.StringVar(&cardCfg.FutureEntity, "future", "", "entity with tomorrow's rates")
	flags.StringVarP(&cardCfg.DurationHours, "duration", "d", "", "period length in hours, a multiple of 0.5")
	flags.Float64Var(&maxPrice, "max-price", 0, "only accept periods at or below this scaled price")
	flags.Float64Var(&multiplier, "multiplier", card.DefaultMultiplier, "price multiplier for display")
	flags.IntVar(&roundUnits, "round", card.DefaultRoundUnits, "decimal places for prices")
	flags.BoolVar(&cardCfg.Hour12, "hour12", false, "12-hour clock")
	flags.StringVar(&cardCfg.Locale, "locale", card.DefaultLocale, "locale for dates")
	flags.StringVar(&cardCfg.Timezone, "timezone", "", "IANA timezone for display (default local)")
	flags.StringVar(&at, "at", "", "evaluate at this RFC3339 time instead of now")
	flags.BoolVar(&bruteForce, "brute-force", false, "use the reference O(n*k) search")
	flags.BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func printResult(w io.Writer, r card.Result) {
	if r.Outcome != card.OutcomeBest {
		fmt.Fprintln(w, r.Message)
		return
	}
	d := r.Display
	fmt.Fprintf(w, "Cheapest %s hour period:\n", strconv.FormatFloat(r.DurationHours, 'f', -1, 64))
	fmt.Fprintf(w, "  Start: %s, %s\n", d.StartDate, d.StartTime)
	if d.EndDate != "" {
		fmt.Fprintf(w, "  End: %s, %s\n", d.EndDate, d.EndTime)
	} else {
		fmt.Fprintf(w, "  End: %s\n", d.EndTime)
	}
	fmt.Fprintf(w, "  Starts in: %s\n", d.TimeUntil)
	fmt.Fprintf(w, "  Average Price: %s%s (%s)\n", d.Price, d.Unit, r.Tier)
}

func fetchCmd() *cobra.Command {
	var region string
	var product string
	var date string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch Octopus Agile half-hourly rates in pence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var opts []prices.ClientOption
			if product != "" {
				opts = append(opts, prices.WithProduct(product))
			}
			client := prices.NewOctopusClient(region, opts...)

			var rates []engine.RateInterval
			if date == "today" {
				today, tomorrow, err := client.FetchTodayAndTomorrow(ctx, time.Now())
				if err != nil {
					return err
				}
				rates = append(today, tomorrow...)
			} else {
				day, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
				}
				rates, err = client.HalfHourly(ctx, day)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rates)
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "C", "Octopus region (A-P)")
	cmd.Flags().StringVar(&product, "product", "", "Octopus product code (default current Agile)")
	cmd.Flags().StringVar(&date, "date", "today", "Date to fetch (YYYY-MM-DD or 'today')")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <card>",
		Short: "Show recorded evaluations of a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path := cfg.DBPath
			if dbPath != "" {
				path = dbPath
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no history database at %s: %w", filepath.Clean(path), err)
			}

			st, err := store.NewStore(path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			evaluations, err := st.History(args[0], limit)
			if err != nil {
				return err
			}
			if len(evaluations) == 0 {
				fmt.Printf("No evaluations recorded for %s\n", args[0])
				return nil
			}

			for _, e := range evaluations {
				fmt.Printf("%s  %-17s", e.EvaluatedAt.Local().Format("2006-01-02 15:04:05"), e.Outcome)
				if e.Start != nil && e.ScaledPrice != nil {
					fmt.Printf("  %s -> %s  %.2f",
						e.Start.Local().Format("Mon 15:04"), e.End.Local().Format("15:04"), *e.ScaledPrice)
				} else if e.Message != "" {
					fmt.Printf("  %s", e.Message)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of evaluations to show")

	return cmd
}
