package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/intelliwatt/intelliwatt/internal/api"
	"github.com/intelliwatt/intelliwatt/internal/config"
	"github.com/intelliwatt/intelliwatt/internal/cron"
	"github.com/intelliwatt/intelliwatt/internal/efl"
	"github.com/intelliwatt/intelliwatt/internal/migrate"
	"github.com/intelliwatt/intelliwatt/internal/notification"
	"github.com/intelliwatt/intelliwatt/internal/plancost"
	"github.com/intelliwatt/intelliwatt/internal/storage"
	"github.com/intelliwatt/intelliwatt/internal/usage"
	"github.com/intelliwatt/intelliwatt/internal/validate"
)

func main() {
	root := &cobra.Command{
		Use:   "intelliwatt",
		Short: "Electricity plan validation and usage bucketing",
	}
	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
		aggregateCmd(),
		estimateCmd(),
		validateEflCmd(),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}

// buildServices wires the full service stack from the environment config.
func buildServices(ctx context.Context, cfg config.Config) (*api.Server, storage.Storage, error) {
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	var intervals storage.IntervalSource = st
	if cfg.PoolDSN != "" {
		reader, err := storage.OpenPgxIntervalReader(ctx, cfg.PoolDSN)
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("open interval pool: %w", err)
		}
		intervals = reader
	}

	cal, err := usage.NewCalendar(cfg.TimeZone)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load calendar: %w", err)
	}

	agg := usage.NewAggregator(st, intervals, cal, usage.AggregatorConfig{})
	est := usage.NewEstimateBuilder(st, intervals, cal, usage.EstimateConfig{})

	var tariffs validate.TariffLookup = validate.NewStaticTariffs()
	if cfg.TariffServiceURL != "" {
		tariffs = validate.FallbackTariffs{
			Primary:  validate.NewHTTPTariffs(cfg.TariffServiceURL),
			Snapshot: validate.NewStaticTariffs(),
		}
	}
	validator := validate.NewValidator(plancost.NewPricer(nil), tariffs, validate.Config{})
	valSvc := validate.NewService(validator, st, notification.NewService(st))

	return api.NewServer(st, agg, est, valSvc, cal), st, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext()
			cfg := config.FromEnv()

			server, st, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			httpServer := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           server.NewMux(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			log.Printf("intelliwatt listening on %s (driver=%s)", cfg.ListenAddr, cfg.Driver)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic re-aggregation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			err := cron.Run(signalContext(), cfg.Driver, cfg.DSN)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply or inspect database migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := cmd.Context()
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			switch action {
			case "up":
				return migrate.Up(ctx, cfg.Driver, cfg.DSN)
			case "down":
				return migrate.Down(ctx, cfg.Driver, cfg.DSN)
			case "status":
				return migrate.Status(ctx, cfg.Driver, cfg.DSN)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}
	return cmd
}

func aggregateCmd() *cobra.Command {
	var homeID string
	var months int
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Re-aggregate usage buckets for one home",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromEnv()

			st, err := storage.Open(ctx, storage.Config{Driver: cfg.Driver, DSN: cfg.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			home, err := st.GetHome(ctx, homeID)
			if err != nil {
				return err
			}
			if home == nil {
				return fmt.Errorf("home %q not found", homeID)
			}

			cal, err := usage.NewCalendar(cfg.TimeZone)
			if err != nil {
				return err
			}
			agg := usage.NewAggregator(st, st, cal, usage.AggregatorConfig{})

			now := time.Now().In(cal.Location())
			end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, cal.Location()).AddDate(0, 1, 0)
			start := end.AddDate(0, -months, 0)

			res, err := agg.Aggregate(ctx, home.ID, home.Esiid, start, end)
			if err != nil {
				return err
			}
			log.Printf("aggregated home=%s months=%d rows=%d notes=%v",
				home.ID, res.MonthsProcessed, res.RowsUpserted, res.Notes)
			return nil
		},
	}
	cmd.Flags().StringVar(&homeID, "home", "", "home ID to aggregate")
	cmd.Flags().IntVar(&months, "months", 13, "trailing months to recompute")
	_ = cmd.MarkFlagRequired("home")
	return cmd
}

func estimateCmd() *cobra.Command {
	var homeID string
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print the trailing-12-month usage estimate for a home",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromEnv()

			st, err := storage.Open(ctx, storage.Config{Driver: cfg.Driver, DSN: cfg.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			home, err := st.GetHome(ctx, homeID)
			if err != nil {
				return err
			}
			if home == nil {
				return fmt.Errorf("home %q not found", homeID)
			}

			cal, err := usage.NewCalendar(cfg.TimeZone)
			if err != nil {
				return err
			}
			builder := usage.NewEstimateBuilder(st, st, cal, usage.EstimateConfig{})
			est, err := builder.BuildEstimate(ctx, home.ID, home.Esiid, time.Now())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(est)
		},
	}
	cmd.Flags().StringVar(&homeID, "home", "", "home ID to estimate")
	_ = cmd.MarkFlagRequired("home")
	return cmd
}

func validateEflCmd() *cobra.Command {
	var planID, pdfPath, textPath, rulesPath string
	cmd := &cobra.Command{
		Use:   "validate-efl",
		Short: "Validate a plan's EFL average-price table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromEnv()

			var text string
			switch {
			case pdfPath != "":
				extracted, err := efl.ExtractTextFromPDF(pdfPath)
				if err != nil {
					return err
				}
				text = extracted
			case textPath != "":
				raw, err := os.ReadFile(textPath)
				if err != nil {
					return err
				}
				text = string(raw)
			default:
				return fmt.Errorf("one of --pdf or --text is required")
			}

			var rules plancost.PlanRules
			raw, err := os.ReadFile(rulesPath)
			if err != nil {
				return fmt.Errorf("read rules: %w", err)
			}
			if err := json.Unmarshal(raw, &rules); err != nil {
				return fmt.Errorf("parse rules: %w", err)
			}
			if rules.PlanID == "" {
				rules.PlanID = planID
			}

			st, err := storage.Open(ctx, storage.Config{Driver: cfg.Driver, DSN: cfg.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			validator := validate.NewValidator(plancost.NewPricer(nil), validate.NewStaticTariffs(), validate.Config{})
			svc := validate.NewService(validator, st, notification.NewService(st))
			res, err := svc.Run(ctx, validate.Input{PlanID: planID, Rules: rules, EflText: text})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan ID")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the EFL PDF")
	cmd.Flags().StringVar(&textPath, "text", "", "path to extracted EFL text")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "path to the plan rules JSON")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}
