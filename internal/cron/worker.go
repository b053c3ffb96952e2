// Package cron runs the periodic re-aggregation worker. One worker at a
// time does the work across replicas, enforced with Postgres advisory
// locks.
package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/intelliwatt/intelliwatt/internal/metrics"
	"github.com/intelliwatt/intelliwatt/internal/storage"
	"github.com/intelliwatt/intelliwatt/internal/usage"
)

const (
	jobName = "reaggregate_usage"
	lockKey int64 = 52301
)

// trailingMonths is how far back each run re-aggregates. Thirteen months
// covers a 12-month estimate window plus the partial current month.
const trailingMonths = 13

// Run starts the control loop. The interval comes from
// INTELLIWATT_CRON_INTERVAL (integer seconds or a cron expression) and can
// be overridden at runtime through the reaggregate_interval setting row,
// so operators can retune it without restarting workers.
func Run(ctx context.Context, driver, dsn string) error {
	if driver == "" {
		driver = "postgres"
	}

	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	locker, ok := st.(*storage.GormStorage)
	if !ok {
		return fmt.Errorf("cron worker requires a database-backed driver (got %q)", driver)
	}

	// The pgxpool reader offloads the bulk interval scans from the gorm
	// connection when configured; otherwise storage serves them.
	var intervals storage.IntervalSource = st
	if poolDSN := os.Getenv("INTELLIWATT_POOL_DSN"); poolDSN != "" {
		reader, err := storage.OpenPgxIntervalReader(ctx, poolDSN)
		if err != nil {
			return fmt.Errorf("open interval pool: %w", err)
		}
		defer reader.Close()
		intervals = reader
	}

	cal, err := usage.NewCalendar(usage.DefaultTimeZone)
	if err != nil {
		return fmt.Errorf("load calendar: %w", err)
	}
	agg := usage.NewAggregator(st, intervals, cal, usage.AggregatorConfig{})

	intervalSetting := "3600"
	if raw := os.Getenv("INTELLIWATT_CRON_INTERVAL"); raw != "" {
		intervalSetting = raw
	}
	if val, err := st.GetSetting(ctx, "reaggregate_interval"); err == nil && val != "" {
		intervalSetting = val
	}

	nextRun := func(setting string, after time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return after.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(after)
		}
		return after.Add(time.Hour)
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// First run happens immediately on a fresh start.
	runAt := time.Now()

	log.Printf("[cron] worker starting, interval=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, "reaggregate_interval"); err == nil && val != "" && val != intervalSetting {
				log.Printf("[cron] interval updated from %q to %q", intervalSetting, val)
				intervalSetting = val
				runAt = nextRun(intervalSetting, time.Now())
			}
			if time.Now().Before(runAt) {
				continue
			}

			started := time.Now()
			held, err := locker.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("[cron] acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				runAt = nextRun(intervalSetting, time.Now())
				continue
			}
			if !held {
				log.Printf("[cron] advisory lock held by another worker, skipping run")
				runAt = nextRun(intervalSetting, time.Now())
				continue
			}

			runErr := func() error {
				defer func() {
					if _, err := locker.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("[cron] release advisory lock failed: %v", err)
					}
				}()
				return reaggregateAll(ctx, st, agg, cal)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("[cron] update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("[cron] job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("[cron] job %s completed successfully (duration=%s)", jobName, dur)
			}
			runAt = nextRun(intervalSetting, time.Now())
		}
	}
}

// reaggregateAll recomputes the trailing window of bucket totals for every
// registered home. Per-home failures are logged and the first one is
// reported; one bad meter must not stall the rest.
func reaggregateAll(ctx context.Context, st storage.Storage, agg *usage.Aggregator, cal *usage.Calendar) error {
	homes, err := st.ListHomes(ctx)
	if err != nil {
		return fmt.Errorf("list homes: %w", err)
	}

	now := time.Now().In(cal.Location())
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, cal.Location()).AddDate(0, 1, 0)
	start := end.AddDate(0, -trailingMonths, 0)

	var firstErr error
	for _, h := range homes {
		res, err := agg.Aggregate(ctx, h.ID, h.Esiid, start, end)
		if err != nil {
			log.Printf("[cron] aggregate home=%s esiid=%s failed: %v", h.ID, h.Esiid, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Printf("[cron] aggregated home=%s months=%d rows=%d", h.ID, res.MonthsProcessed, res.RowsUpserted)
	}
	return firstErr
}
