package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for homes, interval readings, bucket
// definitions and totals, and persisted validation verdicts.
type Storage interface {
	// Homes
	ListHomes(ctx context.Context) ([]Home, error)
	GetHome(ctx context.Context, id string) (*Home, error)
	UpsertHome(ctx context.Context, h Home) error

	// Interval readings (written by the ingestion collaborators, read-only
	// to the aggregator)
	InsertIntervalReadings(ctx context.Context, readings []IntervalReading) error
	ListIntervalReadings(ctx context.Context, esiid string, start, end time.Time) ([]IntervalReading, error)

	// Bucket definitions (idempotent upsert keyed by canonical key)
	UpsertBucketDefinitions(ctx context.Context, defs []BucketDefinition) error
	ListBucketDefinitions(ctx context.Context) ([]BucketDefinition, error)

	// Bucket totals. Each call is one atomic batch; callers chunk to bound
	// transaction size.
	UpsertMonthlyBuckets(ctx context.Context, rows []MonthlyUsageBucket) error
	UpsertDailyBuckets(ctx context.Context, rows []DailyUsageBucket) error
	GetMonthlyBuckets(ctx context.Context, homeID string, yearMonths []string) ([]MonthlyUsageBucket, error)
	GetDailyBuckets(ctx context.Context, homeID, fromDate, toDate string) ([]DailyUsageBucket, error)

	// Validation review queue
	SaveValidation(ctx context.Context, rec EflValidationRecord) error
	ListValidations(ctx context.Context, status string, limit int) ([]EflValidationRecord, error)

	// Notification config & settings
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg EmailConfig) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Background-job bookkeeping
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}

// IntervalSource is the read side of interval persistence. The aggregator
// and the estimation builder only need this slice of Storage, and the
// Postgres deployment path substitutes a pgxpool-backed reader for it.
type IntervalSource interface {
	ListIntervalReadings(ctx context.Context, esiid string, start, end time.Time) ([]IntervalReading, error)
}
