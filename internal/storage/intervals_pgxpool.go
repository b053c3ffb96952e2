package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelliwatt/intelliwatt/internal/metrics"
)

// PgxIntervalReader serves bulk 15-minute interval reads straight from a
// pgxpool connection, bypassing the ORM for the one genuinely high-volume
// query in the system. It implements IntervalSource.
type PgxIntervalReader struct {
	pool *pgxpool.Pool
}

func OpenPgxIntervalReader(ctx context.Context, dsn string) (*PgxIntervalReader, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PgxIntervalReader{pool: pool}, nil
}

func (r *PgxIntervalReader) ListIntervalReadings(ctx context.Context, esiid string, start, end time.Time) ([]IntervalReading, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, esiid, timestamp, kwh
		 FROM interval_readings
		 WHERE esiid = $1 AND timestamp >= $2 AND timestamp < $3
		 ORDER BY timestamp`,
		esiid, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IntervalReading
	for rows.Next() {
		var ir IntervalReading
		if err := rows.Scan(&ir.ID, &ir.Esiid, &ir.Timestamp, &ir.Kwh); err != nil {
			return nil, err
		}
		out = append(out, ir)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.reportPoolMetrics()
	return out, nil
}

func (r *PgxIntervalReader) reportPoolMetrics() {
	st := r.pool.Stat()
	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(st.TotalConns()),
		float64(st.IdleConns()),
		float64(st.AcquiredConns()),
		uint64(st.AcquireCount()))
}

func (r *PgxIntervalReader) Close() error {
	r.pool.Close()
	return nil
}
