package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_efl_validations_total",
			Help: "Total number of EFL average-price validations per status",
		},
		[]string{"status"},
	)

	ValidationTdspSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_efl_validation_tdsp_source_total",
			Help: "TDSP source mode used per validation",
		},
		[]string{"source"},
	)

	ValidationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intelliwatt_efl_validation_duration_seconds",
			Help:    "EFL validation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AggregationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_aggregation_runs_total",
			Help: "Total number of usage aggregation runs per outcome",
		},
		[]string{"outcome"},
	)

	AggregationIntervalsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliwatt_aggregation_intervals_processed_total",
			Help: "Total number of interval readings consumed by the aggregator",
		},
	)

	AggregationRowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_aggregation_rows_upserted_total",
			Help: "Total number of bucket rows upserted per granularity",
		},
		[]string{"granularity"},
	)

	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelliwatt_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelliwatt_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelliwatt_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelliwatt_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelliwatt_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliwatt_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
