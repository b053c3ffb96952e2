package storage

import "time"

// Home is a service location with a smart meter. ESIID is the Texas
// service-point identifier used to join interval data.
type Home struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Esiid     string    `json:"esiid" gorm:"uniqueIndex;column:esiid"`
	Label     string    `json:"label" gorm:"column:label"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// IntervalReading is one 15-minute meter interval. Timestamps are stored in
// UTC; kWh is signed (negative values represent export) and the aggregator
// only sums finite positive import.
type IntervalReading struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	Esiid     string    `json:"esiid" gorm:"index:idx_readings_esiid_ts;column:esiid"`
	Timestamp time.Time `json:"timestamp" gorm:"index:idx_readings_esiid_ts;column:timestamp"`
	Kwh       float64   `json:"kwh" gorm:"column:kwh"`
}

// BucketDefinition persists one canonical bucket key with the fields it was
// derived from. Rows are written once via upsert and never mutated.
type BucketDefinition struct {
	Key          string    `json:"key" gorm:"primaryKey;column:key"`
	DayType      string    `json:"day_type" gorm:"column:day_type"`
	StartMinutes int       `json:"start_minutes" gorm:"column:start_minutes"`
	EndMinutes   int       `json:"end_minutes" gorm:"column:end_minutes"`
	Season       string    `json:"season" gorm:"column:season"`
	RuleVersion  int       `json:"rule_version" gorm:"column:rule_version"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

// MonthlyUsageBucket is the summed kWh for one home, billing month, and
// bucket key. Unique per (home_id, year_month, bucket_key); re-aggregation
// replaces the total.
type MonthlyUsageBucket struct {
	ID         uint      `json:"-" gorm:"primaryKey;column:id"`
	HomeID     string    `json:"home_id" gorm:"uniqueIndex:idx_monthly_home_ym_key;column:home_id"`
	YearMonth  string    `json:"year_month" gorm:"uniqueIndex:idx_monthly_home_ym_key;column:year_month"` // YYYY-MM
	BucketKey  string    `json:"bucket_key" gorm:"uniqueIndex:idx_monthly_home_ym_key;column:bucket_key"`
	KwhTotal   float64   `json:"kwh_total" gorm:"column:kwh_total"`
	Source     string    `json:"source" gorm:"column:source"`
	ComputedAt time.Time `json:"computed_at" gorm:"column:computed_at"`
}

// DailyUsageBucket is the per-calendar-day analogue of MonthlyUsageBucket,
// used to stitch a partial month against the prior year.
type DailyUsageBucket struct {
	ID         uint      `json:"-" gorm:"primaryKey;column:id"`
	HomeID     string    `json:"home_id" gorm:"uniqueIndex:idx_daily_home_day_key;column:home_id"`
	Date       string    `json:"date" gorm:"uniqueIndex:idx_daily_home_day_key;column:date"` // YYYY-MM-DD, local calendar day
	BucketKey  string    `json:"bucket_key" gorm:"uniqueIndex:idx_daily_home_day_key;column:bucket_key"`
	KwhTotal   float64   `json:"kwh_total" gorm:"column:kwh_total"`
	Source     string    `json:"source" gorm:"column:source"`
	ComputedAt time.Time `json:"computed_at" gorm:"column:computed_at"`
}

// EflValidationRecord persists one validator verdict for the admin review
// queue. Payload holds the full JSON result; the indexed columns exist for
// queue filtering.
type EflValidationRecord struct {
	ID                string    `json:"id" gorm:"primaryKey;column:id"`
	PlanID            string    `json:"plan_id" gorm:"index;column:plan_id"`
	Status            string    `json:"status" gorm:"index;column:status"`
	TdspSource        string    `json:"tdsp_source" gorm:"column:tdsp_source"`
	MaxDeviationCents float64   `json:"max_deviation_cents" gorm:"column:max_deviation_cents"`
	QueueReason       string    `json:"queue_reason" gorm:"column:queue_reason"`
	Payload           []byte    `json:"payload" gorm:"column:payload"`
	CreatedAt         time.Time `json:"created_at" gorm:"column:created_at"`
}

// EmailConfig holds configuration for review-queue email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	ToAddress   string    `json:"to_address" gorm:"column:to_address"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`       // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Setting is a single key/value configuration row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the last run of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}
