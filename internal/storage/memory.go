package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu          sync.RWMutex
	homes       map[string]Home
	readings    []IntervalReading
	bucketDefs  map[string]BucketDefinition
	monthly     map[string]MonthlyUsageBucket // home|ym|key
	daily       map[string]DailyUsageBucket   // home|date|key
	validations []EflValidationRecord
	settings    map[string]string
	jobs        map[string]ScheduledJob
	emailConfig *EmailConfig
	nextID      uint
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		homes:      make(map[string]Home),
		bucketDefs: make(map[string]BucketDefinition),
		monthly:    make(map[string]MonthlyUsageBucket),
		daily:      make(map[string]DailyUsageBucket),
		settings:   make(map[string]string),
		jobs:       make(map[string]ScheduledJob),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Homes

func (m *MemoryStorage) ListHomes(ctx context.Context) ([]Home, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Home, 0, len(m.homes))
	for _, h := range m.homes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetHome(ctx context.Context, id string) (*Home, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.homes[id]
	if !ok {
		return nil, nil
	}
	cp := h
	return &cp, nil
}

func (m *MemoryStorage) UpsertHome(ctx context.Context, h Home) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homes[h.ID] = h
	return nil
}

// Interval readings

func (m *MemoryStorage) InsertIntervalReadings(ctx context.Context, readings []IntervalReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range readings {
		m.nextID++
		r.ID = m.nextID
		m.readings = append(m.readings, r)
	}
	return nil
}

func (m *MemoryStorage) ListIntervalReadings(ctx context.Context, esiid string, start, end time.Time) ([]IntervalReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []IntervalReading
	for _, r := range m.readings {
		if r.Esiid != esiid {
			continue
		}
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Bucket definitions

func (m *MemoryStorage) UpsertBucketDefinitions(ctx context.Context, defs []BucketDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range defs {
		if existing, ok := m.bucketDefs[d.Key]; ok {
			// Definitions are immutable once created; keep the original row.
			d.CreatedAt = existing.CreatedAt
		}
		m.bucketDefs[d.Key] = d
	}
	return nil
}

func (m *MemoryStorage) ListBucketDefinitions(ctx context.Context) ([]BucketDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BucketDefinition, 0, len(m.bucketDefs))
	for _, d := range m.bucketDefs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Bucket totals

func monthlyKey(r MonthlyUsageBucket) string { return r.HomeID + "|" + r.YearMonth + "|" + r.BucketKey }
func dailyKey(r DailyUsageBucket) string     { return r.HomeID + "|" + r.Date + "|" + r.BucketKey }

func (m *MemoryStorage) UpsertMonthlyBuckets(ctx context.Context, rows []MonthlyUsageBucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.monthly[monthlyKey(r)] = r
	}
	return nil
}

func (m *MemoryStorage) UpsertDailyBuckets(ctx context.Context, rows []DailyUsageBucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.daily[dailyKey(r)] = r
	}
	return nil
}

func (m *MemoryStorage) GetMonthlyBuckets(ctx context.Context, homeID string, yearMonths []string) ([]MonthlyUsageBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(yearMonths))
	for _, ym := range yearMonths {
		want[ym] = true
	}
	var out []MonthlyUsageBucket
	for _, r := range m.monthly {
		if r.HomeID == homeID && want[r.YearMonth] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].YearMonth != out[j].YearMonth {
			return out[i].YearMonth < out[j].YearMonth
		}
		return out[i].BucketKey < out[j].BucketKey
	})
	return out, nil
}

func (m *MemoryStorage) GetDailyBuckets(ctx context.Context, homeID, fromDate, toDate string) ([]DailyUsageBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DailyUsageBucket
	for _, r := range m.daily {
		if r.HomeID == homeID && r.Date >= fromDate && r.Date <= toDate {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].BucketKey < out[j].BucketKey
	})
	return out, nil
}

// Validations

func (m *MemoryStorage) SaveValidation(ctx context.Context, rec EflValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations = append(m.validations, rec)
	return nil
}

func (m *MemoryStorage) ListValidations(ctx context.Context, status string, limit int) ([]EflValidationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []EflValidationRecord
	for i := len(m.validations) - 1; i >= 0; i-- {
		rec := m.validations[i]
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Email config & settings

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cp := *m.emailConfig
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, cfg EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailConfig = &cfg
	return nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Scheduled jobs

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}
