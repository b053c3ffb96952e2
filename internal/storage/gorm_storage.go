package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" || driver == "postgrespool" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&Home{},
		&IntervalReading{},
		&BucketDefinition{},
		&MonthlyUsageBucket{},
		&DailyUsageBucket{},
		&EflValidationRecord{},
		&EmailConfig{},
		&Setting{},
		&ScheduledJob{},
	)
}

// Homes

func (s *GormStorage) ListHomes(ctx context.Context) ([]Home, error) {
	var homes []Home
	result := s.db.WithContext(ctx).Order("id").Find(&homes)
	return homes, result.Error
}

func (s *GormStorage) GetHome(ctx context.Context, id string) (*Home, error) {
	var h Home
	result := s.db.WithContext(ctx).First(&h, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &h, nil
}

func (s *GormStorage) UpsertHome(ctx context.Context, h Home) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&h).Error
}

// Interval readings

func (s *GormStorage) InsertIntervalReadings(ctx context.Context, readings []IntervalReading) error {
	if len(readings) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(readings, 500).Error
}

func (s *GormStorage) ListIntervalReadings(ctx context.Context, esiid string, start, end time.Time) ([]IntervalReading, error) {
	var readings []IntervalReading
	result := s.db.WithContext(ctx).
		Where("esiid = ? AND timestamp >= ? AND timestamp < ?", esiid, start, end).
		Order("timestamp").
		Find(&readings)
	return readings, result.Error
}

// Bucket definitions

func (s *GormStorage) UpsertBucketDefinitions(ctx context.Context, defs []BucketDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&defs).Error
}

func (s *GormStorage) ListBucketDefinitions(ctx context.Context) ([]BucketDefinition, error) {
	var defs []BucketDefinition
	result := s.db.WithContext(ctx).Order("key").Find(&defs)
	return defs, result.Error
}

// Bucket totals. Each batch runs in one transaction.

func (s *GormStorage) UpsertMonthlyBuckets(ctx context.Context, rows []MonthlyUsageBucket) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "home_id"}, {Name: "year_month"}, {Name: "bucket_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"kwh_total", "source", "computed_at"}),
		}).Create(&rows).Error
	})
}

func (s *GormStorage) UpsertDailyBuckets(ctx context.Context, rows []DailyUsageBucket) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "home_id"}, {Name: "date"}, {Name: "bucket_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"kwh_total", "source", "computed_at"}),
		}).Create(&rows).Error
	})
}

func (s *GormStorage) GetMonthlyBuckets(ctx context.Context, homeID string, yearMonths []string) ([]MonthlyUsageBucket, error) {
	var rows []MonthlyUsageBucket
	result := s.db.WithContext(ctx).
		Where("home_id = ? AND year_month IN ?", homeID, yearMonths).
		Order("year_month, bucket_key").
		Find(&rows)
	return rows, result.Error
}

func (s *GormStorage) GetDailyBuckets(ctx context.Context, homeID, fromDate, toDate string) ([]DailyUsageBucket, error) {
	var rows []DailyUsageBucket
	result := s.db.WithContext(ctx).
		Where("home_id = ? AND date >= ? AND date <= ?", homeID, fromDate, toDate).
		Order("date, bucket_key").
		Find(&rows)
	return rows, result.Error
}

// Validations

func (s *GormStorage) SaveValidation(ctx context.Context, rec EflValidationRecord) error {
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStorage) ListValidations(ctx context.Context, status string, limit int) ([]EflValidationRecord, error) {
	var recs []EflValidationRecord
	q := s.db.WithContext(ctx).Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	result := q.Find(&recs)
	return recs, result.Error
}

// Email config & settings

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var config EmailConfig
	result := s.db.WithContext(ctx).First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &config, nil
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&config).Error
}

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Scheduled jobs & locking

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// SQLite has no advisory locks; assume a single instance.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
