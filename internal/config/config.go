package config

import "os"

// Config collects the process-level settings. Everything comes from the
// environment; runtime-tunable knobs (worker interval, email provider)
// live in the database instead.
type Config struct {
	// Driver selects the storage backend: memory, sqlite, postgres or
	// postgrespool.
	Driver string
	// DSN is the database connection string or sqlite file path.
	DSN string
	// PoolDSN, when set, routes bulk interval reads through a dedicated
	// pgxpool connection.
	PoolDSN string
	// ListenAddr is the HTTP bind address.
	ListenAddr string
	// TariffServiceURL points at an external TDSP tariff service; empty
	// uses the compiled-in snapshot only.
	TariffServiceURL string
	// TimeZone is the local calendar for bucketing. Defaults to the Texas
	// market zone.
	TimeZone string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	driver := os.Getenv("INTELLIWATT_DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("INTELLIWATT_DB_DSN")
	if dsn == "" {
		dsn = "intelliwatt.db"
	}
	addr := os.Getenv("INTELLIWATT_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	tz := os.Getenv("INTELLIWATT_TIMEZONE")
	if tz == "" {
		tz = "America/Chicago"
	}
	return Config{
		Driver:           driver,
		DSN:              dsn,
		PoolDSN:          os.Getenv("INTELLIWATT_POOL_DSN"),
		ListenAddr:       addr,
		TariffServiceURL: os.Getenv("INTELLIWATT_TARIFF_SERVICE_URL"),
		TimeZone:         tz,
	}
}
