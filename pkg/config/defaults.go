package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "atenda"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotStepMin    = 15
	DefaultMaxSuggestions = 5
	DefaultWorkdayStart   = "09:00"
	DefaultWorkdayEnd     = "18:00"
	DefaultSlotLockTTL    = 10 * time.Second

	DefaultTaxRatePercent = 20
	DefaultInvoiceDueDays = 30

	DefaultOutboxPollInterval = 2 * time.Second
	DefaultOutboxBatchSize    = 50
	DefaultOutboxMaxAttempts  = 8

	DefaultPaginationLimit = 50
	MaxPaginationLimit     = 200
)

// NormalizePaginationLimit clamps a client-supplied limit into sane bounds.
func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		return DefaultPaginationLimit
	}
	if limit > MaxPaginationLimit {
		return MaxPaginationLimit
	}
	return limit
}

// NormalizeOffset rejects negative offsets.
func NormalizeOffset(offset int64) int64 {
	if offset < 0 {
		return 0
	}
	return offset
}
