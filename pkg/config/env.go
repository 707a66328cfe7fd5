package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotStepMin       = "SLOT_STEP_MIN"
	EnvMaxSuggestions    = "MAX_SUGGESTIONS"
	EnvWorkdayStart      = "WORKDAY_START"
	EnvWorkdayEnd        = "WORKDAY_END"
	EnvSlotLockTTL       = "SLOT_LOCK_TTL"
	EnvTaxRatePercent    = "TAX_RATE_PERCENT"
	EnvInvoiceDueDays    = "INVOICE_DUE_DAYS"
	EnvOutboxPollEvery   = "OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize   = "OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts = "OUTBOX_MAX_ATTEMPTS"

	EnvPaginationLimit = "PAGINATION_LIMIT"
)
