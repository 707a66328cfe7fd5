package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"atenda/pkg/client"
	"atenda/pkg/logger"
)

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Scheduling defaults: suggestion scan step, suggestion cap, and the
	// working-day bounds used when a resource has no explicit hours.
	SlotStepMin    int
	MaxSuggestions int
	WorkdayStart   string
	WorkdayEnd     string
	SlotLockTTL    time.Duration

	TaxRatePercent int
	InvoiceDueDays int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotStepMin:    getEnvNum(EnvSlotStepMin, DefaultSlotStepMin),
		MaxSuggestions: getEnvNum(EnvMaxSuggestions, DefaultMaxSuggestions),
		WorkdayStart:   getEnvStr(EnvWorkdayStart, DefaultWorkdayStart),
		WorkdayEnd:     getEnvStr(EnvWorkdayEnd, DefaultWorkdayEnd),
		SlotLockTTL:    getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),

		TaxRatePercent: getEnvNum(EnvTaxRatePercent, DefaultTaxRatePercent),
		InvoiceDueDays: getEnvNum(EnvInvoiceDueDays, DefaultInvoiceDueDays),

		OutboxPollInterval: getEnvDuration(EnvOutboxPollEvery, DefaultOutboxPollInterval),
		OutboxBatchSize:    getEnvNum(EnvOutboxBatchSize, DefaultOutboxBatchSize),
		OutboxMaxAttempts:  getEnvNum(EnvOutboxMaxAttempts, DefaultOutboxMaxAttempts),
	}

	cfg.Log = logger.New(logger.Config{
		Level:   getEnvStr(EnvLogLevel, logger.INFO),
		Format:  logger.JSON,
		Service: serviceName,
	})

	cfg.Client = client.NewClient()

	return cfg
}

// ConnectMongo establishes the shared Mongo client. Separated from Load so
// worker binaries and tests can build a Config without a live database.
func (c *Config) ConnectMongo() {
	c.Client.SetMongo(c.Log, c.MongoURI, c.MongoConnTimeout)
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("mongo URI cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.SlotStepMin <= 0 || c.SlotStepMin > 60 {
		return fmt.Errorf("slot step must be between 1 and 60 minutes, got %d", c.SlotStepMin)
	}
	if c.MaxSuggestions < 0 {
		return fmt.Errorf("max suggestions cannot be negative, got %d", c.MaxSuggestions)
	}
	if !timeOfDayRe.MatchString(c.WorkdayStart) {
		return fmt.Errorf("workday start must be HH:MM, got %q", c.WorkdayStart)
	}
	if !timeOfDayRe.MatchString(c.WorkdayEnd) {
		return fmt.Errorf("workday end must be HH:MM, got %q", c.WorkdayEnd)
	}
	if c.TaxRatePercent < 0 || c.TaxRatePercent > 100 {
		return fmt.Errorf("tax rate percent must be between 0 and 100, got %d", c.TaxRatePercent)
	}
	if c.InvoiceDueDays <= 0 {
		return fmt.Errorf("invoice due days must be positive, got %d", c.InvoiceDueDays)
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox max attempts must be positive, got %d", c.OutboxMaxAttempts)
	}
	return nil
}

func (c *Config) LogConfiguration() {
	c.Log.Info("Configuration loaded",
		"mongo_database", c.MongoDatabaseName,
		"port", c.Port,
		"request_timeout", c.RequestTimeout,
		"slot_step_min", c.SlotStepMin,
		"max_suggestions", c.MaxSuggestions,
		"workday_start", c.WorkdayStart,
		"workday_end", c.WorkdayEnd,
		"tax_rate_percent", c.TaxRatePercent,
		"invoice_due_days", c.InvoiceDueDays,
		"outbox_poll_interval", c.OutboxPollInterval,
		"outbox_batch_size", c.OutboxBatchSize,
	)
}

func getEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
