package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type ProcessorConfig struct {
	BaseURL string
	APIKey  string
}

// BillingConfig carries the platform economics. Rates are basis points,
// amounts are cents, intervals are days.
type BillingConfig struct {
	FeeBps         int64
	DepositBps     int64
	RiskPoolBps    int64
	ReserveBps     int64
	ClinicShareBps int64

	MinBillCents int64
	MaxBillCents int64

	NumInstallments        int
	InstallmentIntervalDay int

	MaxPaymentRetries int
	PayoutBatchSize   int
	OverdueGraceDays  int
}

// SweepConfig sets the cadence of the background loops.
type SweepConfig struct {
	DueCharges  time.Duration
	Payouts     time.Duration
	Collections time.Duration
	ChargeLimit int
}

type AppConfig struct {
	Port      string
	Postgres  PostgresConfig
	Redis     RedisConfig
	S3        S3Config
	AMQP      AMQPConfig
	Processor ProcessorConfig
	Billing   BillingConfig
	Sweeps    SweepConfig

	StatementDir      string
	FilesPublicPrefix string
	ExternalURL       string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustInt64(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration value %q: %v", s, err)
	}
	return d
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8010"),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "pawpay"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "pawpay"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "pawpay_"),
		},
		S3: S3Config{
			Enabled:         mustBool(getenv("S3_ENABLED", "false")),
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "statements"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		AMQP: AMQPConfig{
			URL:      getenv("AMQP_URL", ""),
			Exchange: getenv("AMQP_EXCHANGE", "pawpay.events"),
		},
		Processor: ProcessorConfig{
			BaseURL: getenv("PROCESSOR_URL", "http://localhost:9100"),
			APIKey:  getenv("PROCESSOR_API_KEY", ""),
		},
		Billing: BillingConfig{
			FeeBps:         mustInt64(getenv("BILLING_FEE_BPS", "600")),
			DepositBps:     mustInt64(getenv("BILLING_DEPOSIT_BPS", "2500")),
			RiskPoolBps:    mustInt64(getenv("BILLING_RISK_POOL_BPS", "100")),
			ReserveBps:     mustInt64(getenv("BILLING_RESERVE_BPS", "100")),
			ClinicShareBps: mustInt64(getenv("BILLING_CLINIC_SHARE_BPS", "200")),

			MinBillCents: mustInt64(getenv("BILLING_MIN_BILL_CENTS", "50000")),
			MaxBillCents: mustInt64(getenv("BILLING_MAX_BILL_CENTS", "2000000")),

			NumInstallments:        mustAtoi(getenv("BILLING_NUM_INSTALLMENTS", "6")),
			InstallmentIntervalDay: mustAtoi(getenv("BILLING_INSTALLMENT_INTERVAL_DAYS", "30")),

			MaxPaymentRetries: mustAtoi(getenv("BILLING_MAX_PAYMENT_RETRIES", "3")),
			PayoutBatchSize:   mustAtoi(getenv("BILLING_PAYOUT_BATCH_SIZE", "5")),
			OverdueGraceDays:  mustAtoi(getenv("BILLING_OVERDUE_GRACE_DAYS", "3")),
		},
		Sweeps: SweepConfig{
			DueCharges:  mustDuration(getenv("SWEEP_DUE_CHARGES", "1h")),
			Payouts:     mustDuration(getenv("SWEEP_PAYOUTS", "15m")),
			Collections: mustDuration(getenv("SWEEP_COLLECTIONS", "6h")),
			ChargeLimit: mustAtoi(getenv("SWEEP_CHARGE_LIMIT", "100")),
		},

		StatementDir:      getenv("STATEMENT_DIR", "./statements"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
	}
}
