package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

//Config settings of the invoice import, read from the environment and an optional .env file
type Config struct {
	JobName            string   `validate:"required"`
	InvoiceResource    string   `validate:"required"`
	InvoiceDelimiter   string   `validate:"len=1"`
	InvoiceLinesToSkip int      `validate:"gte=0"`
	InvoiceFieldNames  []string `validate:"min=1,dive,required"`
	InvoiceEncoding    string
	InvoiceChecksum    string `validate:"omitempty,oneof=OK MD5 SHA1 SHA256 SHA512"`
	ChunkSize          int    `validate:"gte=1"`
	ProcessConcurrency int    `validate:"gte=1,lte=256"`
	DB                 DBConfig
	RedisAddress       string
	LockTTL            time.Duration `validate:"gte=0"`
	PubSubProjectID    string
	PubSubTopic        string `validate:"required_with=PubSubProjectID"`
	GCSBucket          string
	LogLevel           string `validate:"oneof=debug info warn warning error"`
	LogFormat          string `validate:"oneof=text json"`
}

//DBConfig MySQL connection settings, the database is optional and disabled when Host is empty
type DBConfig struct {
	User            string
	Password        string
	Host            string
	Port            int `validate:"gte=0,lte=65535"`
	Name            string `validate:"required_with=Host"`
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectAttempts int `validate:"gte=1"`
}

var validate = validator.New()

var requiredInvoiceFields = []string{"name", "number", "amount", "discount"}

//Load reads .env when present, then the environment, and validates the result
func Load() (*Config, error) {
	_ = godotenv.Load()
	env := &envInts{}
	cfg := &Config{
		JobName:            stringFromEnv("BATCH_JOB_NAME", "invoiceJob"),
		InvoiceResource:    stringFromEnv("INVOICE_RESOURCE", "invoices.csv"),
		InvoiceDelimiter:   parseDelimiter(stringFromEnv("INVOICE_DELIMITER", ",")),
		InvoiceLinesToSkip: env.get("INVOICE_LINES_TO_SKIP", 1),
		InvoiceFieldNames:  listFromEnv("INVOICE_FIELD_NAMES", []string{"name", "number", "amount", "discount", "location"}),
		InvoiceEncoding:    os.Getenv("INVOICE_ENCODING"),
		InvoiceChecksum:    strings.ToUpper(os.Getenv("INVOICE_CHECKSUM")),
		ChunkSize:          env.get("CHUNK_SIZE", 2),
		ProcessConcurrency: env.get("PROCESS_CONCURRENCY", 1),
		DB: DBConfig{
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Host:            os.Getenv("DB_HOST"),
			Port:            env.get("DB_PORT", 3306),
			Name:            os.Getenv("DB_NAME"),
			MaxOpenConns:    env.get("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    env.get("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(env.get("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(env.get("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
			ConnectAttempts: env.get("DB_CONNECT_ATTEMPTS", 5),
		},
		RedisAddress:    os.Getenv("REDIS_ADDRESS"),
		LockTTL:         time.Duration(env.get("LOCK_TTL_SECONDS", 60)) * time.Second,
		PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:     os.Getenv("PUBSUB_TOPIC"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		LogLevel:        strings.ToLower(stringFromEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(stringFromEnv("LOG_FORMAT", "text")),
	}
	if env.err != nil {
		return nil, errors.Wrap(env.err, "invalid configuration")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	for _, required := range requiredInvoiceFields {
		if !containsFold(cfg.InvoiceFieldNames, required) {
			return nil, errors.Errorf("invalid configuration: INVOICE_FIELD_NAMES lacks %s", required)
		}
	}
	return cfg, nil
}

//Delimiter the invoice field delimiter as a rune
func (c *Config) Delimiter() rune {
	for _, r := range c.InvoiceDelimiter {
		return r
	}
	return ','
}

func parseDelimiter(v string) string {
	switch strings.ToLower(v) {
	case `\t`, "tab":
		return "\t"
	case "pipe":
		return "|"
	case "semicolon":
		return ";"
	}
	return v
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

//envInts reads integer variables, keeping the first value that does not parse
type envInts struct {
	err error
}

func (e *envInts) get(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if e.err == nil {
			e.err = errors.Errorf("%s=%q is not an integer", key, v)
		}
		return def
	}
	return n
}

func listFromEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		list = append(list, strings.TrimSpace(p))
	}
	return list
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
