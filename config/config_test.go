package config

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/chararch/batchcsv"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	assert.Equal(t, nil, err)
	assert.Equal(t, "invoiceJob", cfg.JobName)
	assert.Equal(t, "invoices.csv", cfg.InvoiceResource)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.Equal(t, 1, cfg.InvoiceLinesToSkip)
	assert.Equal(t, []string{"name", "number", "amount", "discount", "location"}, cfg.InvoiceFieldNames)
	assert.Equal(t, 2, cfg.ChunkSize)
	assert.Equal(t, 1, cfg.ProcessConcurrency)
	assert.Equal(t, false, cfg.DB.Enabled())
	assert.Equal(t, 60*time.Second, cfg.LockTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INVOICE_RESOURCE", "gs://invoices/in/invoices.tsv")
	t.Setenv("INVOICE_DELIMITER", "tab")
	t.Setenv("INVOICE_FIELD_NAMES", "name, number ,amount,discount,location")
	t.Setenv("INVOICE_CHECKSUM", "md5")
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("PROCESS_CONCURRENCY", "4")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "books")
	t.Setenv("DB_USER", "batch")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	cfg, err := Load()
	assert.Equal(t, nil, err)
	assert.Equal(t, '\t', cfg.Delimiter())
	assert.Equal(t, []string{"name", "number", "amount", "discount", "location"}, cfg.InvoiceFieldNames)
	assert.Equal(t, "MD5", cfg.InvoiceChecksum)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.ProcessConcurrency)
	assert.T(t, cfg.DB.Enabled())
	dsn := cfg.DB.DSN()
	assert.T(t, strings.HasPrefix(dsn, "batch:secret@tcp(db.internal:3306)/books?"), dsn)
	assert.T(t, strings.Contains(dsn, "parseTime=true"), dsn)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	assert.Equal(t, nil, writeFile(dir+"/.env", "BATCH_JOB_NAME=nightlyInvoices\nCHUNK_SIZE=7\n"))
	cfg, err := Load()
	assert.Equal(t, nil, err)
	assert.Equal(t, "nightlyInvoices", cfg.JobName)
	assert.Equal(t, 7, cfg.ChunkSize)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	cases := map[string]string{
		"CHUNK_SIZE":          "0",
		"INVOICE_DELIMITER":   ";;",
		"INVOICE_CHECKSUM":    "crc32",
		"LOG_FORMAT":          "xml",
		"PUBSUB_PROJECT_ID":   "project",
		"DB_HOST":             "db.internal",
		"INVOICE_FIELD_NAMES": "name,number,amount,location",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.NotEqual(t, nil, err)
		})
	}
}

func TestLoad_InvalidInteger(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHUNK_SIZE", "abc")
	t.Setenv("INVOICE_LINES_TO_SKIP", "one")
	cfg, err := Load()
	assert.Equal(t, (*Config)(nil), cfg)
	assert.NotEqual(t, nil, err)
	assert.T(t, strings.Contains(err.Error(), `INVOICE_LINES_TO_SKIP="one" is not an integer`), err)
}

func TestDSN_UnixSocket(t *testing.T) {
	c := DBConfig{User: "batch", Host: "/cloudsql/project:region:instance", Name: "books"}
	dsn := c.DSN()
	assert.T(t, strings.HasPrefix(dsn, "batch@unix(/cloudsql/project:region:instance)/books?"), dsn)
}

func TestNewLogger(t *testing.T) {
	prev := batchcsv.GetLogger()
	defer batchcsv.SetLogger(prev)
	buf := &bytes.Buffer{}
	l := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, buf)
	l.Info("hidden")
	assert.Equal(t, "", buf.String())
	batchcsv.GetLogger().Warn(context.Background(), "engine warning, jobName:%v", "invoiceJob")
	assert.T(t, strings.Contains(buf.String(), `"msg":"engine warning, jobName:invoiceJob"`), buf.String())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 16*time.Second, backoff(4))
	assert.Equal(t, 30*time.Second, backoff(10))
}

func writeFile(path string, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
