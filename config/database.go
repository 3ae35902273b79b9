package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//Enabled whether a database is configured
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

//DSN the go-sql-driver data source name, a Host starting with /cloudsql/ or / is dialled as a unix socket
func (c DBConfig) DSN() string {
	cfg := gomysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Name
	cfg.ParseTime = true
	cfg.Loc = time.Local
	if strings.HasPrefix(c.Host, "/") {
		cfg.Net = "unix"
		cfg.Addr = c.Host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	return cfg.FormatDSN()
}

//ConnectDatabase opens the MySQL database through gorm, retrying with backoff up to ConnectAttempts times
func ConnectDatabase(ctx context.Context, c DBConfig, log *logrus.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	attempts := c.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := gorm.Open(mysql.Open(c.DSN()), &gorm.Config{
			Logger: gormlogger.New(log, gormlogger.Config{
				LogLevel:      gormlogger.Error,
				SlowThreshold: time.Second,
			}),
		})
		if err == nil {
			err = tunePool(db, c)
		}
		if err == nil {
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.WithError(pluginErr).Warn("db connected but failed to install otelgorm plugin")
			}
			log.WithFields(logrus.Fields{"attempt": attempt, "host": c.Host, "db": c.Name}).Info("connected to database")
			return db, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		sleep := backoff(attempt)
		log.WithFields(logrus.Fields{"attempt": attempt, "retryIn": sleep.String()}).WithError(err).Warn("failed to connect database")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("connect database %s after %d attempts: %w", c.Name, attempts, lastErr)
}

func tunePool(db *gorm.DB, c DBConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}
