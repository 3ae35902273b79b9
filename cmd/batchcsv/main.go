package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/config"
	"github.com/chararch/batchcsv/file"
	"github.com/chararch/batchcsv/invoice"
	"github.com/chararch/batchcsv/lock"
	"github.com/chararch/batchcsv/notify"
	"github.com/chararch/batchcsv/status"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func main() {
	app := &cli.App{
		Name:  "batchcsv",
		Usage: "import invoices from a delimited file in chunks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "resource", Usage: "invoice file path or uri, overrides INVOICE_RESOURCE"},
			&cli.StringFlag{Name: "params", Usage: "job parameters as a json object", Value: "{}"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *runtime) error {
				id, err := rt.launcher.Start(ctx, rt.cfg.JobName, c.String("params"))
				if err != nil {
					return err
				}
				return rt.report(ctx, id)
			})
		},
		Commands: []*cli.Command{
			{
				Name:      "restart",
				Usage:     "restart the last failed or stopped execution of the job, or the execution with the given id",
				ArgsUsage: "[jobExecutionId]",
				Action: func(c *cli.Context) error {
					return withRuntime(c, func(ctx context.Context, rt *runtime) error {
						var target interface{} = rt.cfg.JobName
						if c.Args().Present() {
							var id int64
							if _, err := fmt.Sscan(c.Args().First(), &id); err != nil {
								return errors.Wrapf(err, "invalid job execution id:%v", c.Args().First())
							}
							target = id
						}
						id, err := rt.launcher.Restart(ctx, target)
						if err != nil {
							return err
						}
						return rt.report(ctx, id)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "create the job repository and invoice tables",
				Action: func(c *cli.Context) error {
					cfg, log, err := setup(c)
					if err != nil {
						return err
					}
					if !cfg.DB.Enabled() {
						return errors.New("DB_HOST is not configured")
					}
					db, err := config.ConnectDatabase(c.Context, cfg.DB, log)
					if err != nil {
						return err
					}
					return migrate(c.Context, db)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Error("batchcsv failed")
		os.Exit(1)
	}
}

type runtime struct {
	cfg      *config.Config
	log      *logrus.Logger
	launcher *batchcsv.JobLauncher
	closers  []func()
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

//report logs the outcome of a job execution and turns a failed or stopped run into an error
func (rt *runtime) report(ctx context.Context, jobExecutionId int64) error {
	execution, err := rt.launcher.GetExecution(ctx, jobExecutionId)
	if err != nil {
		return err
	}
	fields := logrus.Fields{
		"jobName":        execution.JobName,
		"jobExecutionId": execution.JobExecutionId,
		"status":         execution.JobStatus,
	}
	for _, se := range execution.StepExecutions {
		fields[se.StepName+".read"] = se.ReadCount
		fields[se.StepName+".write"] = se.WriteCount
		fields[se.StepName+".filter"] = se.FilterCount
	}
	if execution.JobStatus != status.COMPLETED {
		rt.log.WithFields(fields).WithError(execution.FailError).Error("invoice import did not complete")
		return errors.Errorf("job %v finished with status %v", execution.JobName, execution.JobStatus)
	}
	rt.log.WithFields(fields).Info("invoice import completed")
	return nil
}

func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if r := c.String("resource"); r != "" {
		cfg.InvoiceResource = r
	}
	return cfg, config.NewLogger(cfg, os.Stdout), nil
}

func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	rt := &runtime{cfg: cfg, log: log}
	defer rt.close()

	jobCfg := invoice.JobConfig{
		JobName:     cfg.JobName,
		Resource:    cfg.InvoiceResource,
		Delimiter:   cfg.Delimiter(),
		LinesToSkip: cfg.InvoiceLinesToSkip,
		FieldNames:  cfg.InvoiceFieldNames,
		Encoding:    cfg.InvoiceEncoding,
		Checksum:    cfg.InvoiceChecksum,
		ChunkSize:   uint(cfg.ChunkSize),
		Concurrency: cfg.ProcessConcurrency,
	}
	if cfg.GCSBucket != "" && !strings.Contains(cfg.InvoiceResource, "://") {
		gcs, err := file.NewGCSFileSystem(ctx, cfg.GCSBucket)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func() { gcs.Client.Close() })
		jobCfg.FileStore = gcs
	}

	var jobRepo batchcsv.JobRepository
	var invoices invoice.Repository
	if cfg.DB.Enabled() {
		db, err := config.ConnectDatabase(ctx, cfg.DB, log)
		if err != nil {
			return err
		}
		if err = migrate(ctx, db); err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "get sql db from gorm")
		}
		rt.closers = append(rt.closers, func() { sqlDB.Close() })
		jobRepo = batchcsv.NewSQLJobRepository(sqlDB)
		invoices = invoice.NewGormRepository(db)
		jobCfg.TxManager = invoice.NewGormTxManager(db)
	} else {
		log.Warn("DB_HOST is not configured, invoices are only logged and job executions kept in memory")
		invoices = invoice.SaveAllFunc(func(ctx context.Context, items []*invoice.Invoice) error {
			for _, inv := range items {
				log.WithField("invoice", inv.String()).Info("invoice imported")
			}
			return nil
		})
	}

	var opts []batchcsv.LauncherOption
	if cfg.RedisAddress != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress, 3, log)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func() { rdb.Close() })
		opts = append(opts, batchcsv.WithJobLocker(lock.NewRedisJobLocker(rdb, cfg.LockTTL)))
	}

	var listeners []interface{}
	if cfg.PubSubProjectID != "" {
		client, topic, err := notify.OpenTopic(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func() {
			topic.Stop()
			client.Close()
		})
		listeners = append(listeners, notify.NewPubSubJobListener(topic))
	}

	rt.launcher = batchcsv.NewJobLauncher(jobRepo, opts...)
	rt.closers = append(rt.closers, rt.launcher.Close)
	if err = rt.launcher.Register(invoice.NewJob(jobCfg, invoices, listeners...)); err != nil {
		return err
	}
	return fn(ctx, rt)
}

func migrate(ctx context.Context, db *gorm.DB) error {
	start := time.Now()
	if err := invoice.NewGormRepository(db).AutoMigrate(); err != nil {
		return errors.Wrap(err, "migrate invoice table")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db from gorm")
	}
	if err = batchcsv.InitSchema(ctx, sqlDB); err != nil {
		return err
	}
	logrus.WithField("took", time.Since(start).String()).Info("schema migrated")
	return nil
}
