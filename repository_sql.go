package batchcsv

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/chararch/batchcsv/status"
	"github.com/chararch/batchcsv/util"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const mysqlDuplicateEntry = 1062

var schemaDDL = []string{
	`create table if not exists batch_job_instance (
		job_instance_id bigint not null auto_increment primary key,
		job_name varchar(128) not null,
		job_key varchar(64) not null,
		job_params text not null,
		create_time datetime(6) not null,
		unique key uk_job_instance (job_name, job_key)
	)`,
	`create table if not exists batch_job_execution (
		job_execution_id bigint not null auto_increment primary key,
		job_instance_id bigint not null,
		job_name varchar(128) not null,
		job_params text not null,
		create_time datetime(6) not null,
		start_time datetime(6) null,
		end_time datetime(6) null,
		status varchar(16) not null,
		exit_code varchar(16) not null default '',
		exit_message text null,
		last_updated datetime(6) not null,
		version bigint not null,
		key idx_job_execution_instance (job_instance_id)
	)`,
	`create table if not exists batch_step_execution (
		step_execution_id bigint not null auto_increment primary key,
		step_name varchar(128) not null,
		job_execution_id bigint not null,
		job_instance_id bigint not null,
		job_name varchar(128) not null,
		create_time datetime(6) not null,
		start_time datetime(6) null,
		end_time datetime(6) null,
		status varchar(16) not null,
		commit_count bigint not null default 0,
		read_count bigint not null default 0,
		filter_count bigint not null default 0,
		write_count bigint not null default 0,
		read_skip_count bigint not null default 0,
		write_skip_count bigint not null default 0,
		process_skip_count bigint not null default 0,
		rollback_count bigint not null default 0,
		step_context text not null,
		execution_context text not null,
		exit_code varchar(16) not null default '',
		exit_message text null,
		last_updated datetime(6) not null,
		version bigint not null,
		key idx_step_execution_instance (job_instance_id, step_name)
	)`,
}

const stepExecutionColumns = "step_execution_id, step_name, job_execution_id, job_instance_id, create_time, start_time, end_time, status, commit_count, read_count, filter_count, write_count, read_skip_count, write_skip_count, process_skip_count, rollback_count, step_context, execution_context, last_updated, version"

const jobExecutionColumns = "job_execution_id, job_instance_id, job_name, job_params, create_time, start_time, end_time, status, last_updated, version"

type sqlJobRepository struct {
	db *sql.DB
}

//NewSQLJobRepository a JobRepository over a MySQL database, the DSN must enable parseTime
func NewSQLJobRepository(db *sql.DB) JobRepository {
	if db == nil {
		panic("db must not be nil")
	}
	return &sqlJobRepository{db: db}
}

//OpenSQLJobRepository opens a MySQL database from dsn and creates the repository tables if missing
func OpenSQLJobRepository(ctx context.Context, dsn string) (JobRepository, *sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parse dsn")
	}
	cfg.ParseTime = true
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open job repository db")
	}
	if err = InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewSQLJobRepository(db), db, nil
}

//InitSchema creates the job repository tables
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return NewBatchError(ErrCodeDbFail, "init job repository schema err", err)
		}
	}
	return nil
}

func (r *sqlJobRepository) FindJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError) {
	_, key, be := jobKey(params)
	if be != nil {
		return nil, be
	}
	row := r.db.QueryRowContext(ctx, "select job_instance_id, job_name, job_key, job_params, create_time from batch_job_instance where job_name=? and job_key=?", jobName, key)
	return scanJobInstance(row)
}

func (r *sqlJobRepository) FindLastJobInstance(ctx context.Context, jobName string) (*JobInstance, BatchError) {
	row := r.db.QueryRowContext(ctx, "select job_instance_id, job_name, job_key, job_params, create_time from batch_job_instance where job_name=? order by job_instance_id desc limit 1", jobName)
	return scanJobInstance(row)
}

func scanJobInstance(row *sql.Row) (*JobInstance, BatchError) {
	inst := &JobInstance{}
	var params string
	err := row.Scan(&inst.JobInstanceId, &inst.JobName, &inst.JobKey, &params, &inst.CreateTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_job_instance err", err)
	}
	inst.JobParams, err = parseJobParams(params)
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse job params:%v err", params, err)
	}
	return inst, nil
}

func (r *sqlJobRepository) CreateJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError) {
	str, key, be := jobKey(params)
	if be != nil {
		return nil, be
	}
	jobParams, err := parseJobParams(str)
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse job params:%v err", str, err)
	}
	inst := &JobInstance{
		JobName:    jobName,
		JobKey:     key,
		JobParams:  jobParams,
		CreateTime: time.Now(),
	}
	res, err := r.db.ExecContext(ctx, "insert into batch_job_instance(job_name, job_key, job_params, create_time) values(?, ?, ?, ?)", jobName, key, str, inst.CreateTime)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return nil, NewBatchError(ErrCodeConcurrency, "job instance of job:%v with params:%v already exists", jobName, str, err)
		}
		return nil, NewBatchError(ErrCodeDbFail, "insert batch_job_instance err", err)
	}
	if id, er := res.LastInsertId(); er == nil {
		inst.JobInstanceId = id
	}
	return inst, nil
}

func (r *sqlJobRepository) FindLastJobExecution(ctx context.Context, jobInstanceId int64) (*JobExecution, BatchError) {
	row := r.db.QueryRowContext(ctx, "select "+jobExecutionColumns+" from batch_job_execution where job_instance_id=? order by job_execution_id desc limit 1", jobInstanceId)
	return scanJobExecution(row)
}

func (r *sqlJobRepository) FindJobExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, BatchError) {
	row := r.db.QueryRowContext(ctx, "select "+jobExecutionColumns+" from batch_job_execution where job_execution_id=?", jobExecutionId)
	return scanJobExecution(row)
}

func scanJobExecution(row *sql.Row) (*JobExecution, BatchError) {
	var (
		execution          = &JobExecution{JobContext: NewBatchContext()}
		params, st         string
		startTime, endTime sql.NullTime
		lastUpdated        time.Time
	)
	err := row.Scan(&execution.JobExecutionId, &execution.JobInstanceId, &execution.JobName, &params, &execution.CreateTime, &startTime, &endTime, &st, &lastUpdated, &execution.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_job_execution err", err)
	}
	execution.JobStatus = status.BatchStatus(st)
	execution.StartTime = startTime.Time
	execution.EndTime = endTime.Time
	execution.JobParams, err = parseJobParams(params)
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse job params:%v err", params, err)
	}
	return execution, nil
}

func (r *sqlJobRepository) SaveJobExecution(ctx context.Context, execution *JobExecution) BatchError {
	if execution.JobExecutionId == 0 {
		params, err := util.JsonString(execution.JobParams)
		if err != nil {
			return NewBatchError(ErrCodeGeneral, "serialize job params err", err)
		}
		res, err := r.db.ExecContext(ctx, "insert into batch_job_execution(job_instance_id, job_name, job_params, create_time, start_time, end_time, status, exit_code, exit_message, last_updated, version) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			execution.JobInstanceId, execution.JobName, params, execution.CreateTime, nullTime(execution.StartTime), nullTime(execution.EndTime), string(execution.JobStatus), string(execution.JobStatus), errMessage(execution.FailError), time.Now(), 1)
		if err != nil {
			return NewBatchError(ErrCodeDbFail, "insert batch_job_execution err", err)
		}
		if id, er := res.LastInsertId(); er == nil {
			execution.JobExecutionId = id
		}
		execution.Version = 1
		return nil
	}
	res, err := r.db.ExecContext(ctx, "update batch_job_execution set status=?, start_time=?, end_time=?, exit_code=?, exit_message=?, last_updated=?, version=? where job_execution_id=? and version=?",
		string(execution.JobStatus), nullTime(execution.StartTime), nullTime(execution.EndTime), string(execution.JobStatus), errMessage(execution.FailError), time.Now(), execution.Version+1, execution.JobExecutionId, execution.Version)
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "update batch_job_execution err", err)
	}
	if n, _ := res.RowsAffected(); n <= 0 {
		return NewBatchError(ErrCodeConcurrency, "update batch_job_execution:%v failed, stale version:%v", execution.JobExecutionId, execution.Version)
	}
	execution.Version++
	return nil
}

func (r *sqlJobRepository) FindStepExecutions(ctx context.Context, jobExecutionId int64) ([]*StepExecution, BatchError) {
	rows, err := r.db.QueryContext(ctx, "select "+stepExecutionColumns+" from batch_step_execution where job_execution_id=? order by step_execution_id", jobExecutionId)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_step_execution err", err)
	}
	defer rows.Close()
	results := make([]*StepExecution, 0)
	for rows.Next() {
		se, be := scanStepExecution(rows)
		if be != nil {
			return nil, be
		}
		results = append(results, se)
	}
	if err = rows.Err(); err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_step_execution err", err)
	}
	return results, nil
}

func (r *sqlJobRepository) FindLastStepExecution(ctx context.Context, jobInstanceId int64, stepName string) (*StepExecution, BatchError) {
	rows, err := r.db.QueryContext(ctx, "select "+stepExecutionColumns+" from batch_step_execution where job_instance_id=? and step_name=? order by step_execution_id desc limit 1", jobInstanceId, stepName)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_step_execution err", err)
	}
	defer rows.Close()
	if rows.Next() {
		return scanStepExecution(rows)
	}
	if err = rows.Err(); err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_step_execution err", err)
	}
	return nil, nil
}

func scanStepExecution(rows *sql.Rows) (*StepExecution, BatchError) {
	var (
		se                       = &StepExecution{}
		jobExecutionId, instId   int64
		startTime, endTime       sql.NullTime
		st, stepCtx, executionCtx string
	)
	err := rows.Scan(&se.StepExecutionId, &se.StepName, &jobExecutionId, &instId, &se.CreateTime, &startTime, &endTime, &st, &se.CommitCount, &se.ReadCount, &se.FilterCount, &se.WriteCount, &se.ReadSkipCount, &se.WriteSkipCount, &se.ProcessSkipCount, &se.RollbackCount, &stepCtx, &executionCtx, &se.LastUpdated, &se.Version)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "scan batch_step_execution err", err)
	}
	se.StepStatus = status.BatchStatus(st)
	se.StartTime = startTime.Time
	se.EndTime = endTime.Time
	se.StepContext = NewBatchContext()
	if err = util.ParseJson(stepCtx, se.StepContext); err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse step context of step:%v err", se.StepName, err)
	}
	se.StepExecutionContext = NewBatchContext()
	if err = util.ParseJson(executionCtx, se.StepExecutionContext); err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse step execution context of step:%v err", se.StepName, err)
	}
	se.JobExecution = &JobExecution{JobExecutionId: jobExecutionId, JobInstanceId: instId}
	return se, nil
}

func (r *sqlJobRepository) SaveStepExecution(ctx context.Context, execution *StepExecution) BatchError {
	if execution.JobExecution == nil {
		return NewBatchError(ErrCodeGeneral, "step execution:%v has no job execution", execution.StepName)
	}
	stepCtx, err := util.JsonString(execution.StepContext)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, "serialize step context err", err)
	}
	executionCtx, err := util.JsonString(execution.StepExecutionContext)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, "serialize step execution context err", err)
	}
	now := time.Now()
	if execution.StepExecutionId == 0 {
		res, err := r.db.ExecContext(ctx, "insert into batch_step_execution(step_name, job_execution_id, job_instance_id, job_name, create_time, start_time, end_time, status, commit_count, read_count, filter_count, write_count, read_skip_count, write_skip_count, process_skip_count, rollback_count, step_context, execution_context, exit_code, exit_message, last_updated, version) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			execution.StepName, execution.JobExecution.JobExecutionId, execution.JobExecution.JobInstanceId, execution.JobExecution.JobName, execution.CreateTime, nullTime(execution.StartTime), nullTime(execution.EndTime), string(execution.StepStatus),
			execution.CommitCount, execution.ReadCount, execution.FilterCount, execution.WriteCount, execution.ReadSkipCount, execution.WriteSkipCount, execution.ProcessSkipCount, execution.RollbackCount,
			stepCtx, executionCtx, string(execution.StepStatus), errMessage(execution.FailError), now, 1)
		if err != nil {
			return NewBatchError(ErrCodeDbFail, "insert batch_step_execution err", err)
		}
		if id, er := res.LastInsertId(); er == nil {
			execution.StepExecutionId = id
		}
		execution.Version = 1
		execution.LastUpdated = now
		return nil
	}
	res, err := r.db.ExecContext(ctx, "update batch_step_execution set status=?, start_time=?, end_time=?, commit_count=?, read_count=?, filter_count=?, write_count=?, read_skip_count=?, write_skip_count=?, process_skip_count=?, rollback_count=?, step_context=?, execution_context=?, exit_code=?, exit_message=?, last_updated=?, version=? where step_execution_id=? and version=?",
		string(execution.StepStatus), nullTime(execution.StartTime), nullTime(execution.EndTime), execution.CommitCount, execution.ReadCount, execution.FilterCount, execution.WriteCount, execution.ReadSkipCount, execution.WriteSkipCount, execution.ProcessSkipCount, execution.RollbackCount,
		stepCtx, executionCtx, string(execution.StepStatus), errMessage(execution.FailError), now, execution.Version+1, execution.StepExecutionId, execution.Version)
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "update batch_step_execution err", err)
	}
	if n, _ := res.RowsAffected(); n <= 0 {
		return NewBatchError(ErrCodeConcurrency, "update batch_step_execution:%v failed, stale version:%v", execution.StepExecutionId, execution.Version)
	}
	execution.Version++
	execution.LastUpdated = now
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func errMessage(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	msg := err.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	return sql.NullString{String: strings.TrimSpace(msg), Valid: true}
}
