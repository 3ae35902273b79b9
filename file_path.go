package batchcsv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//FilePath a file name pattern, {param}, {job:param}, {step:param} placeholders are replaced
//by job parameters or context values, an optional format follows a comma: {date,yyyyMMdd}, {seq,#4}
type FilePath struct {
	NamePattern string
}

var paramRegexp = regexp.MustCompile(`\{[^}]+\}`)

//Format generate a real file path by formatting FilePath according to *StepExecution instance
func (f *FilePath) Format(execution *StepExecution) (string, error) {
	var firstErr error
	fail := func(err error) string {
		if firstErr == nil {
			firstErr = err
		}
		return ""
	}
	factPath := paramRegexp.ReplaceAllStringFunc(f.NamePattern, func(s string) string {
		s = s[1 : len(s)-1]
		category, param, format := "", s, ""
		if idx := strings.Index(s, ":"); idx > 0 {
			category, param = s[0:idx], s[idx+1:]
		}
		if idx := strings.Index(param, ","); idx > 0 {
			param, format = param[0:idx], param[idx+1:]
		}
		var paramVal interface{}
		jobExec := execution.JobExecution
		switch category {
		case "":
			if v, ok := jobExec.JobParams[param]; ok {
				paramVal = v
			} else if execution.StepContext != nil && execution.StepContext.Exists(param) {
				paramVal = execution.StepContext.Get(param)
			} else if jobExec.JobContext != nil && jobExec.JobContext.Exists(param) {
				paramVal = jobExec.JobContext.Get(param)
			} else {
				return fail(errors.Errorf("can not find param:%v", param))
			}
		case "job":
			if jobExec.JobContext == nil || !jobExec.JobContext.Exists(param) {
				return fail(errors.Errorf("can not find param:%v in JobExecution", param))
			}
			paramVal = jobExec.JobContext.Get(param)
		case "step":
			if execution.StepContext == nil || !execution.StepContext.Exists(param) {
				return fail(errors.Errorf("can not find param:%v in StepExecution", param))
			}
			paramVal = execution.StepContext.Get(param)
		default:
			return fail(errors.Errorf("unsupported param category: %v", category))
		}
		str, err := formatParam(paramVal, format)
		if err != nil {
			return fail(err)
		}
		return str
	})
	if firstErr != nil {
		return "", firstErr
	}
	return factPath, nil
}

var dateFmtRegexp = regexp.MustCompile("yyyy|MM|dd|HH|mm|SS")

var dateLayoutReplacer = strings.NewReplacer("yyyy", "2006", "MM", "01", "dd", "02", "HH", "15", "mm", "04", "SS", "05")

func formatParam(val interface{}, format string) (string, error) {
	if val == nil {
		return "", nil
	}
	switch {
	case format == "":
		return fmt.Sprintf("%v", val), nil
	case dateFmtRegexp.MatchString(format):
		dt, err := paramDate(val)
		if err != nil {
			return "", err
		}
		return dt.Format(dateLayoutReplacer.Replace(format)), nil
	case strings.Contains(format, "#"):
		digits, err := strconv.Atoi(strings.Trim(format, "#"))
		if err != nil {
			return "", errors.Errorf("unsupported format:%v", format)
		}
		n, err := paramInteger(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%0*d", digits, n), nil
	}
	return "", errors.Errorf("unsupported format:%v", format)
}

func paramDate(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		switch len(v) {
		case 8:
			return time.ParseInLocation("20060102", v, time.Local)
		case 10:
			return time.ParseInLocation("2006-01-02", v, time.Local)
		case 19:
			return time.ParseInLocation("2006-01-02 15:04:05", v, time.Local)
		}
	}
	return time.Time{}, errors.Errorf("can not parse to date:%v", val)
}

func paramInteger(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, errors.Errorf("can not parse to integer:%v", val)
}
