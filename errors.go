package batchcsv

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BatchError error returned by every engine operation
type BatchError interface {
	Code() string
	Message() string
	Error() string
	StackTrace() string
	Unwrap() error
}

type batchErr struct {
	code  string
	msg   string
	cause error
}

func (err *batchErr) Code() string {
	return err.code
}

func (err *batchErr) Message() string {
	return err.msg
}

func (err *batchErr) Error() string {
	if err.cause != nil {
		return fmt.Sprintf("batch err, code:%v, message:%v, cause:%v", err.code, err.msg, errors.Cause(err.cause))
	}
	return fmt.Sprintf("batch err, code:%v, message:%v", err.code, err.msg)
}

func (err *batchErr) Unwrap() error {
	return err.cause
}

func (err *batchErr) StackTrace() string {
	if err.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err.cause)
}

func (err *batchErr) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%s", err.Error(), err.StackTrace())
		return
	}
	fmt.Fprint(s, err.Error())
}

// NewBatchError creates a BatchError. msg may be a format string, when args hold one more
// value than msg has verbs and that value is an error, it is kept as the cause.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if n := len(args); n > 0 && n > countVerbs(msg) {
		if e, ok := args[n-1].(error); ok {
			cause = e
			args = args[:n-1]
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	if cause == nil {
		cause = errors.New(msg)
	} else {
		cause = errors.WithStack(cause)
	}
	return &batchErr{code: code, msg: msg, cause: cause}
}

// WrapBatchError returns err unchanged when it already is a BatchError, otherwise wraps it
func WrapBatchError(code string, err error, msg string, args ...interface{}) BatchError {
	if err == nil {
		return nil
	}
	var be BatchError
	if errors.As(err, &be) {
		return be
	}
	return NewBatchError(code, msg, append(args, err)...)
}

func countVerbs(format string) int {
	return strings.Count(format, "%") - 2*strings.Count(format, "%%")
}

const (
	ErrCodeRetry       = "retry"
	ErrCodeStop        = "stop"
	ErrCodeConcurrency = "concurrency"
	ErrCodeDbFail      = "db_fail"
	ErrCodeGeneral     = "general"
)

var (
	//RetryError returned by a Task to be invoked again
	RetryError BatchError = &batchErr{code: ErrCodeRetry, msg: "should retry"}
	//StopError ends a step on a stop request
	StopError BatchError = &batchErr{code: ErrCodeStop, msg: "job stopping"}
)
