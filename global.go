package batchcsv

import (
	"os"

	"github.com/chararch/batchcsv/internal/logs"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for the batch engine
func SetLogger(l logs.Logger) {
	if l == nil {
		panic("logger must not be nil")
	}
	logger = l
}

//GetLogger the logger used by the batch engine, shared by readers and writers
func GetLogger() logs.Logger {
	return logger
}

//task pool
const (
	DefaultJobPoolSize = 10
)
