package logs

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Logger logger interface
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// LogLevel log level
type LogLevel int

const (
	//Debug enable debug or above log output
	Debug LogLevel = 0
	//Info enable info or above log output
	Info LogLevel = 1
	//Warn enable warn or above log output
	Warn LogLevel = 2
	//Error enable error or above log output
	Error LogLevel = 3
)

func (ll LogLevel) String() string {
	switch ll {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	}
	return ""
}

// ParseLevel parses a level name such as "debug" or "WARN", unknown names map to Info
func ParseLevel(s string) LogLevel {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return Info
	}
	switch {
	case lvl >= logrus.DebugLevel:
		return Debug
	case lvl == logrus.InfoLevel:
		return Info
	case lvl == logrus.WarnLevel:
		return Warn
	}
	return Error
}

func (ll LogLevel) logrusLevel() logrus.Level {
	switch ll {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

type fieldsKey struct{}

// WithFields returns a context whose log lines carry the given fields
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	merged := logrus.Fields{}
	if prev, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

type logrusLogger struct {
	log *logrus.Logger
}

//NewLogger init a text Logger instance writing to writer
func NewLogger(writer io.Writer, logLevel LogLevel) Logger {
	l := logrus.New()
	l.SetOutput(writer)
	l.SetLevel(logLevel.logrusLevel())
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	return &logrusLogger{log: l}
}

//NewJSONLogger init a Logger instance emitting one json object per line
func NewJSONLogger(writer io.Writer, logLevel LogLevel) Logger {
	l := logrus.New()
	l.SetOutput(writer)
	l.SetLevel(logLevel.logrusLevel())
	l.SetFormatter(&logrus.JSONFormatter{})
	return &logrusLogger{log: l}
}

//FromLogrus wraps an existing logrus logger
func FromLogrus(l *logrus.Logger) Logger {
	return &logrusLogger{log: l}
}

func (l *logrusLogger) entry(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(l.log).WithField("caller", fileLine())
	if ctx != nil {
		e = e.WithContext(ctx)
		if fields, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
			e = e.WithFields(fields)
		}
	}
	return e
}

func (l *logrusLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	if l.log.IsLevelEnabled(logrus.DebugLevel) {
		l.entry(ctx).Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *logrusLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.log.IsLevelEnabled(logrus.InfoLevel) {
		l.entry(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *logrusLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.log.IsLevelEnabled(logrus.WarnLevel) {
		l.entry(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *logrusLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.log.IsLevelEnabled(logrus.ErrorLevel) {
		l.entry(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

var seperatorReg = regexp.MustCompile("[/\\\\]")

func fileLine() string {
	_, file, line, ok := runtime.Caller(3)
	if ok {
		idx := seperatorReg.FindAllStringIndex(file, -1)
		if len(idx) > 0 {
			file = file[idx[len(idx)-1][1]:]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}
