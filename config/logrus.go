package config

import (
	"io"
	"os"

	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/internal/logs"
	"github.com/sirupsen/logrus"
)

//NewLogger a logrus logger configured by LogLevel and LogFormat, it also becomes the batch engine's logger
func NewLogger(c *Config, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(out)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	batchcsv.SetLogger(logs.FromLogrus(l))
	return l
}
