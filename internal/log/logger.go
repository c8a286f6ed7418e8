package log

import (
	"fmt"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/simkube-go/sk-tracer/internal/config"
)

var logger = logr.Discard()

// Init builds the process wide logger, writing on stdout.
func Init(conf config.Logs) error {
	ret, err := New(conf, os.Stdout)
	if err != nil {
		return err
	}

	logger = ret

	return nil
}

// New builds a logger writing on out. Verbosity is conf.Level: V(n) is logged if n <= conf.Level.
func New(conf config.Logs, out io.Writer) (logr.Logger, error) {
	loggerImpl := logrus.New()

	loggerImpl.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))
	loggerImpl.SetOutput(out)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		loggerImpl.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
		})
	case config.EncoderTypeJson:
		loggerImpl.SetFormatter(&logrus.JSONFormatter{})
	default:
		return logr.Discard(), fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	return logrusr.New(loggerImpl, logrusr.WithReportCaller()).WithName("sk-tracer"), nil
}

func Logger() logr.Logger {
	return logger
}
