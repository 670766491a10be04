package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir    string
	Level  string
	Format string
	// Output defaults to stdout.
	Output io.Writer
}

// Setup configures the standard logrus logger. When Dir is set, output is
// also written to a rotating app.log inside it.
func Setup(opts Options) (*logrus.Logger, error) {
	log := logrus.StandardLogger()
	if err := Configure(log, opts); err != nil {
		return nil, err
	}
	return log, nil
}

func Configure(log *logrus.Logger, opts Options) error {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", opts.Level)
	}
	log.SetLevel(level)

	switch opts.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
			return errors.Wrap(err, "error creating log directory")
		}
		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "app.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(out, logFile)
	}
	log.SetOutput(out)
	return nil
}
