package log

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the application logger.
type Options struct {
	Level      string
	Verbose    bool
	File       bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console receives log lines in addition to the file. Leave nil while
	// the progress display owns the terminal.
	Console io.Writer
}

// Setup points logrus at a rotating file under Dir and optionally the
// console. The returned closer flushes the file.
func Setup(opts Options) (io.Closer, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "reelrunner.log"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	switch len(writers) {
	case 0:
		logrus.SetOutput(io.Discard)
	case 1:
		logrus.SetOutput(writers[0])
	default:
		logrus.SetOutput(io.MultiWriter(writers...))
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
