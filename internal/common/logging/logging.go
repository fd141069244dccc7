package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets up the standard logrus logger according to config, writing to stdout.
func Configure(config Config) error {
	return ConfigureLogger(logrus.StandardLogger(), os.Stdout, config)
}

// ConfigureLogger applies config to logger, writing to out.
func ConfigureLogger(logger *logrus.Logger, out io.Writer, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(out)
	switch config.Format {
	case FormatJson:
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: RFC3339Milli})
	case FormatCommandLine:
		logger.SetFormatter(new(CommandLineFormatter))
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: RFC3339Milli})
	}
	return nil
}

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
