package logging

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FormatText = "text"
	FormatJson = "json"
	// FormatCommandLine prints only the message, for human-facing command output.
	FormatCommandLine = "commandline"
)

var validLogFormats = map[string]bool{
	FormatText:        true,
	FormatJson:        true,
	FormatCommandLine: true,
}

// Config defines logging configuration.
type Config struct {
	// Log level, e.g. info, warn etc
	Level string `mapstructure:"level"`
	// Logging format, one of text, json or commandline
	Format string `mapstructure:"format"`
}

// DefaultConfig logs at info level using the text formatter.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatText}
}

func (c Config) Validate() error {
	if _, err := parseLogLevel(c.Level); err != nil {
		return err
	}
	return validateLogFormat(c.Format)
}

func validateLogFormat(f string) error {
	if _, ok := validLogFormats[f]; !ok {
		formats := maps.Keys(validLogFormats)
		slices.Sort(formats)
		return errors.Errorf("unknown log format: %s.  Valid formats are %s", f, formats)
	}
	return nil
}

func parseLogLevel(level string) (logrus.Level, error) {
	l, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel, errors.Errorf("unknown level: %s", level)
	}
	return l, nil
}
