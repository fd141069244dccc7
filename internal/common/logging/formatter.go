package logging

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// CommandLineFormatter writes one line per entry: the message followed by its fields in key order.
// Warnings and errors carry a level prefix so they stand out among simulation output.
type CommandLineFormatter struct {
	// HideFields drops all fields, leaving just the message.
	HideFields bool
}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	if entry.Level <= log.WarnLevel {
		b.WriteString(entry.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if !f.HideFields {
		keys := make([]string, 0, len(entry.Data))
		for key := range entry.Data {
			if key == Stacktrace {
				continue
			}
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
