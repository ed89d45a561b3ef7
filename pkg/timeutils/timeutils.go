package timeutils

import (
	"encoding"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseableDuration is a time.Duration that can be read from, and written
// to, configuration files as a Go duration string such as "30s" or "5m".
type ParseableDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*ParseableDuration)(nil)
	_ encoding.TextMarshaler   = ParseableDuration(0)
	_ yaml.Unmarshaler         = (*ParseableDuration)(nil)
)

// UnmarshalText parses a duration string.
func (d *ParseableDuration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err == nil {
		*d = ParseableDuration(dur)
	}
	return err
}

// MarshalText renders the duration in the same format UnmarshalText accepts.
func (d ParseableDuration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// UnmarshalYAML accepts duration strings only; bare numbers are rejected
// because their unit would be ambiguous.
func (d *ParseableDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration, e.g. \"30s\"", value.Line)
	}
	if err := d.UnmarshalText([]byte(value.Value)); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// Duration is a convenience method for converting this parseable duration into
// a standard time.Duration instance.
func (d ParseableDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d ParseableDuration) String() string {
	return d.Duration().String()
}
