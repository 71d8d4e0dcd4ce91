// Package config loads the application configuration and resolves typed
// controller options.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Options holds the free-form options of one provider, as read from the
// providers section of the configuration file.
type Options map[string]any

// With returns a copy of o overlaid with other. Keys in other win.
func (o Options) With(other Options) Options {
	merged := make(Options, len(o)+len(other))
	for k, v := range o {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Property is a named, typed option with a default value.
type Property[T any] struct {
	Name        string
	Default     T
	Description string
}

// Bool declares a boolean property.
func Bool(name string, def bool) Property[bool] {
	return Property[bool]{Name: name, Default: def}
}

// Int declares an integer property.
func Int(name string, def int) Property[int] {
	return Property[int]{Name: name, Default: def}
}

// String declares a string property.
func String(name string, def string) Property[string] {
	return Property[string]{Name: name, Default: def}
}

// DurationProperty declares a duration property.
func DurationProperty(name string, def time.Duration) Property[time.Duration] {
	return Property[time.Duration]{Name: name, Default: def}
}

// WithDescription sets the human-readable description.
func (p Property[T]) WithDescription(desc string) Property[T] {
	p.Description = desc
	return p
}

// Get resolves the property. Unset values fall back to the default; values
// of the wrong type are converted when possible, otherwise the default is
// used and a warning is logged.
func (p Property[T]) Get(opts Options) T {
	raw, ok := opts[p.Name]
	if !ok || raw == nil {
		return p.Default
	}
	if v, ok := raw.(T); ok {
		return v
	}
	if v, ok := coerce[T](raw); ok {
		return v
	}

	log.Warn().
		Str("property", p.Name).
		Str("value", fmt.Sprint(raw)).
		Msg("Invalid property value, using default")
	return p.Default
}

func coerce[T any](raw any) (T, bool) {
	var zero T
	s := fmt.Sprint(raw)

	var out any
	switch any(zero).(type) {
	case bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return zero, false
		}
		out = b
	case int:
		i, err := strconv.Atoi(s)
		if err != nil {
			return zero, false
		}
		out = i
	case int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return zero, false
		}
		out = i
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return zero, false
		}
		out = f
	case string:
		out = s
	case time.Duration:
		d, err := time.ParseDuration(s)
		if err != nil {
			return zero, false
		}
		out = d
	default:
		return zero, false
	}

	return out.(T), true
}
