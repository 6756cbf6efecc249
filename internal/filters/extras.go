package filters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/tamis/internal/values"
)

// Environment is the slice of render state filter packs care about. The
// binding hook receives an opaque value; anything satisfying this interface
// is used, anything else leaves the pack on real wall-clock time.
type Environment interface {
	Now() time.Time
}

// Extras implements the convenience filters outside the classic set:
// serialization, identifiers, and timezone-aware dates.
type Extras struct {
	env Environment
}

// BindEnvironment accepts the render capability injected at registration.
func (e *Extras) BindEnvironment(env any) {
	if aware, ok := env.(Environment); ok {
		e.env = aware
	}
}

func (e *Extras) now() time.Time {
	if e.env != nil {
		return e.env.Now()
	}
	return time.Now()
}

// JSON serializes the input as compact JSON.
func (e *Extras) JSON(input any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("serializing to json: %w", err)
	}
	return string(raw), nil
}

// UUID returns a fresh random identifier, ignoring its input.
func (e *Extras) UUID(input any) string {
	return uuid.NewString()
}

// Handleize turns the input into a url-safe handle: lowercase, runs of
// non-alphanumerics collapsed to single dashes, no leading or trailing
// dash.
func (e *Extras) Handleize(input any) string {
	s := strings.ToLower(values.Str(input))
	var b strings.Builder
	dash := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		switch {
		case alnum:
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// Pluralize chooses between a singular and plural form based on the input
// count. The plural form defaults to singular plus "s".
func (e *Extras) Pluralize(input, singular any, args ...any) string {
	n, ok := values.Int(input)
	if !ok {
		n = 0
	}
	one := values.Str(singular)
	many := one + "s"
	if len(args) > 0 {
		many = values.Str(args[0])
	}
	if n == 1 {
		return one
	}
	return many
}

// DateInZone formats a time like the date filter, but in the named IANA
// zone. The render environment supplies "now" when one is bound, so
// pinned-clock renders stay reproducible.
func (e *Extras) DateInZone(input, format, zone any) (string, error) {
	t, ok := parseTime(input, e.now)
	if !ok {
		return values.Str(input), nil
	}
	loc, err := time.LoadLocation(values.Str(zone))
	if err != nil {
		return "", fmt.Errorf("loading zone %q: %w", values.Str(zone), err)
	}
	return strftime(t.In(loc), values.Str(format)), nil
}
