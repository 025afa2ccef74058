package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultKey is the store key holding the serialized registry.
const DefaultKey = "failingCountries"

var (
	// ErrNotSeeded is returned by stores when the registry key does not exist yet.
	ErrNotSeeded = errors.New("registry: key not seeded")
	// ErrMalformed is returned when the stored value is not a JSON object of delays.
	ErrMalformed = errors.New("registry: malformed stored value")
)

// Delay is the number of milliseconds a blocked request waits before failing.
type Delay int64

// ParseDelay coerces a query value into a Delay. Empty, non-numeric and
// negative values become 0.
func ParseDelay(s string) Delay {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return Delay(n)
}

// Duration converts the delay to a time.Duration.
func (d Delay) Duration() time.Duration {
	return time.Duration(d) * time.Millisecond
}

func (d Delay) String() string {
	return strconv.FormatInt(int64(d), 10)
}

// MarshalJSON writes the delay as a decimal string, the form query
// parameters are stored in.
func (d Delay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON accepts both JSON numbers and decimal strings.
func (d *Delay) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = ParseDelay(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f < 0 {
		f = 0
	}
	*d = Delay(f)
	return nil
}

// FailingCountries maps a country code to the delay applied before its
// requests fail. Presence of a key means the country is failing.
type FailingCountries map[string]Delay

// Has reports whether code is currently failing.
func (fc FailingCountries) Has(code string) bool {
	_, ok := fc[code]
	return ok
}

// Codes returns the failing country codes in sorted order.
func (fc FailingCountries) Codes() []string {
	codes := make([]string, 0, len(fc))
	for code := range fc {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns an independent copy. A nil registry clones to an empty one.
func (fc FailingCountries) Clone() FailingCountries {
	out := make(FailingCountries, len(fc))
	for k, v := range fc {
		out[k] = v
	}
	return out
}

// Toggle removes code when present, otherwise adds it with delay.
// It reports whether the code was added.
func (fc FailingCountries) Toggle(code string, delay Delay) bool {
	if fc.Has(code) {
		delete(fc, code)
		return false
	}
	fc[code] = delay
	return true
}

// Decode parses the stored JSON form. A JSON null yields an empty registry.
func Decode(raw string) (FailingCountries, error) {
	var fc FailingCountries
	if err := json.Unmarshal([]byte(raw), &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fc == nil {
		fc = FailingCountries{}
	}
	return fc, nil
}

// Encode serializes the registry for storage.
func Encode(fc FailingCountries) (string, error) {
	if fc == nil {
		fc = FailingCountries{}
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("encode registry: %w", err)
	}
	return string(b), nil
}

// Store loads and replaces the whole registry under a single key.
type Store interface {
	Load(ctx context.Context) (FailingCountries, error)
	Save(ctx context.Context, fc FailingCountries) error
}

// Updater is implemented by stores able to apply a read-modify-write
// atomically. fn receives a private copy it may mutate and return.
type Updater interface {
	Update(ctx context.Context, fn func(FailingCountries) (FailingCountries, error)) (FailingCountries, error)
}

// Seeder writes an initial registry only when the key does not exist yet.
type Seeder interface {
	Seed(ctx context.Context, fc FailingCountries) (bool, error)
}
