package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DueDate is an instant with millisecond precision. On the wire it is an
// epoch-millisecond string.
type DueDate struct {
	ms int64
}

func DueDateFromTime(t time.Time) DueDate {
	return DueDate{ms: t.UnixMilli()}
}

func DueDateFromMillis(ms int64) DueDate {
	return DueDate{ms: ms}
}

func (d DueDate) Millis() int64   { return d.ms }
func (d DueDate) Time() time.Time { return time.UnixMilli(d.ms) }
func (d DueDate) String() string  { return strconv.FormatInt(d.ms, 10) }

func (d DueDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts an epoch-ms number or string, an RFC 3339 timestamp,
// or a YYYY-MM-DD date (midnight UTC).
func (d *DueDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return NewValidationError("Invalid dueDate")
		}
		ms, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil || !inInt64Range(f) {
				return NewValidationError("Invalid dueDate")
			}
			ms = int64(f)
		}
		d.ms = ms
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewValidationError("Invalid dueDate")
	}
	parsed, err := ParseDueDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// inInt64Range reports whether f converts to int64 without overflow.
// float64(math.MaxInt64) rounds up to 2^63, hence the strict upper bound.
func inInt64Range(f float64) bool {
	return !math.IsNaN(f) && f >= math.MinInt64 && f < math.MaxInt64
}

// ParseDueDate parses the accepted textual forms of a due date.
func ParseDueDate(s string) (DueDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DueDate{}, NewValidationError("Invalid dueDate")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return DueDate{ms: ms}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DueDateFromTime(t), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DueDateFromTime(t), nil
	}
	return DueDate{}, NewValidationError(fmt.Sprintf("Invalid dueDate: %q", s))
}

// OptionalDueDate distinguishes an absent dueDate (Set=false) from an
// explicit null (Set=true, Value=nil) in update requests.
type OptionalDueDate struct {
	Set   bool
	Value *DueDate
}

func (o *OptionalDueDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	// "" clears the due date as well
	if bytes.Equal(bytes.TrimSpace(data), []byte(`""`)) {
		o.Value = nil
		return nil
	}
	var d DueDate
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	o.Value = &d
	return nil
}
