// ABOUTME: Record model for daily tracker entries and the fixed table names.
// ABOUTME: A record is a flat field/value map keyed by a YYYY-MM-DD date.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// DateKey is the primary key field present in every record.
const DateKey = "date"

// DateLayout is the time layout of a record key.
const DateLayout = "2006-01-02"

const (
	TableHealth      = "health"
	TableActivities  = "activities"
	TableConsumption = "consumption"
)

// AllTables lists the tables in the order they are created and exported.
var AllTables = []string{TableHealth, TableActivities, TableConsumption}

// ErrInvalidRecord is returned when a record has no usable date key or
// carries a non-scalar value.
var ErrInvalidRecord = errors.New("invalid record")

// IsValidTable checks if a string names one of the fixed tables.
func IsValidTable(s string) bool {
	for _, t := range AllTables {
		if t == s {
			return true
		}
	}
	return false
}

// Record is one day of data in a table.
type Record map[string]any

// NewRecord creates a record holding only its date key.
func NewRecord(date string) Record {
	return Record{DateKey: date}
}

// Date returns the record key, or "" when it is missing or not a string.
func (r Record) Date() string {
	d, _ := r[DateKey].(string)
	return d
}

// With returns a copy of r with field set to value.
func (r Record) With(field string, value any) Record {
	c := r.Clone()
	c[field] = value
	return c
}

// Clone returns a shallow copy. Values are scalars, so this is a full copy.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Fields returns the field names with the date key first and the rest sorted.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		if k != DateKey {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	if _, ok := r[DateKey]; ok {
		fields = append([]string{DateKey}, fields...)
	}
	return fields
}

// Validate checks the date key and that every value is a scalar. Floats
// must be finite.
func (r Record) Validate() error {
	raw, ok := r[DateKey]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrInvalidRecord, DateKey)
	}
	date, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidRecord, DateKey, raw)
	}
	if !IsValidDate(date) {
		return fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRecord, date)
	}
	for k, v := range r {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidRecord)
		}
		if !isScalar(v) {
			return fmt.Errorf("%w: field %q has non-scalar value %T", ErrInvalidRecord, k, v)
		}
		if !isFinite(v) {
			return fmt.Errorf("%w: field %q is not a finite number", ErrInvalidRecord, k)
		}
	}
	return nil
}

// IsValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func IsValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Today returns the current local date as a record key.
func Today() string {
	return time.Now().Format(DateLayout)
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isFinite(v any) bool {
	switch f := v.(type) {
	case float64:
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case float32:
		return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
	default:
		return true
	}
}

// SortByField sorts records in place by field. Values of the same kind
// compare naturally; records missing the field sort first. Dates compare
// chronologically because the key layout is lexically ordered.
func SortByField(records []Record, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		return lessValue(records[i][field], records[j][field])
	})
}

func lessValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af < bf
	}
	if aNum != bNum {
		return aNum
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// FormatValue renders a field value for display. Missing values render empty.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}
