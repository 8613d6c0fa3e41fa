// ABOUTME: Turns namespaced form fields into per-table records and submits them.
// ABOUTME: Fields look like "health-bmi=22.5"; "meta-date" and "isEditing" steer the submit.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/trackle/internal/models"
	"github.com/harperreed/trackle/internal/storage"
)

// NamespaceSeparator separates the namespace from the key in a field name.
const NamespaceSeparator = "-"

const (
	metaNamespace = "meta"
	editingField  = "isEditing"
)

// Submission is one parsed form.
type Submission struct {
	Date    string
	Editing bool
	// Records holds one record per namespace, without the date key.
	Records map[string]models.Record
}

// Parse reads name=value fields. Numeric values become float64, empty
// values are skipped, and a missing meta-date defaults to today.
func Parse(fields []string) (*Submission, error) {
	sub := &Submission{Records: make(map[string]models.Record)}

	for _, field := range fields {
		name, value, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: expected name=value", field)
		}
		value = strings.TrimSpace(value)

		namespace, key, namespaced := strings.Cut(name, NamespaceSeparator)
		if !namespaced || key == "" {
			if err := sub.setTopLevel(name, value); err != nil {
				return nil, err
			}
			continue
		}
		if namespace == metaNamespace {
			if key == models.DateKey {
				sub.Date = value
			}
			continue
		}
		if value == "" {
			continue
		}
		if key == models.DateKey {
			return nil, fmt.Errorf("field %q: the date is set with meta-date", name)
		}
		rec, ok := sub.Records[namespace]
		if !ok {
			rec = models.Record{}
			sub.Records[namespace] = rec
		}
		rec[key] = parseValue(value)
	}

	if sub.Date == "" {
		sub.Date = models.Today()
	}
	if !models.IsValidDate(sub.Date) {
		return nil, fmt.Errorf("%w: meta-date %q is not a YYYY-MM-DD date", models.ErrInvalidRecord, sub.Date)
	}
	return sub, nil
}

func (s *Submission) setTopLevel(name, value string) error {
	if name != editingField {
		return fmt.Errorf("invalid field %q: expected namespace%skey", name, NamespaceSeparator)
	}
	if value == "" {
		s.Editing = false
		return nil
	}
	editing, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", editingField, value, err)
	}
	s.Editing = editing
	return nil
}

func parseValue(value string) any {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// Record returns the record for table with the submission date injected.
func (s *Submission) Record(table string) models.Record {
	rec := models.NewRecord(s.Date)
	for k, v := range s.Records[table] {
		rec[k] = v
	}
	return rec
}

// ErrNoFields is returned by Submit when no namespace names a tracker table.
var ErrNoFields = errors.New("no tracker fields to submit")

// Submit writes one record for each tracker table named in the submission,
// replacing existing records when editing and upserting otherwise. Tables
// the submission does not name keep what they hold. Namespaces that are not
// tables are ignored.
func Submit(ctx context.Context, repo storage.Repository, sub *Submission) error {
	written := 0
	for _, table := range models.AllTables {
		if _, ok := sub.Records[table]; !ok {
			continue
		}
		rec := sub.Record(table)
		var err error
		if sub.Editing {
			err = repo.UpdateData(ctx, rec, table)
		} else {
			err = repo.SaveData(ctx, rec, table)
		}
		if err != nil {
			return err
		}
		written++
	}
	if written == 0 {
		return ErrNoFields
	}
	return nil
}

// Tables returns the tracker tables named in the submission, in table order.
func (s *Submission) Tables() []string {
	var tables []string
	for _, table := range models.AllTables {
		if _, ok := s.Records[table]; ok {
			tables = append(tables, table)
		}
	}
	return tables
}
