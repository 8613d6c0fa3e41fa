// ABOUTME: Tests for the Record model.
// ABOUTME: Validates date checks, scalar checks, field ordering, and sorting.
package models

import (
	"errors"
	"math"
	"testing"
)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"valid", Record{"date": "2024-01-05", "bmi": 22.1}, false},
		{"int value", Record{"date": "2024-01-05", "steps": 9000}, false},
		{"nil value", Record{"date": "2024-01-05", "notes": nil}, false},
		{"missing date", Record{"bmi": 22.1}, true},
		{"date not string", Record{"date": 20240105}, true},
		{"day first date", Record{"date": "05-01-2024"}, true},
		{"impossible date", Record{"date": "2024-02-31"}, true},
		{"nested map", Record{"date": "2024-01-05", "meal": map[string]any{"kcal": 1}}, true},
		{"slice value", Record{"date": "2024-01-05", "tags": []string{"a"}}, true},
		{"empty field name", Record{"date": "2024-01-05", "": 1.0}, true},
		{"NaN value", Record{"date": "2024-01-05", "weight": math.NaN()}, true},
		{"positive infinity", Record{"date": "2024-01-05", "weight": math.Inf(1)}, true},
		{"negative infinity float32", Record{"date": "2024-01-05", "weight": float32(math.Inf(-1))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestRecordWithDoesNotMutate(t *testing.T) {
	r := NewRecord("2024-01-05")
	r2 := r.With("bmi", 22.1)

	if _, ok := r["bmi"]; ok {
		t.Error("With mutated the original record")
	}
	if r2["bmi"] != 22.1 {
		t.Errorf("bmi = %v, want 22.1", r2["bmi"])
	}
	if r2.Date() != "2024-01-05" {
		t.Errorf("Date() = %q, want 2024-01-05", r2.Date())
	}
}

func TestRecordFields(t *testing.T) {
	r := Record{"water": 2.0, "date": "2024-01-05", "bmi": 22.1}
	got := r.Fields()
	want := []string{"date", "bmi", "water"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSortByField(t *testing.T) {
	records := []Record{
		{"date": "2024-03-01", "weight": 80.0},
		{"date": "2023-12-31", "weight": 82.0},
		{"date": "2024-01-15"},
	}

	SortByField(records, DateKey)
	if records[0].Date() != "2023-12-31" || records[2].Date() != "2024-03-01" {
		t.Errorf("date sort wrong: %v", records)
	}

	SortByField(records, "weight")
	if records[0].Date() != "2024-01-15" {
		t.Errorf("expected record without weight first, got %v", records[0])
	}
	if records[1]["weight"] != 80.0 {
		t.Errorf("expected 80 before 82, got %v", records[1])
	}
}

func TestIsValidTable(t *testing.T) {
	for _, name := range AllTables {
		if !IsValidTable(name) {
			t.Errorf("IsValidTable(%q) = false", name)
		}
	}
	if IsValidTable("workouts") {
		t.Error("IsValidTable(workouts) = true")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{22.5, "22.5"},
		{80.0, "80"},
		{"run", "run"},
		{true, "true"},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
