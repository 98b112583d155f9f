package tabular

import (
	"testing"
	"time"
)

func TestFloat64(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want float64
		ok   bool
	}{
		{"float64", 3.5, 3.5, true},
		{"float32", float32(2), 2, true},
		{"int", 7, 7, true},
		{"int64", int64(-4), -4, true},
		{"numeric string", " 12.25 ", 12.25, true},
		{"text string", "twelve", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Float64(tt.v)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Float64(%v) = (%v, %v), want (%v, %v)", tt.v, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
		ok   bool
	}{
		{"true", true, true, true},
		{"false", false, false, true},
		{"yes string", "Yes", true, true},
		{"no string", "no", false, true},
		{"one", 1, true, true},
		{"zero", 0.0, false, true},
		{"two", 2, false, false},
		{"prose", "maybe", false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Bool(tt.v)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Bool(%v) = (%v, %v), want (%v, %v)", tt.v, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTime(t *testing.T) {
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if got, ok := Time(ref); !ok || !got.Equal(ref) {
		t.Errorf("Time(time.Time) = (%v, %v)", got, ok)
	}
	if got, ok := Time("2024-06-01"); !ok || !got.Equal(ref) {
		t.Errorf("Time(date string) = (%v, %v)", got, ok)
	}
	if got, ok := Time("2024-06-01T12:30:00Z"); !ok || got.Hour() != 12 {
		t.Errorf("Time(rfc3339) = (%v, %v)", got, ok)
	}
	if _, ok := Time("not a date"); ok {
		t.Error("Time(prose) should not parse")
	}
	if _, ok := Time(42); ok {
		t.Error("Time(int) should not parse")
	}
}

func TestString(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"int64", int64(-9), "-9"},
		{"float", 2.5, "2.5"},
		{"whole float", 3.0, "3"},
		{"time", ts, "2024-06-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.v); got != tt.want {
				t.Errorf("String(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}
