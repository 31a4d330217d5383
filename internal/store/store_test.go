package store

import (
	"errors"
	"strings"
	"testing"
)

func TestTransientIOWrapsAndIsDetectable(t *testing.T) {
	err := transientIO("ping postgres", errors.New("connection refused"))
	if !IsTransientIO(err) {
		t.Fatal("expected transientIO-wrapped error to satisfy IsTransientIO")
	}
	if !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected op description in error text, got %q", err.Error())
	}
}

func TestIsTransientIORejectsUnrelatedError(t *testing.T) {
	if IsTransientIO(errors.New("some other failure")) {
		t.Fatal("expected an unrelated error to not be classified as transient IO")
	}
}

func TestSchemaSQLDefinesRunsAndDayMetricsTables(t *testing.T) {
	if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS runs") {
		t.Fatal("expected schema to define a runs table")
	}
	if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS day_metrics") {
		t.Fatal("expected schema to define a day_metrics table")
	}
	if !strings.Contains(schemaSQL, "REFERENCES runs(id)") {
		t.Fatal("expected day_metrics to foreign-key back to runs")
	}
}
