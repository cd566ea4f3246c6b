// Package testutil provides testing helpers for tycon registries and types.
// It does not import tycon, so it can be used from tycon's own tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
)

// Record is one captured log record.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder is a slog.Handler that keeps every record in memory.
type LogRecorder struct {
	mu      *sync.Mutex
	records *[]Record
	attrs   []slog.Attr
	level   slog.Level
}

// NewLogRecorder returns a recorder capturing records at level and above,
// and a logger writing to it.
func NewLogRecorder(level slog.Level) (*LogRecorder, *slog.Logger) {
	r := &LogRecorder{mu: &sync.Mutex{}, records: &[]Record{}, level: level}
	return r, slog.New(r)
}

func (r *LogRecorder) Enabled(_ context.Context, l slog.Level) bool { return l >= r.level }

func (r *LogRecorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, Record{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	return nil
}

func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *r
	c.attrs = append(slices.Clone(r.attrs), attrs...)
	return &c
}

// WithGroup is not needed by tycon's logging; groups are flattened.
func (r *LogRecorder) WithGroup(string) slog.Handler { return r }

// Records returns a copy of the captured records.
func (r *LogRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(*r.records)
}

// Find returns the captured records with the given message.
func (r *LogRecorder) Find(msg string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Message == msg {
			out = append(out, rec)
		}
	}
	return out
}

// Reset discards the captured records.
func (r *LogRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = nil
}

// AssertLogged checks that a record with msg was captured at level and
// returns the first one.
func AssertLogged(t *testing.T, r *LogRecorder, level slog.Level, msg string) Record {
	t.Helper()
	for _, rec := range r.Find(msg) {
		if rec.Level == level {
			return rec
		}
	}
	var got []string
	for _, rec := range r.Records() {
		got = append(got, rec.Level.String()+" "+rec.Message)
	}
	t.Fatalf("expected %s %q to be logged, got:\n  %s", level, msg, strings.Join(got, "\n  "))
	return Record{}
}

// ErrorResponse is the JSON form of a structured tycon error.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DecodeError returns the structured form of err, unwrapping until an
// error that marshals with a code is found.
func DecodeError(err error) (*ErrorResponse, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		data, mErr := json.Marshal(e)
		if mErr != nil {
			continue
		}
		var resp ErrorResponse
		if json.Unmarshal(data, &resp) == nil && resp.Code != "" {
			return &resp, true
		}
	}
	return nil, false
}

// AssertErrorCode checks that err is a structured error with the expected code.
func AssertErrorCode(t *testing.T, err error, expectedCode string) *ErrorResponse {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", expectedCode)
	}
	resp, ok := DecodeError(err)
	if !ok {
		t.Fatalf("expected structured error with code %s, got %T: %v", expectedCode, err, err)
	}
	if resp.Code != expectedCode {
		t.Errorf("expected error code %s, got %s (message: %s)", expectedCode, resp.Code, resp.Message)
	}
	return resp
}

// AssertDetail checks that a decoded error carries a detail with the
// expected value. Values are compared in their JSON form.
func AssertDetail(t *testing.T, resp *ErrorResponse, key string, expected any) {
	t.Helper()
	got, ok := resp.Details[key]
	if !ok {
		t.Errorf("expected detail %q, details: %v", key, resp.Details)
		return
	}
	want, _ := json.Marshal(expected)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Errorf("detail %q: expected %s, got %s", key, want, have)
	}
}

// AssertNoError fails the test immediately if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
