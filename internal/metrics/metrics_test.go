package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://apps.lrs.lt/sip/p2b.ad_seimo_kadencijos", "apps.lrs.lt"},
		{"mixed case", "https://E-Seimas.lrs.lt/rs", "e-seimas.lrs.lt"},
		{"no scheme", "apps.lrs.lt/sip", "apps.lrs.lt"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if stageTasksTotal == nil || recordsWrittenTotal == nil || documentsTotal == nil || fetchesTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveTask(t *testing.T) {
	Init()
	ok := stageTasksTotal.WithLabelValues("test_stage", TaskSucceeded)
	failed := stageTasksTotal.WithLabelValues("test_stage", TaskFailed)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveTask("test_stage", nil, time.Second)
	ObserveTask("test_stage", errors.New("boom"), time.Second)
	ObserveTask("test_stage", nil, time.Second)

	if got := testutil.ToFloat64(ok) - okBefore; got != 2 {
		t.Errorf("expected 2 successful tasks, got %f", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 1 {
		t.Errorf("expected 1 failed task, got %f", got)
	}
}

func TestObserveRecordAndDocument(t *testing.T) {
	Init()
	rec := recordsWrittenTotal.WithLabelValues("test_table", RecordSkipped)
	doc := documentsTotal.WithLabelValues("test_kind", DocumentPresent)
	recBefore, docBefore := testutil.ToFloat64(rec), testutil.ToFloat64(doc)

	ObserveRecord("test_table", RecordSkipped)
	ObserveDocument("test_kind", DocumentPresent)

	if got := testutil.ToFloat64(rec) - recBefore; got != 1 {
		t.Errorf("expected 1 skipped record, got %f", got)
	}
	if got := testutil.ToFloat64(doc) - docBefore; got != 1 {
		t.Errorf("expected 1 present document, got %f", got)
	}
}

func TestObserveFetchCountsBytes(t *testing.T) {
	Init()
	bytes := fetchBytesTotal.WithLabelValues("fetch.test")
	before := testutil.ToFloat64(bytes)

	ObserveFetch("https://fetch.test/feed", "200", 512)
	ObserveFetch("https://fetch.test/feed", "error", 0)

	if got := testutil.ToFloat64(bytes) - before; got != 512 {
		t.Errorf("expected 512 bytes, got %f", got)
	}
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"https://apps.lrs.lt", "http://e-seimas.lrs.lt", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
