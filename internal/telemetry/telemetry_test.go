package telemetry_test

import (
	"context"
	"testing"

	"github.com/valpere/peretran-nmt/internal/telemetry"
)

func openTestStore(t *testing.T) *telemetry.Store {
	t.Helper()
	s, err := telemetry.Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLog_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Log(ctx, telemetry.RequestEntry{
		ID:          "req-1",
		Endpoint:    "/translate",
		SourceLang:  "en",
		TargetLang:  "de",
		ModelFamily: "opus-mt",
		DurationMs:  42,
	})
	if err != nil {
		t.Fatalf("unexpected error logging entry: %v", err)
	}
}

func TestRecentErrors_FiltersToErrorsOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Log(ctx, telemetry.RequestEntry{ID: "ok-1", Endpoint: "/translate"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Log(ctx, telemetry.RequestEntry{ID: "bad-1", Endpoint: "/translate", Error: "boom"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := s.RecentErrors(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "bad-1" {
		t.Fatalf("expected exactly the error entry, got %+v", entries)
	}
}
