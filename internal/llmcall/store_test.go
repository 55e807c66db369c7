package llmcall

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCall(id, op string, ts time.Time, success bool) *Call {
	temp := 0.4
	c := &Call{
		ID:           id,
		Timestamp:    ts,
		LatencyMs:    120,
		RequestID:    "req-" + id,
		Operation:    op,
		Provider:     "groq",
		Model:        "llama-3.1-8b-instant",
		Temperature:  &temp,
		Attempts:     1,
		InputTokens:  40,
		OutputTokens: 12,
		Response:     "response " + id,
		Success:      success,
	}
	if !success {
		c.Error = "boom"
	}
	return c
}

func TestStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1700000000123).UTC()

	if err := s.Insert(ctx, testCall("a", "outline", now, true)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
	if got.Operation != "outline" || !got.Success || got.InputTokens != 40 {
		t.Errorf("unexpected call: %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0.4 {
		t.Errorf("Temperature = %v", got.Temperature)
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}
}

func TestStore_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	err := s.Insert(ctx,
		testCall("1", "discover", base.Add(-3*time.Minute), true),
		testCall("2", "outline", base.Add(-2*time.Minute), true),
		testCall("3", "outline", base.Add(-time.Minute), false),
		testCall("4", "crm", base, true),
	)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	all, err := s.List(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 || all[0].ID != "4" || all[3].ID != "1" {
		t.Fatalf("List() order = %v", ids(all))
	}

	outlines, _ := s.List(ctx, QueryFilter{Operation: "outline"})
	if len(outlines) != 2 {
		t.Errorf("List(outline) = %v", ids(outlines))
	}

	ok := false
	failed, _ := s.List(ctx, QueryFilter{Success: &ok})
	if len(failed) != 1 || failed[0].ID != "3" || failed[0].Error != "boom" {
		t.Errorf("List(failed) = %+v", failed)
	}

	after := base.Add(-90 * time.Second)
	recent, _ := s.List(ctx, QueryFilter{After: &after})
	if len(recent) != 2 {
		t.Errorf("List(after) = %v", ids(recent))
	}

	page, _ := s.List(ctx, QueryFilter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != "3" {
		t.Errorf("List(limit/offset) = %v", ids(page))
	}

	counts, err := s.CountByOperation(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("CountByOperation() error = %v", err)
	}
	if counts["outline"] != 2 || counts["discover"] != 1 || counts["crm"] != 1 {
		t.Errorf("CountByOperation() = %v", counts)
	}
}

func ids(calls []Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.ID
	}
	return out
}
