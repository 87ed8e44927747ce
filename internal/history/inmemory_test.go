package history

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStoreSaveAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, outcome := range []string{"audio", "timeout", "backend_error"} {
		if err := s.Save(ctx, Record{SessionID: "s1", Text: "hi", Outcome: outcome, Duration: 1200 * time.Millisecond}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(got))
	}
	// Newest first.
	if got[0].Outcome != "backend_error" || got[1].Outcome != "timeout" {
		t.Fatalf("unexpected order: %v, %v", got[0].Outcome, got[1].Outcome)
	}
	if got[0].ID == "" {
		t.Fatalf("Save should assign an ID")
	}
}

func TestInMemoryStoreBounded(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < maxInMemoryRecords+10; i++ {
		if err := s.Save(ctx, Record{SessionID: "s1", Text: "x", Outcome: "audio"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != maxInMemoryRecords {
		t.Fatalf("records kept = %d, want bounded at %d", len(got), maxInMemoryRecords)
	}
}

func TestFactoryFallsBackToInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("store type = %T, want *InMemoryStore without DATABASE_URL", s)
	}
}
