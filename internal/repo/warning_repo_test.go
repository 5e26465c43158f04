package repo

import (
	"context"
	"testing"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

func TestAddWarning_AccumulatesAndCounts(t *testing.T) {
	db := newRepoDB(t, &domain.Warning{})
	ctx := context.Background()

	for i, want := range []int64{1, 2, 3} {
		got, err := AddWarning(ctx, db, "c1", 42, "spam", 7)
		if err != nil {
			t.Fatalf("AddWarning #%d: %v", i+1, err)
		}
		if got != want {
			t.Fatalf("AddWarning #%d count = %d, want %d", i+1, got, want)
		}
	}

	// Same user in another chat is counted separately.
	got, err := AddWarning(ctx, db, "c2", 42, "flood", 7)
	if err != nil {
		t.Fatalf("AddWarning other chat: %v", err)
	}
	if got != 1 {
		t.Fatalf("other chat count = %d, want 1", got)
	}
}

func TestListWarnings_ScopedToChatAndUser(t *testing.T) {
	db := newRepoDB(t, &domain.Warning{})
	ctx := context.Background()

	if _, err := AddWarning(ctx, db, "c1", 42, "spam", 7); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := AddWarning(ctx, db, "c1", 99, "offtopic", 7); err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, err := ListWarnings(ctx, db, "c1", 42)
	if err != nil {
		t.Fatalf("ListWarnings: %v", err)
	}
	if len(list) != 1 || list[0].Reason != "spam" || list[0].WarnedBy != 7 {
		t.Fatalf("unexpected warnings: %#v", list)
	}
}

func TestClearWarnings_RemovesAllForUser(t *testing.T) {
	db := newRepoDB(t, &domain.Warning{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := AddWarning(ctx, db, "c1", 42, "spam", 7); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := AddWarning(ctx, db, "c1", 99, "other user", 7); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := ClearWarnings(ctx, db, "c1", 42)
	if err != nil {
		t.Fatalf("ClearWarnings: %v", err)
	}
	if n != 3 {
		t.Fatalf("cleared %d rows, want 3", n)
	}

	list, err := ListWarnings(ctx, db, "c1", 42)
	if err != nil {
		t.Fatalf("ListWarnings after clear: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected zero warnings after clear, got %d", len(list))
	}

	// The other user's record is untouched.
	other, err := ListWarnings(ctx, db, "c1", 99)
	if err != nil || len(other) != 1 {
		t.Fatalf("other user affected: len=%d err=%v", len(other), err)
	}
}

func TestClearWarnings_EmptyIsZeroNotError(t *testing.T) {
	db := newRepoDB(t, &domain.Warning{})
	n, err := ClearWarnings(context.Background(), db, "c1", 42)
	if err != nil {
		t.Fatalf("ClearWarnings: %v", err)
	}
	if n != 0 {
		t.Fatalf("cleared %d rows, want 0", n)
	}
}
