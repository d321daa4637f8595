package fallback

import (
	"errors"
	"testing"

	"github.com/chronochess/progress/internal/models"
)

func TestTentativeWriteReadClear(t *testing.T) {
	l := NewLedger(NewMemoryKV())

	a := models.Achievement{ID: "first_win", Name: "First Victory", UnlockedTimestamp: 1000}
	if err := l.WriteTentative(a); err != nil {
		t.Fatalf("write tentative: %v", err)
	}

	entries := l.TentativeEntries()
	if len(entries) != 1 || entries[0].ID != "first_win" {
		t.Fatalf("unexpected tentative entries: %+v", entries)
	}

	got, ok := l.Read("first_win")
	if !ok || got.UnlockedTimestamp != 1000 {
		t.Fatalf("read mismatch: %+v ok=%v", got, ok)
	}

	l.ClearTentative("first_win")
	if entries := l.TentativeEntries(); len(entries) != 0 {
		t.Fatalf("expected no tentative entries after clear, got %+v", entries)
	}
}

func TestReadPrefersCommittedRecord(t *testing.T) {
	l := NewLedger(NewMemoryKV())

	if err := l.WriteTentative(models.Achievement{ID: "x", Claimed: false}); err != nil {
		t.Fatal(err)
	}
	if err := l.Commit(models.Achievement{ID: "x", Claimed: true}); err != nil {
		t.Fatal(err)
	}

	got, ok := l.Read("x")
	if !ok || !got.Claimed {
		t.Fatalf("expected claimed committed record, got %+v ok=%v", got, ok)
	}
}

func TestClaimedFlagsOnlyGrow(t *testing.T) {
	l := NewLedger(NewMemoryKV())

	if err := l.MarkClaimed("a"); err != nil {
		t.Fatal(err)
	}
	if err := l.MarkClaimed("b"); err != nil {
		t.Fatal(err)
	}

	flags := l.ClaimedIDs()
	if !flags["a"] || !flags["b"] {
		t.Fatalf("expected both flags set, got %+v", flags)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := NewLedger(NewMemoryKV())

	in := []models.AchievementSnapshot{
		{ID: "first_win", UnlockedTimestamp: 5, Claimed: true},
		{ID: "time_master", UnlockedTimestamp: 9},
	}
	if err := l.WriteSnapshot(in); err != nil {
		t.Fatal(err)
	}

	out := l.Snapshot()
	if len(out) != 2 || out[0].ID != "first_win" || !out[0].Claimed {
		t.Fatalf("snapshot mismatch: %+v", out)
	}
}

// throwingKV fails every write, like localStorage with its quota exhausted.
type throwingKV struct{ *MemoryKV }

func (kv throwingKV) SetItem(key, value string) error {
	return errors.New("quota exceeded")
}

func TestLedgerSurfacesKVErrors(t *testing.T) {
	l := NewLedger(throwingKV{NewMemoryKV()})

	if err := l.WriteTentative(models.Achievement{ID: "x"}); err == nil {
		t.Fatal("expected error from failing KV")
	}
	if err := l.MarkClaimed("x"); err == nil {
		t.Fatal("expected error from failing KV")
	}
	// Reads on the broken store degrade to empty, not panic.
	if flags := l.ClaimedIDs(); len(flags) != 0 {
		t.Fatalf("expected no flags, got %+v", flags)
	}
}
