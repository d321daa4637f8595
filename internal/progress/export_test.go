package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/chronochess/progress/internal/combinations"
	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/storage/fallback"
)

func TestExportImportRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1, WinStreak: 5, MovesPlayed: 60})
	e.tracker.MarkAchievementClaimed(ctx, "first_win")
	if _, err := e.tracker.TrackEvolutionCombination(ctx, map[string]models.PieceEvolution{
		"pawn": {PieceType: "pawn", EvolutionLevel: 2},
	}); err != nil {
		t.Fatal(err)
	}

	payload, err := e.tracker.ExportProgressData(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if payload.Checksum == 0 {
		t.Fatal("export should carry a checksum")
	}

	// Import into a completely fresh tracker.
	store := newMemStore()
	combos := combinations.NewTracker(store, logger.New())
	fresh := NewTracker(store, fallback.NewLedger(fallback.NewMemoryKV()), nil, combos, logger.New())
	fresh.SetRetry(3, func(int) {})

	if err := fresh.ImportProgressData(ctx, payload); err != nil {
		t.Fatalf("import: %v", err)
	}

	list := fresh.GetAchievements(ctx)
	for _, a := range payload.Achievements {
		got := findAchievement(list, a.ID)
		if got == nil {
			t.Fatalf("achievement %s lost in round trip", a.ID)
		}
		if got.Claimed != a.Claimed {
			t.Fatalf("claimed state for %s lost in round trip", a.ID)
		}
	}
	if got := fresh.GetStatistics(ctx); got.GamesWon != 1 || got.TotalMoves != 60 {
		t.Fatalf("statistics lost in round trip: %+v", got)
	}
}

func TestImportRejectsTamperedPayload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1})

	payload, err := e.tracker.ExportProgressData(ctx)
	if err != nil {
		t.Fatal(err)
	}

	payload.Statistics.GamesWon = 9999 // forged after export

	fresh := newEnv(t)
	err = fresh.tracker.ImportProgressData(ctx, payload)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum rejection, got %v", err)
	}
	// Rejection is wholesale: nothing merged.
	if got := fresh.tracker.GetStatistics(ctx).GamesWon; got != 0 {
		t.Fatalf("partial merge after rejected import: gamesWon=%d", got)
	}
}

func TestImportMergesStatsByMax(t *testing.T) {
	donor := newEnv(t)
	ctx := context.Background()
	donor.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1})
	donor.tracker.TrackPlayTime(ctx, 5000)

	payload, err := donor.tracker.ExportProgressData(ctx)
	if err != nil {
		t.Fatal(err)
	}

	local := newEnv(t)
	// Local side is further along on a different counter.
	local.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1})
	local.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 2})

	if err := local.tracker.ImportProgressData(ctx, payload); err != nil {
		t.Fatal(err)
	}

	stats := local.tracker.GetStatistics(ctx)
	if stats.GamesWon != 2 {
		t.Fatalf("gamesWon should keep the local max, got %d", stats.GamesWon)
	}
	if stats.TotalPlayTime != 5000 {
		t.Fatalf("totalPlayTime should take the imported max, got %d", stats.TotalPlayTime)
	}
}

func TestImportDoesNotOverwriteLocalClaim(t *testing.T) {
	donor := newEnv(t)
	ctx := context.Background()
	donor.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1})
	payload, err := donor.tracker.ExportProgressData(ctx)
	if err != nil {
		t.Fatal(err)
	}

	local := newEnv(t)
	local.tracker.TrackGameWin(ctx, GameWinStats{TotalWins: 1})
	local.tracker.MarkAchievementClaimed(ctx, "first_win")

	if err := local.tracker.ImportProgressData(ctx, payload); err != nil {
		t.Fatal(err)
	}

	got := findAchievement(local.tracker.GetAchievements(ctx), "first_win")
	if got == nil || !got.Claimed {
		t.Fatal("import must not reset a locally claimed achievement")
	}
}

func TestImportMinimumCreatedTimestamp(t *testing.T) {
	donor := newEnv(t)
	ctx := context.Background()
	donor.tracker.EnsureInitialized(ctx)
	donor.tracker.mu.Lock()
	donor.tracker.stats.CreatedTimestamp = 1000
	donor.tracker.mu.Unlock()

	payload, err := donor.tracker.ExportProgressData(ctx)
	if err != nil {
		t.Fatal(err)
	}

	local := newEnv(t)
	local.tracker.EnsureInitialized(ctx)
	local.tracker.mu.Lock()
	local.tracker.stats.CreatedTimestamp = 5000
	local.tracker.mu.Unlock()

	if err := local.tracker.ImportProgressData(ctx, payload); err != nil {
		t.Fatal(err)
	}
	if got := local.tracker.GetStatistics(ctx).CreatedTimestamp; got != 1000 {
		t.Fatalf("createdTimestamp should take the min, got %d", got)
	}
}
