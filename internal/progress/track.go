package progress

import (
	"context"
	"fmt"

	"github.com/chronochess/progress/internal/combinations"
	"github.com/chronochess/progress/internal/models"
)

const hourMs = int64(60 * 60 * 1000)

// TrackGameWin records a won game. The producer's snapshot carries the
// win streak and lifetime totals the internal counters may lag behind
// (e.g. wins earned before this tracker existed).
func (t *Tracker) TrackGameWin(ctx context.Context, win GameWinStats) {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	t.stats.GamesPlayed++
	t.stats.GamesWon++
	t.stats.TotalMoves += win.MovesPlayed
	totalWins := t.stats.GamesWon
	if win.TotalWins > totalWins {
		totalWins = win.TotalWins
	}
	totalMoves := t.stats.TotalMoves
	t.touchStatsLocked()
	t.mu.Unlock()
	t.persistStatistics()

	if totalWins >= 1 {
		t.unlockIfEligible(ctx, "first_win")
	}
	if totalWins >= 10 {
		t.unlockIfEligible(ctx, "total_wins_10")
	}
	if totalWins >= 100 {
		t.unlockIfEligible(ctx, "total_wins_100")
	}
	if win.WinStreak >= 5 {
		t.unlockIfEligible(ctx, "win_streak_5")
	}
	if win.WinStreak >= 10 {
		t.unlockIfEligible(ctx, "win_streak_10")
	}
	if totalMoves >= 10000 {
		t.unlockIfEligible(ctx, "tireless_tactician")
	}
}

// TrackResourceAccumulation checks currency thresholds against an absolute
// resource snapshot (balances, not deltas).
func (t *Tracker) TrackResourceAccumulation(ctx context.Context, resources map[string]float64) {
	t.EnsureInitialized(ctx)

	if premium := int64(resources[CurrencyAetherShards]); premium > 0 {
		t.mu.Lock()
		if premium > t.stats.PremiumCurrencyEarned {
			t.stats.PremiumCurrencyEarned = premium
		}
		t.touchStatsLocked()
		t.mu.Unlock()
		t.persistStatistics()
	}

	t.checkResourceThresholds(ctx, resources)
}

func (t *Tracker) checkResourceThresholds(ctx context.Context, resources map[string]float64) {
	if resources == nil {
		return
	}
	if resources[CurrencyTemporalEssence] >= 1000 {
		t.unlockIfEligible(ctx, "resource_collector")
	}
	if resources[CurrencyTemporalEssence] >= 10000 {
		t.unlockIfEligible(ctx, "wealth_accumulator")
	}
	if resources[CurrencyAetherShards] >= 100 {
		t.unlockIfEligible(ctx, "premium_collector")
	}
}

// TrackPieceEvolution records an evolution purchase on a piece type.
func (t *Tracker) TrackPieceEvolution(ctx context.Context, pieceType string, isMaxed, isFirstEvolution bool) {
	t.EnsureInitialized(ctx)
	t.log.Debug("piece evolution tracked: " + pieceType)

	t.mu.Lock()
	t.touchStatsLocked()
	t.mu.Unlock()
	t.persistStatistics()

	if isFirstEvolution {
		t.unlockIfEligible(ctx, "first_evolution")
	}
	if isMaxed {
		t.unlockIfEligible(ctx, "piece_master")
	}
}

// TrackPlayTime accumulates play time in milliseconds.
func (t *Tracker) TrackPlayTime(ctx context.Context, ms int64) {
	if ms <= 0 {
		return
	}
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	t.stats.TotalPlayTime += ms
	total := t.stats.TotalPlayTime
	t.touchStatsLocked()
	t.mu.Unlock()
	t.persistStatistics()

	if total >= hourMs {
		t.unlockIfEligible(ctx, "dedicated_player")
	}
	if total >= 10*hourMs {
		t.unlockIfEligible(ctx, "time_master")
	}
}

// TrackElegantMove records an elegant checkmate.
func (t *Tracker) TrackElegantMove(ctx context.Context) {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	t.stats.ElegantCheckmates++
	count := t.stats.ElegantCheckmates
	t.touchStatsLocked()
	t.mu.Unlock()
	t.persistStatistics()

	t.unlockIfEligible(ctx, "elegant_checkmate")
	if count >= 50 {
		t.unlockIfEligible(ctx, "elegant_master")
	}
}

// TrackCombinationAchievement handles combination-related achievement
// events raised directly by gameplay rather than via discovery.
func (t *Tracker) TrackCombinationAchievement(ctx context.Context, kind string, data map[string]float64) {
	t.EnsureInitialized(ctx)

	switch kind {
	case "power":
		if data["totalPower"] > 1000 {
			t.unlockIfEligible(ctx, "powerful_combination")
		}
	case "synergy":
		t.unlockIfEligible(ctx, "synergy_master")
	case "collection":
		if data["count"] >= 100 {
			t.unlockIfEligible(ctx, "combination_collector")
		}
	default:
		t.log.Warn(fmt.Sprintf("unknown combination achievement kind %q", kind))
	}
}

// TrackEvolutionCombination registers a piece-evolution layout with the
// combination tracker and feeds the discovery into achievement checks.
// Identical layouts return the existing id without a new discovery.
func (t *Tracker) TrackEvolutionCombination(ctx context.Context, pieceEvolutions map[string]models.PieceEvolution) (string, error) {
	t.EnsureInitialized(ctx)

	id, isNew, err := t.combos.Track(pieceEvolutions)
	if err != nil {
		return "", err
	}
	if !isNew {
		return id, nil
	}

	t.mu.Lock()
	t.stats.EvolutionCombinationsUnlocked++
	t.touchStatsLocked()
	t.mu.Unlock()
	t.persistStatistics()

	t.unlockIfEligible(ctx, "first_combination")

	combo, ok := t.combos.Get(combinations.HashCombination(pieceEvolutions))
	if ok {
		if combo.TotalPower > 1000 {
			t.unlockIfEligible(ctx, "powerful_combination")
		}
		if len(combo.SynergyBonuses) > 0 {
			t.unlockIfEligible(ctx, "synergy_master")
		}
	}
	if t.combos.Count() >= 100 {
		t.unlockIfEligible(ctx, "combination_collector")
	}
	return id, nil
}
