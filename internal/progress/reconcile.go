package progress

import "context"

// ReconcileWithStats re-derives which achievements the player already
// qualifies for from raw statistics and discovered combinations,
// independent of whether an explicit unlock event ever fired (a threshold
// crossed offline, or an achievement added after the milestone was
// reached). Every id goes through unlockIfEligible, so running this every
// session is safe: nothing already unlocked (claimed or not) is touched.
//
// currency is an optional snapshot of current balances; nil skips the
// currency thresholds.
func (t *Tracker) ReconcileWithStats(currency map[string]float64) {
	ctx := context.Background()

	t.mu.Lock()
	stats := t.stats
	t.mu.Unlock()

	if stats.GamesWon >= 1 {
		t.unlockIfEligible(ctx, "first_win")
	}
	if stats.GamesWon >= 10 {
		t.unlockIfEligible(ctx, "total_wins_10")
	}
	if stats.GamesWon >= 100 {
		t.unlockIfEligible(ctx, "total_wins_100")
	}
	if stats.TotalMoves >= 10000 {
		t.unlockIfEligible(ctx, "tireless_tactician")
	}
	if stats.TotalPlayTime >= hourMs {
		t.unlockIfEligible(ctx, "dedicated_player")
	}
	if stats.TotalPlayTime >= 10*hourMs {
		t.unlockIfEligible(ctx, "time_master")
	}
	if stats.ElegantCheckmates >= 1 {
		t.unlockIfEligible(ctx, "elegant_checkmate")
	}
	if stats.ElegantCheckmates >= 50 {
		t.unlockIfEligible(ctx, "elegant_master")
	}
	if stats.PremiumCurrencyEarned >= 100 {
		t.unlockIfEligible(ctx, "premium_collector")
	}

	if t.combos != nil {
		combos := t.combos.All()
		if len(combos) >= 1 {
			t.unlockIfEligible(ctx, "first_combination")
		}
		if len(combos) >= 100 {
			t.unlockIfEligible(ctx, "combination_collector")
		}
		for _, combo := range combos {
			if combo.TotalPower > 1000 {
				t.unlockIfEligible(ctx, "powerful_combination")
			}
			if len(combo.SynergyBonuses) > 0 {
				t.unlockIfEligible(ctx, "synergy_master")
			}
		}
	}

	t.checkResourceThresholds(ctx, currency)
}
