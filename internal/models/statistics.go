package models

// PlayerStatistics is the single per-player counter record everything in
// the reconciler keys off. All counters are non-negative; durations are
// milliseconds.
type PlayerStatistics struct {
	TotalPlayTime                 int64 `json:"totalPlayTime"`
	GamesPlayed                   int64 `json:"gamesPlayed"`
	GamesWon                      int64 `json:"gamesWon"`
	TotalMoves                    int64 `json:"totalMoves"`
	ElegantCheckmates             int64 `json:"elegantCheckmates"`
	PremiumCurrencyEarned         int64 `json:"premiumCurrencyEarned"`
	EvolutionCombinationsUnlocked int64 `json:"evolutionCombinationsUnlocked"`
	LastPlayedTimestamp           int64 `json:"lastPlayedTimestamp"`
	CreatedTimestamp              int64 `json:"createdTimestamp"`
}

// MergeMax folds statistics imported from another device: every counter
// takes the numeric max, except CreatedTimestamp which takes the min
// (the account is as old as its oldest record).
func (s *PlayerStatistics) MergeMax(other PlayerStatistics) {
	s.TotalPlayTime = maxInt64(s.TotalPlayTime, other.TotalPlayTime)
	s.GamesPlayed = maxInt64(s.GamesPlayed, other.GamesPlayed)
	s.GamesWon = maxInt64(s.GamesWon, other.GamesWon)
	s.TotalMoves = maxInt64(s.TotalMoves, other.TotalMoves)
	s.ElegantCheckmates = maxInt64(s.ElegantCheckmates, other.ElegantCheckmates)
	s.PremiumCurrencyEarned = maxInt64(s.PremiumCurrencyEarned, other.PremiumCurrencyEarned)
	s.EvolutionCombinationsUnlocked = maxInt64(s.EvolutionCombinationsUnlocked, other.EvolutionCombinationsUnlocked)
	s.LastPlayedTimestamp = maxInt64(s.LastPlayedTimestamp, other.LastPlayedTimestamp)
	if other.CreatedTimestamp > 0 && (s.CreatedTimestamp == 0 || other.CreatedTimestamp < s.CreatedTimestamp) {
		s.CreatedTimestamp = other.CreatedTimestamp
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
