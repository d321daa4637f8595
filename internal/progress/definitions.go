package progress

import (
	"github.com/schollz/closestmatch"

	"github.com/chronochess/progress/internal/models"
)

// Currency keys used in achievement rewards and resource snapshots.
const (
	CurrencyTemporalEssence = "temporalEssence"
	CurrencyMnemonicDust    = "mnemonicDust"
	CurrencyAetherShards    = "aetherShards"
	CurrencyArcaneMana      = "arcaneMana"
)

// Definition is a reward condition the reconciler can unlock. Definitions
// are content, not state: an Achievement record is only created the first
// time eligibility is met.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    models.AchievementCategory
	Rarity      models.AchievementRarity
	Reward      map[string]int64
}

var definitions = []Definition{
	{ID: "first_win", Name: "First Victory", Description: "Win your first game", Category: models.CategoryGameplay, Rarity: models.RarityCommon, Reward: map[string]int64{CurrencyTemporalEssence: 50}},
	{ID: "total_wins_10", Name: "Seasoned Player", Description: "Win 10 games", Category: models.CategoryGameplay, Rarity: models.RarityUncommon, Reward: map[string]int64{CurrencyTemporalEssence: 200}},
	{ID: "total_wins_100", Name: "Chess Campaigner", Description: "Win 100 games", Category: models.CategoryGameplay, Rarity: models.RarityRare, Reward: map[string]int64{CurrencyTemporalEssence: 1500, CurrencyAetherShards: 5}},
	{ID: "win_streak_5", Name: "On a Roll", Description: "Win 5 games in a row", Category: models.CategoryGameplay, Rarity: models.RarityUncommon, Reward: map[string]int64{CurrencyMnemonicDust: 100}},
	{ID: "win_streak_10", Name: "Unstoppable", Description: "Win 10 games in a row", Category: models.CategoryGameplay, Rarity: models.RarityRare, Reward: map[string]int64{CurrencyMnemonicDust: 400}},
	{ID: "tireless_tactician", Name: "Tireless Tactician", Description: "Play 10,000 moves", Category: models.CategoryGameplay, Rarity: models.RarityUncommon, Reward: map[string]int64{CurrencyTemporalEssence: 300}},
	{ID: "dedicated_player", Name: "Dedicated Player", Description: "Play for one hour", Category: models.CategoryGameplay, Rarity: models.RarityUncommon, Reward: map[string]int64{CurrencyTemporalEssence: 150}},
	{ID: "time_master", Name: "Time Master", Description: "Play for ten hours", Category: models.CategoryGameplay, Rarity: models.RarityEpic, Reward: map[string]int64{CurrencyArcaneMana: 50}},
	{ID: "elegant_checkmate", Name: "Elegant Checkmate", Description: "Deliver an elegant checkmate", Category: models.CategorySpecial, Rarity: models.RarityUncommon, Reward: map[string]int64{CurrencyMnemonicDust: 75}},
	{ID: "elegant_master", Name: "Master of Elegance", Description: "Deliver 50 elegant checkmates", Category: models.CategorySpecial, Rarity: models.RarityEpic, Reward: map[string]int64{CurrencyMnemonicDust: 1000}},
	{ID: "resource_collector", Name: "Resource Collector", Description: "Hold 1,000 temporal essence", Category: models.CategoryGameplay, Rarity: models.RarityCommon, Reward: map[string]int64{CurrencyMnemonicDust: 50}},
	{ID: "wealth_accumulator", Name: "Wealth Accumulator", Description: "Hold 10,000 temporal essence", Category: models.CategoryGameplay, Rarity: models.RarityRare, Reward: map[string]int64{CurrencyAetherShards: 10}},
	{ID: "premium_collector", Name: "Premium Collector", Description: "Earn 100 aether shards", Category: models.CategorySpecial, Rarity: models.RarityEpic, Reward: map[string]int64{CurrencyArcaneMana: 25}},
	{ID: "first_evolution", Name: "First Evolution", Description: "Evolve a piece for the first time", Category: models.CategoryEvolution, Rarity: models.RarityCommon, Reward: map[string]int64{CurrencyTemporalEssence: 100}},
	{ID: "piece_master", Name: "Piece Master", Description: "Fully evolve a piece", Category: models.CategoryEvolution, Rarity: models.RarityRare, Reward: map[string]int64{CurrencyAetherShards: 8}},
	{ID: "first_combination", Name: "Combination Pioneer", Description: "Discover your first evolution combination", Category: models.CategoryEvolution, Rarity: models.RarityCommon, Reward: map[string]int64{CurrencyTemporalEssence: 100}},
	{ID: "powerful_combination", Name: "Powerful Combination", Description: "Discover a combination with over 1,000 power", Category: models.CategoryEvolution, Rarity: models.RarityRare, Reward: map[string]int64{CurrencyAetherShards: 12}},
	{ID: "synergy_master", Name: "Synergy Master", Description: "Discover a combination with a synergy bonus", Category: models.CategoryEvolution, Rarity: models.RarityEpic, Reward: map[string]int64{CurrencyArcaneMana: 30}},
	{ID: "combination_collector", Name: "Combination Collector", Description: "Discover 100 evolution combinations", Category: models.CategoryEvolution, Rarity: models.RarityLegendary, Reward: map[string]int64{CurrencyArcaneMana: 200, CurrencyAetherShards: 50}},
}

var definitionsByID = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		m[def.ID] = def
	}
	return m
}()

// idMatcher suggests the closest known id in unknown-id warnings, which
// catches typos in event producers early.
var idMatcher = func() *closestmatch.ClosestMatch {
	ids := make([]string, 0, len(definitions))
	for _, def := range definitions {
		ids = append(ids, def.ID)
	}
	return closestmatch.New(ids, []int{2, 3})
}()

// Definitions returns the full achievement definition table.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func lookupDefinition(id string) (Definition, bool) {
	def, ok := definitionsByID[id]
	return def, ok
}

// placeholderDefinition covers ids that arrive from another tier (cloud,
// old snapshots) without a local definition, e.g. achievements removed
// from the current build. The claim state still has to survive the merge.
func placeholderDefinition(id string) Definition {
	return Definition{
		ID:          id,
		Name:        id,
		Description: "Legacy achievement",
		Category:    models.CategorySpecial,
		Rarity:      models.RarityCommon,
	}
}

func suggestID(id string) string {
	return idMatcher.Closest(id)
}
