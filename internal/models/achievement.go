package models

type AchievementCategory string

const (
	CategoryGameplay  AchievementCategory = "gameplay"
	CategoryEvolution AchievementCategory = "evolution"
	CategorySpecial   AchievementCategory = "special"
)

type AchievementRarity string

const (
	RarityCommon    AchievementRarity = "common"
	RarityUncommon  AchievementRarity = "uncommon"
	RarityRare      AchievementRarity = "rare"
	RarityEpic      AchievementRarity = "epic"
	RarityLegendary AchievementRarity = "legendary"
)

// Achievement is one unlocked reward condition. UnlockedTimestamp is set
// exactly once, and Claimed only ever moves false -> true.
type Achievement struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	Category          AchievementCategory `json:"category"`
	Rarity            AchievementRarity   `json:"rarity"`
	Reward            map[string]int64    `json:"reward,omitempty"` // currency -> amount
	UnlockedTimestamp int64               `json:"unlockedTimestamp"` // epoch ms
	Claimed           bool                `json:"claimed"`
}

// Merge folds another copy of the same achievement into a, resolving
// duplicates from different storage tiers: claimed is OR'd (never
// cleared), unlockedTimestamp takes the max.
func (a *Achievement) Merge(other Achievement) {
	if other.Claimed {
		a.Claimed = true
	}
	if other.UnlockedTimestamp > a.UnlockedTimestamp {
		a.UnlockedTimestamp = other.UnlockedTimestamp
	}
}

// AchievementSnapshot is the compact per-achievement state written to the
// synchronous fallback tier: just enough to survive a reload mid-write.
type AchievementSnapshot struct {
	ID                string `json:"id"`
	UnlockedTimestamp int64  `json:"unlockedTimestamp"`
	Claimed           bool   `json:"claimed"`
}
