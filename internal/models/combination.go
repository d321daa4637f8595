package models

// PieceEvolution is the evolution state of a single piece type inside a
// combination.
type PieceEvolution struct {
	PieceType         string             `json:"pieceType"`
	EvolutionLevel    int                `json:"evolutionLevel"`
	Attributes        map[string]float64 `json:"attributes,omitempty"`
	UnlockedAbilities []string           `json:"unlockedAbilities,omitempty"`
}

type SynergyBonus struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	PowerBonus  float64 `json:"powerBonus"`
}

// EvolutionCombination is a discovered, unique assignment of evolution
// state to piece types. CombinationHash is a pure function of the piece
// evolutions and is the semantic equality key; ID additionally carries the
// discovery timestamp so two independently discovered identical layouts
// still get distinct ids.
type EvolutionCombination struct {
	ID              string                    `json:"id"`
	CombinationHash string                    `json:"combinationHash"`
	PieceEvolutions map[string]PieceEvolution `json:"pieceEvolutions"`
	SynergyBonuses  []SynergyBonus            `json:"synergyBonuses,omitempty"`
	TotalPower      float64                   `json:"totalPower"`
	DiscoveredAt    int64                     `json:"discoveredAt"` // epoch ms
}

// StoredCombination is the persisted shape: the piece-evolution map is
// flattened into an ordered pair list before it hits storage.
type StoredCombination struct {
	ID              string            `json:"id"`
	CombinationHash string            `json:"combinationHash"`
	Pairs           []CombinationPair `json:"pieceEvolutions"`
	SynergyBonuses  []SynergyBonus    `json:"synergyBonuses,omitempty"`
	TotalPower      float64           `json:"totalPower"`
	DiscoveredAt    int64             `json:"discoveredAt"`
	Compressed      bool              `json:"compressed"`
}

type CombinationPair struct {
	Key   string         `json:"key"`
	Value PieceEvolution `json:"value"`
}
