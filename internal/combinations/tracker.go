// Package combinations tracks discovered piece-evolution combinations.
// A combination's identity is a deterministic content hash, so the same
// layout discovered twice resolves to the existing entry instead of a
// duplicate.
package combinations

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/chronochess/progress/internal/hash"
	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/storage/durable"
)

// TotalPossibleCombinations is the fixed denominator used for discovery
// rate. The real space is unbounded in practice; 10^12 keeps the rate a
// meaningful fraction for the UI.
const TotalPossibleCombinations = 1e12

// Store is the slice of the durable adapter this tracker needs.
type Store interface {
	Save(table, key string, value []byte) error
	Load(table, key string) ([]byte, error)
	List(table string, opts durable.ListOptions) ([]string, error)
}

type Stats struct {
	TotalDiscovered int     `json:"totalDiscovered"`
	DiscoveryRate   float64 `json:"discoveryRate"`
	AveragePower    float64 `json:"averagePower"`
	RareDiscoveries int     `json:"rareDiscoveries"` // totalPower > 1000
	WithSynergies   int     `json:"withSynergies"`
}

type Tracker struct {
	mu    sync.Mutex
	store Store
	log   *logger.Log

	byHash map[string]*models.EvolutionCombination

	enc *zstd.Encoder
	dec *zstd.Decoder

	now func() time.Time
}

func NewTracker(store Store, log *logger.Log) *Tracker {
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	dec, _ := zstd.NewReader(nil)
	return &Tracker{
		store:  store,
		log:    log,
		byHash: make(map[string]*models.EvolutionCombination),
		enc:    enc,
		dec:    dec,
		now:    time.Now,
	}
}

// LoadAll hydrates the in-memory set from the durable store. Corrupt or
// unreadable entries are skipped, never fatal.
func (t *Tracker) LoadAll() error {
	keys, err := t.store.List(durable.TableCombinations, durable.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list combinations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		raw, err := t.store.Load(durable.TableCombinations, key)
		if err != nil || raw == nil {
			continue
		}
		combo, err := t.decode(raw)
		if err != nil {
			t.log.WithError(err).Warn("skipping unreadable combination " + key)
			continue
		}
		t.byHash[combo.CombinationHash] = combo
	}
	return nil
}

// Track registers a piece-evolution layout. It returns the combination id
// and whether the layout was newly discovered; structurally identical
// layouts (regardless of map insertion order) resolve to the existing
// entry without another write.
func (t *Tracker) Track(pieceEvolutions map[string]models.PieceEvolution) (string, bool, error) {
	if len(pieceEvolutions) == 0 {
		return "", false, fmt.Errorf("empty combination")
	}

	h := HashCombination(pieceEvolutions)

	t.mu.Lock()
	if existing, ok := t.byHash[h]; ok {
		id := existing.ID
		t.mu.Unlock()
		return id, false, nil
	}

	discoveredAt := t.now().UnixMilli()
	combo := &models.EvolutionCombination{
		// The timestamp suffix keeps ids unique even if an identical layout
		// is discovered again after the hash entry is ever purged.
		ID:              fmt.Sprintf("%s_%d", h, discoveredAt),
		CombinationHash: h,
		PieceEvolutions: clonePieces(pieceEvolutions),
		SynergyBonuses:  detectSynergies(pieceEvolutions),
		DiscoveredAt:    discoveredAt,
	}
	combo.TotalPower = totalPower(combo)
	t.byHash[h] = combo
	t.mu.Unlock()

	if err := t.persist(combo); err != nil {
		// Discovery stands even when the durable write fails; it will be
		// re-persisted next session from memory if the caller exports, or
		// rediscovered from gameplay.
		t.log.WithError(err).Warn("failed to persist combination " + combo.ID)
	}
	return combo.ID, true, nil
}

// Get returns the combination for a content hash.
func (t *Tracker) Get(combinationHash string) (models.EvolutionCombination, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	combo, ok := t.byHash[combinationHash]
	if !ok {
		return models.EvolutionCombination{}, false
	}
	return *combo, true
}

// All returns every discovered combination, newest first.
func (t *Tracker) All() []models.EvolutionCombination {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.EvolutionCombination, 0, len(t.byHash))
	for _, combo := range t.byHash {
		out = append(out, *combo)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscoveredAt != out[j].DiscoveredAt {
			return out[i].DiscoveredAt > out[j].DiscoveredAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Hashes returns the content hashes of every discovered combination.
func (t *Tracker) Hashes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byHash))
	for h := range t.byHash {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHash)
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{TotalDiscovered: len(t.byHash)}
	if stats.TotalDiscovered == 0 {
		return stats
	}

	var powerSum float64
	for _, combo := range t.byHash {
		powerSum += combo.TotalPower
		if combo.TotalPower > 1000 {
			stats.RareDiscoveries++
		}
		if len(combo.SynergyBonuses) > 0 {
			stats.WithSynergies++
		}
	}
	stats.AveragePower = powerSum / float64(stats.TotalDiscovered)
	stats.DiscoveryRate = float64(stats.TotalDiscovered) / TotalPossibleCombinations
	return stats
}

// HashCombination derives the deterministic content hash: entries sorted
// by piece type, each flattened with sorted attribute pairs and sorted
// ability ids, the whole list JSON-encoded and run through the rolling
// hash.
func HashCombination(pieceEvolutions map[string]models.PieceEvolution) string {
	types := make([]string, 0, len(pieceEvolutions))
	for pieceType := range pieceEvolutions {
		types = append(types, pieceType)
	}
	sort.Strings(types)

	type entry struct {
		Type      string `json:"type"`
		Level     int    `json:"level"`
		Attrs     string `json:"attrs"`
		Abilities string `json:"abilities"`
	}

	entries := make([]entry, 0, len(types))
	for _, pieceType := range types {
		pe := pieceEvolutions[pieceType]

		attrKeys := make([]string, 0, len(pe.Attributes))
		for k := range pe.Attributes {
			attrKeys = append(attrKeys, k)
		}
		sort.Strings(attrKeys)
		attrs := make([]string, 0, len(attrKeys))
		for _, k := range attrKeys {
			attrs = append(attrs, fmt.Sprintf("%s:%g", k, pe.Attributes[k]))
		}

		abilities := append([]string(nil), pe.UnlockedAbilities...)
		sort.Strings(abilities)

		entries = append(entries, entry{
			Type:      pieceType,
			Level:     pe.EvolutionLevel,
			Attrs:     strings.Join(attrs, ","),
			Abilities: strings.Join(abilities, ","),
		})
	}

	data, _ := json.Marshal(entries)
	return fmt.Sprintf("%d", hash.Rolling32(string(data)))
}

func (t *Tracker) persist(combo *models.EvolutionCombination) error {
	stored := models.StoredCombination{
		ID:              combo.ID,
		CombinationHash: combo.CombinationHash,
		SynergyBonuses:  combo.SynergyBonuses,
		TotalPower:      combo.TotalPower,
		DiscoveredAt:    combo.DiscoveredAt,
		Compressed:      true,
	}

	// Maps are flattened to an ordered pair list before storage.
	types := make([]string, 0, len(combo.PieceEvolutions))
	for pieceType := range combo.PieceEvolutions {
		types = append(types, pieceType)
	}
	sort.Strings(types)
	for _, pieceType := range types {
		stored.Pairs = append(stored.Pairs, models.CombinationPair{Key: pieceType, Value: combo.PieceEvolutions[pieceType]})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return t.store.Save(durable.TableCombinations, combo.CombinationHash, t.enc.EncodeAll(data, nil))
}

func (t *Tracker) decode(raw []byte) (*models.EvolutionCombination, error) {
	data, err := t.dec.DecodeAll(raw, nil)
	if err != nil {
		// Older entries were written uncompressed.
		data = raw
	}

	var stored models.StoredCombination
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	combo := &models.EvolutionCombination{
		ID:              stored.ID,
		CombinationHash: stored.CombinationHash,
		PieceEvolutions: make(map[string]models.PieceEvolution, len(stored.Pairs)),
		SynergyBonuses:  stored.SynergyBonuses,
		TotalPower:      stored.TotalPower,
		DiscoveredAt:    stored.DiscoveredAt,
	}
	for _, pair := range stored.Pairs {
		combo.PieceEvolutions[pair.Key] = pair.Value
	}
	return combo, nil
}

func totalPower(combo *models.EvolutionCombination) float64 {
	var power float64
	for _, pe := range combo.PieceEvolutions {
		power += float64(pe.EvolutionLevel) * 10
		for _, v := range pe.Attributes {
			power += v
		}
		power += float64(len(pe.UnlockedAbilities)) * 5
	}
	for _, bonus := range combo.SynergyBonuses {
		power += bonus.PowerBonus
	}
	return power
}

func detectSynergies(pieceEvolutions map[string]models.PieceEvolution) []models.SynergyBonus {
	level := func(pieceType string) int {
		return pieceEvolutions[pieceType].EvolutionLevel
	}

	var bonuses []models.SynergyBonus
	if level("knight") >= 3 && level("bishop") >= 3 {
		bonuses = append(bonuses, models.SynergyBonus{
			ID:          "cavalry_clergy",
			Name:        "Cavalry and Clergy",
			Description: "Knights and bishops cover each other's blind squares",
			PowerBonus:  150,
		})
	}
	if level("rook") >= 4 && level("pawn") >= 4 {
		bonuses = append(bonuses, models.SynergyBonus{
			ID:          "fortress_wall",
			Name:        "Fortress Wall",
			Description: "Evolved pawns anchor the rook files",
			PowerBonus:  200,
		})
	}
	if level("queen") >= 5 && level("king") >= 3 {
		bonuses = append(bonuses, models.SynergyBonus{
			ID:          "royal_decree",
			Name:        "Royal Decree",
			Description: "The royal pair amplifies every other evolution",
			PowerBonus:  350,
		})
	}
	return bonuses
}

func clonePieces(in map[string]models.PieceEvolution) map[string]models.PieceEvolution {
	out := make(map[string]models.PieceEvolution, len(in))
	for k, v := range in {
		pe := v
		pe.Attributes = make(map[string]float64, len(v.Attributes))
		for ak, av := range v.Attributes {
			pe.Attributes[ak] = av
		}
		pe.UnlockedAbilities = append([]string(nil), v.UnlockedAbilities...)
		out[k] = pe
	}
	return out
}
