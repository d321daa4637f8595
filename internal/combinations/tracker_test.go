package combinations

import (
	"sort"
	"testing"
	"time"

	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/storage/durable"
)

type memStore struct {
	tables map[string]map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]map[string][]byte)}
}

func (m *memStore) Save(table, key string, value []byte) error {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string][]byte)
	}
	m.tables[table][key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Load(table, key string) ([]byte, error) {
	return m.tables[table][key], nil
}

func (m *memStore) List(table string, opts durable.ListOptions) ([]string, error) {
	var keys []string
	for k := range m.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func newTestTracker() (*Tracker, *memStore) {
	store := newMemStore()
	return NewTracker(store, logger.New()), store
}

func sampleLayout() map[string]models.PieceEvolution {
	return map[string]models.PieceEvolution{
		"pawn": {
			PieceType:         "pawn",
			EvolutionLevel:    2,
			Attributes:        map[string]float64{"speed": 1.5, "resilience": 3},
			UnlockedAbilities: []string{"forward_march"},
		},
		"knight": {
			PieceType:         "knight",
			EvolutionLevel:    4,
			Attributes:        map[string]float64{"reach": 2},
			UnlockedAbilities: []string{"triple_jump", "dash"},
		},
	}
}

func TestTrackHashDeterministicAcrossKeyOrder(t *testing.T) {
	tr, _ := newTestTracker()

	first, isNew, err := tr.Track(sampleLayout())
	if err != nil || !isNew {
		t.Fatalf("first track: id=%q new=%v err=%v", first, isNew, err)
	}

	// Structurally identical layout built in a different insertion order.
	reordered := map[string]models.PieceEvolution{}
	layout := sampleLayout()
	reordered["knight"] = layout["knight"]
	reordered["pawn"] = layout["pawn"]

	second, isNew, err := tr.Track(reordered)
	if err != nil {
		t.Fatalf("second track: %v", err)
	}
	if isNew {
		t.Fatal("identical layout reported as a new discovery")
	}
	if first != second {
		t.Fatalf("ids differ for identical layouts: %q vs %q", first, second)
	}
	if tr.Count() != 1 {
		t.Fatalf("expected a single stored combination, got %d", tr.Count())
	}
}

func TestTrackDistinguishesDifferentLayouts(t *testing.T) {
	tr, _ := newTestTracker()

	if _, _, err := tr.Track(sampleLayout()); err != nil {
		t.Fatal(err)
	}

	changed := sampleLayout()
	pe := changed["knight"]
	pe.EvolutionLevel = 5
	changed["knight"] = pe

	_, isNew, err := tr.Track(changed)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("different layout not treated as a new discovery")
	}
	if tr.Count() != 2 {
		t.Fatalf("expected 2 combinations, got %d", tr.Count())
	}
}

func TestPersistedCombinationSurvivesReload(t *testing.T) {
	tr, store := newTestTracker()

	id, _, err := tr.Track(sampleLayout())
	if err != nil {
		t.Fatal(err)
	}

	reloaded := NewTracker(store, logger.New())
	if err := reloaded.LoadAll(); err != nil {
		t.Fatalf("load all: %v", err)
	}

	all := reloaded.All()
	if len(all) != 1 || all[0].ID != id {
		t.Fatalf("reload mismatch: %+v", all)
	}
	if all[0].PieceEvolutions["knight"].EvolutionLevel != 4 {
		t.Fatalf("pair list did not reconstruct the map: %+v", all[0].PieceEvolutions)
	}
}

func TestAllNewestFirst(t *testing.T) {
	tr, _ := newTestTracker()

	base := time.Now()
	tick := 0
	tr.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	if _, _, err := tr.Track(sampleLayout()); err != nil {
		t.Fatal(err)
	}
	changed := sampleLayout()
	pe := changed["pawn"]
	pe.EvolutionLevel = 9
	changed["pawn"] = pe
	newest, _, err := tr.Track(changed)
	if err != nil {
		t.Fatal(err)
	}

	all := tr.All()
	if len(all) != 2 || all[0].ID != newest {
		t.Fatalf("expected newest first, got %+v", all)
	}
}

func TestSynergiesAndStats(t *testing.T) {
	tr, _ := newTestTracker()

	royal := map[string]models.PieceEvolution{
		"queen": {PieceType: "queen", EvolutionLevel: 6, Attributes: map[string]float64{"dominion": 500}},
		"king":  {PieceType: "king", EvolutionLevel: 3, Attributes: map[string]float64{"aura": 400}},
	}
	if _, _, err := tr.Track(royal); err != nil {
		t.Fatal(err)
	}

	combo := tr.All()[0]
	if len(combo.SynergyBonuses) == 0 || combo.SynergyBonuses[0].ID != "royal_decree" {
		t.Fatalf("expected royal_decree synergy, got %+v", combo.SynergyBonuses)
	}
	// 6*10 + 3*10 + 500 + 400 + 350 synergy
	if combo.TotalPower <= 1000 {
		t.Fatalf("expected a rare-power combination, got %f", combo.TotalPower)
	}

	stats := tr.Stats()
	if stats.TotalDiscovered != 1 || stats.RareDiscoveries != 1 || stats.WithSynergies != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.DiscoveryRate <= 0 {
		t.Fatalf("discovery rate should be positive, got %g", stats.DiscoveryRate)
	}
}

func TestTrackRejectsEmptyLayout(t *testing.T) {
	tr, _ := newTestTracker()
	if _, _, err := tr.Track(nil); err == nil {
		t.Fatal("expected error for empty layout")
	}
}
