package fallback

import (
	"encoding/json"
	"strings"

	"github.com/chronochess/progress/internal/models"
)

const defaultPrefix = "chronochess_"

const (
	pendingPrefix = "pending_"
	recordPrefix  = "record_"
	claimedKey    = "claimed"
	snapshotKey   = "snapshot"
)

// Ledger is the typed view over the fallback KV. It keeps three kinds of
// shadow state per the persistence protocol: tentative (pending-unsaved)
// achievement records, committed full records for claimed achievements,
// and a compact snapshot of every achievement. The claimed-flag map is a
// belt-and-suspenders ledger read before anything else during init.
type Ledger struct {
	kv     KV
	prefix string
}

func NewLedger(kv KV) *Ledger {
	return &Ledger{kv: kv, prefix: defaultPrefix}
}

// WriteTentative records an achievement that has not yet been confirmed by
// the durable tier.
func (l *Ledger) WriteTentative(a models.Achievement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return l.kv.SetItem(l.prefix+pendingPrefix+a.ID, string(data))
}

// ClearTentative removes the pending entry once the durable tier has
// confirmed the write.
func (l *Ledger) ClearTentative(id string) {
	l.kv.RemoveItem(l.prefix + pendingPrefix + id)
}

// TentativeEntries returns every pending record left by a previous session.
func (l *Ledger) TentativeEntries() []models.Achievement {
	return l.entriesWithPrefix(l.prefix + pendingPrefix)
}

// Commit writes the full fallback record for an achievement. Used for
// claims, where the synchronous write must land before the durable one is
// even attempted.
func (l *Ledger) Commit(a models.Achievement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return l.kv.SetItem(l.prefix+recordPrefix+a.ID, string(data))
}

func (l *Ledger) ClearCommitted(id string) {
	l.kv.RemoveItem(l.prefix + recordPrefix + id)
}

// CommittedEntries returns the full fallback records.
func (l *Ledger) CommittedEntries() []models.Achievement {
	return l.entriesWithPrefix(l.prefix + recordPrefix)
}

// Read returns the freshest fallback copy of a single achievement,
// preferring the committed record over a tentative one.
func (l *Ledger) Read(id string) (models.Achievement, bool) {
	for _, key := range []string{l.prefix + recordPrefix + id, l.prefix + pendingPrefix + id} {
		raw, ok := l.kv.GetItem(key)
		if !ok {
			continue
		}
		var a models.Achievement
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			return a, true
		}
	}
	return models.Achievement{}, false
}

// MarkClaimed sets the compact claimed flag for an id. Flags are never
// cleared here: the map only grows, matching the monotonic claim contract.
func (l *Ledger) MarkClaimed(id string) error {
	flags := l.ClaimedIDs()
	flags[id] = true
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return l.kv.SetItem(l.prefix+claimedKey, string(data))
}

func (l *Ledger) ClaimedIDs() map[string]bool {
	flags := make(map[string]bool)
	raw, ok := l.kv.GetItem(l.prefix + claimedKey)
	if !ok {
		return flags
	}
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return make(map[string]bool)
	}
	return flags
}

// WriteSnapshot replaces the compact state snapshot covering every known
// achievement.
func (l *Ledger) WriteSnapshot(entries []models.AchievementSnapshot) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.kv.SetItem(l.prefix+snapshotKey, string(data))
}

func (l *Ledger) Snapshot() []models.AchievementSnapshot {
	raw, ok := l.kv.GetItem(l.prefix + snapshotKey)
	if !ok {
		return nil
	}
	var entries []models.AchievementSnapshot
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

func (l *Ledger) entriesWithPrefix(prefix string) []models.Achievement {
	var out []models.Achievement
	for _, key := range l.kv.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		raw, ok := l.kv.GetItem(key)
		if !ok {
			continue
		}
		var a models.Achievement
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}
