// Package progress is the achievement/statistics reconciler: an in-memory
// cache of achievement records and player statistics kept consistent
// across the durable store, the synchronous fallback tier, and the
// optional remote mirror. Persistence problems never block gameplay; the
// worst case is degrading to best-effort local-only persistence.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chronochess/progress/internal/combinations"
	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/storage/durable"
	"github.com/chronochess/progress/internal/storage/fallback"
	"github.com/chronochess/progress/internal/storage/remote"
)

const statisticsKey = "player"

// DurableStore is the transactional tier contract (IndexedDB-shaped).
type DurableStore interface {
	Initialize() error
	Save(table, key string, value []byte) error
	Load(table, key string) ([]byte, error)
	List(table string, opts durable.ListOptions) ([]string, error)
	Count(table string) (int, error)
	Delete(table, key string) error
}

// Mirror is the optional cloud tier. An empty user id from EnsureUser
// means a guest session, for which every remote operation is skipped.
type Mirror interface {
	EnsureUser(ctx context.Context) (string, error)
	Fetch(ctx context.Context, userID, slot string) (*remote.Save, error)
	Upsert(ctx context.Context, userID, slot string, save remote.Save) error
}

// GameWinStats is the snapshot an event producer hands over on a win.
type GameWinStats struct {
	TotalWins   int64 `json:"totalWins"`
	WinStreak   int64 `json:"winStreak"`
	MovesPlayed int64 `json:"movesPlayed"`
}

type Tracker struct {
	store  DurableStore
	ledger *fallback.Ledger
	mirror Mirror
	combos *combinations.Tracker
	log    *logger.Log

	mu              sync.Mutex
	achievements    []*models.Achievement
	byID            map[string]*models.Achievement
	stats           models.PlayerStatistics
	unlockedContent []string
	claimsInFlight  map[string]struct{}

	initMu   sync.Mutex
	initDone bool
	initCh   chan struct{}

	unlockListeners *listenerSet
	claimListeners  *listenerSet

	retryAttempts int
	retryDelay    func(attempt int)
	now           func() time.Time
}

// NewTracker wires the reconciler. mirror may be nil for builds without a
// cloud tier.
func NewTracker(store DurableStore, ledger *fallback.Ledger, mirror Mirror, combos *combinations.Tracker, log *logger.Log) *Tracker {
	t := &Tracker{
		store:           store,
		ledger:          ledger,
		mirror:          mirror,
		combos:          combos,
		log:             log,
		byID:            make(map[string]*models.Achievement),
		claimsInFlight:  make(map[string]struct{}),
		unlockListeners: newListenerSet(),
		claimListeners:  newListenerSet(),
		retryAttempts:   3,
		now:             time.Now,
	}
	t.retryDelay = func(attempt int) {
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return t
}

// BackoffDelay builds a linear backoff: attempt n waits n*baseMs.
func BackoffDelay(baseMs int) func(attempt int) {
	if baseMs <= 0 {
		baseMs = 100
	}
	return func(attempt int) {
		time.Sleep(time.Duration(attempt*baseMs) * time.Millisecond)
	}
}

// SetRetry overrides the durable-write retry policy. Tests inject a no-op
// delay so retries run without real waits.
func (t *Tracker) SetRetry(attempts int, delay func(attempt int)) {
	if attempts > 0 {
		t.retryAttempts = attempts
	}
	if delay != nil {
		t.retryDelay = delay
	}
}

// OnUnlock subscribes to unlock events; the returned function unsubscribes.
func (t *Tracker) OnUnlock(fn Listener) func() {
	return t.unlockListeners.add(fn)
}

// OnClaim subscribes to claim events.
func (t *Tracker) OnClaim(fn Listener) func() {
	return t.claimListeners.add(fn)
}

// EnsureInitialized runs the initialization protocol exactly once; every
// concurrent caller waits on the same in-flight attempt. Initialization
// never fails: every persistence problem along the way is logged and the
// tracker continues in a degraded mode.
func (t *Tracker) EnsureInitialized(ctx context.Context) {
	t.initMu.Lock()
	if t.initDone {
		t.initMu.Unlock()
		return
	}
	if t.initCh != nil {
		ch := t.initCh
		t.initMu.Unlock()
		<-ch
		return
	}
	ch := make(chan struct{})
	t.initCh = ch
	t.initMu.Unlock()

	t.initialize(ctx)

	t.initMu.Lock()
	// The in-flight guard is cleared here so an explicit ResetInitialized
	// (tests, dev tooling) can run the protocol again.
	t.initCh = nil
	t.initMu.Unlock()
	close(ch)
}

// ResetInitialized re-arms initialization. Test/dev re-run semantics only.
func (t *Tracker) ResetInitialized() {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	t.initDone = false
}

func (t *Tracker) initialize(ctx context.Context) {
	// 1. Open the durable store.
	if err := t.store.Initialize(); err != nil {
		t.log.WithError(err).Warn("durable store unavailable, continuing on fallback tier")
	}

	// 2. The claim ledger comes first so nothing later can re-unlock an
	// already claimed achievement as fresh.
	claimLedger := t.ledger.ClaimedIDs()

	// 3. Cached achievements and statistics from the durable tier.
	t.loadCachedAchievements()
	t.loadStatistics()
	t.loadUnlockedContent()

	// 4. Merge fallback-tier state: pending unlocks, full claimed records,
	// the claimed-flag map, then the compact snapshot.
	t.mu.Lock()
	for _, pending := range t.ledger.TentativeEntries() {
		t.mergeLocked(pending)
	}
	for _, record := range t.ledger.CommittedEntries() {
		t.mergeLocked(record)
	}
	for id, claimed := range claimLedger {
		if !claimed {
			continue
		}
		if a, ok := t.byID[id]; ok {
			a.Claimed = true
			continue
		}
		t.mergeLocked(t.synthesize(id, 0, true))
	}
	for _, snap := range t.ledger.Snapshot() {
		if a, ok := t.byID[snap.ID]; ok {
			a.Merge(models.Achievement{UnlockedTimestamp: snap.UnlockedTimestamp, Claimed: snap.Claimed})
			continue
		}
		t.mergeLocked(t.synthesize(snap.ID, snap.UnlockedTimestamp, snap.Claimed))
	}
	t.mu.Unlock()

	// 5. Cloud merge happens before reconciliation so rewards already
	// claimed on another device are never re-granted here.
	remoteUser := t.mergeRemote(ctx)

	// 6. Mark initialized before reconciliation: eligibility checks call
	// back into unlock paths that must not re-enter the init guard.
	t.initMu.Lock()
	t.initDone = true
	t.initMu.Unlock()

	// 7. Grant whatever the player already qualifies for.
	t.ReconcileWithStats(nil)

	// 8. Flush fallback-tier writes into the durable tier.
	t.flushFallback(claimLedger)

	// 9. Defensive re-assertion of the claim ledger on the merged cache.
	t.mu.Lock()
	for id, claimed := range claimLedger {
		if claimed {
			if a, ok := t.byID[id]; ok {
				a.Claimed = true
			}
		}
	}
	t.mu.Unlock()

	// 10. Make sure the mirror is at least as complete as the local cache.
	t.backfillRemote(ctx, remoteUser)
}

func (t *Tracker) loadCachedAchievements() {
	keys, err := t.store.List(durable.TableAchievements, durable.ListOptions{})
	if err != nil {
		t.log.WithError(err).Warn("failed to list cached achievements")
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		raw, err := t.store.Load(durable.TableAchievements, key)
		if err != nil || raw == nil {
			continue
		}
		var a models.Achievement
		if err := json.Unmarshal(raw, &a); err != nil {
			t.log.WithError(err).Warn("skipping corrupt achievement record " + key)
			continue
		}
		t.mergeLocked(a)
	}
}

func (t *Tracker) loadStatistics() {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := t.store.Load(durable.TableStatistics, statisticsKey)
	if err != nil {
		t.log.WithError(err).Warn("failed to load statistics")
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &t.stats); err != nil {
			t.log.WithError(err).Warn("corrupt statistics record, starting fresh")
			t.stats = models.PlayerStatistics{}
		}
	}
	if t.stats.CreatedTimestamp == 0 {
		t.stats.CreatedTimestamp = t.now().UnixMilli()
	}
}

func (t *Tracker) loadUnlockedContent() {
	raw, err := t.store.Load(durable.TableContent, statisticsKey)
	if err != nil || raw == nil {
		return
	}
	var content []string
	if err := json.Unmarshal(raw, &content); err != nil {
		return
	}
	t.mu.Lock()
	t.unlockedContent = content
	t.mu.Unlock()
}

// GetUnlockedContent returns a copy of the unlocked content ids.
func (t *Tracker) GetUnlockedContent(ctx context.Context) []string {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.unlockedContent...)
}

// mergeLocked folds one achievement copy into the cache under the
// duplicate-resolution rules: claimed is OR'd, unlockedTimestamp takes the
// max. Callers hold t.mu.
func (t *Tracker) mergeLocked(a models.Achievement) {
	if existing, ok := t.byID[a.ID]; ok {
		existing.Merge(a)
		return
	}
	copied := a
	t.byID[a.ID] = &copied
	t.achievements = append(t.achievements, &copied)
}

// synthesize builds a minimal record for an id that only exists as a flag
// or snapshot entry, preferring the known definition over a placeholder.
func (t *Tracker) synthesize(id string, unlockedAt int64, claimed bool) models.Achievement {
	def, ok := lookupDefinition(id)
	if !ok {
		def = placeholderDefinition(id)
	}
	if unlockedAt == 0 {
		unlockedAt = t.now().UnixMilli()
	}
	return models.Achievement{
		ID:                def.ID,
		Name:              def.Name,
		Description:       def.Description,
		Category:          def.Category,
		Rarity:            def.Rarity,
		Reward:            def.Reward,
		UnlockedTimestamp: unlockedAt,
		Claimed:           claimed,
	}
}

// mergeRemote pulls the cloud save and upgrades local state from it.
// Remote claimed=true is authoritative; true is never downgraded.
func (t *Tracker) mergeRemote(ctx context.Context) string {
	if t.mirror == nil {
		return ""
	}
	userID, err := t.mirror.EnsureUser(ctx)
	if err != nil {
		t.log.WithError(err).Warn("cloud auth check failed, skipping remote merge")
		return ""
	}
	if userID == "" {
		return ""
	}

	save, err := t.mirror.Fetch(ctx, userID, remote.DefaultSlot)
	if err != nil {
		t.log.WithError(err).Warn("cloud save fetch failed, skipping remote merge")
		return userID
	}
	if save == nil {
		return userID
	}

	t.mu.Lock()
	for _, a := range save.Achievements {
		t.mergeLocked(a)
	}
	t.mu.Unlock()
	return userID
}

// flushFallback moves fallback-tier state into the durable tier: pending
// unlock records, committed claim records left by a claim whose durable
// write failed, and claimed-flag ids whose durable copy is stale. Each
// entry is cleared only after the durable write succeeds; failures leave
// it for the next session.
func (t *Tracker) flushFallback(claimLedger map[string]bool) {
	for _, pending := range t.ledger.TentativeEntries() {
		if err := t.persistMergedCopy(pending); err != nil {
			t.log.WithError(err).Warn("leaving pending achievement " + pending.ID + " for next session")
			continue
		}
		t.ledger.ClearTentative(pending.ID)
	}

	for _, record := range t.ledger.CommittedEntries() {
		if err := t.persistMergedCopy(record); err != nil {
			t.log.WithError(err).Warn("leaving claim fallback record " + record.ID + " for next session")
			continue
		}
		t.ledger.ClearCommitted(record.ID)
		t.ledger.ClearTentative(record.ID)
	}

	// A claim flag can outlive its fallback record (the record write failed
	// while the flag write landed); repair the durable copy from the merged
	// cache when it still says unclaimed.
	for id, claimed := range claimLedger {
		if !claimed {
			continue
		}
		raw, err := t.store.Load(durable.TableAchievements, id)
		if err == nil && raw != nil {
			var stored models.Achievement
			if json.Unmarshal(raw, &stored) == nil && stored.Claimed {
				continue
			}
		}
		t.mu.Lock()
		a, ok := t.byID[id]
		var snapshot models.Achievement
		if ok {
			snapshot = *a
		}
		t.mu.Unlock()
		if !ok {
			continue
		}
		if err := t.persistAchievement(snapshot); err != nil {
			t.log.WithError(err).Warn("failed to repair durable claim record for " + id)
		}
	}
}

// persistMergedCopy writes the in-memory record for a fallback entry's id,
// falling back to the entry itself when the cache has no copy.
func (t *Tracker) persistMergedCopy(entry models.Achievement) error {
	t.mu.Lock()
	snapshot := entry
	if a, ok := t.byID[entry.ID]; ok {
		snapshot = *a
	}
	t.mu.Unlock()
	return t.persistAchievement(snapshot)
}

func (t *Tracker) backfillRemote(ctx context.Context, userID string) {
	if t.mirror == nil || userID == "" {
		return
	}
	save, err := t.mirror.Fetch(ctx, userID, remote.DefaultSlot)
	if err != nil {
		t.log.WithError(err).Warn("cloud backfill check failed")
		return
	}

	t.mu.Lock()
	local := len(t.achievements)
	t.mu.Unlock()

	if save != nil && len(save.Achievements) >= local {
		return
	}
	if err := t.pushRemote(ctx, userID); err != nil {
		t.log.WithError(err).Warn("cloud backfill push failed")
	}
}

// UnlockAchievement creates the record for a known achievement id. It
// returns false (never an error) for unknown or already unlocked ids. The
// unlock is visible and listeners fire even when every durable write
// fails: the fallback tier carries it to the next session.
func (t *Tracker) UnlockAchievement(ctx context.Context, id string) bool {
	t.EnsureInitialized(ctx)
	return t.unlock(ctx, id)
}

func (t *Tracker) unlock(ctx context.Context, id string) bool {
	def, ok := lookupDefinition(id)
	if !ok {
		t.log.Warn(fmt.Sprintf("unknown achievement id %q (closest known: %q)", id, suggestID(id)))
		return false
	}

	t.mu.Lock()
	if _, exists := t.byID[id]; exists {
		t.mu.Unlock()
		return false
	}
	a := &models.Achievement{
		ID:                def.ID,
		Name:              def.Name,
		Description:       def.Description,
		Category:          def.Category,
		Rarity:            def.Rarity,
		Reward:            def.Reward,
		UnlockedTimestamp: t.now().UnixMilli(),
	}
	t.byID[id] = a
	t.achievements = append(t.achievements, a)
	record := *a
	t.mu.Unlock()

	// Synchronous-tier writes land before the durable attempt, so a crash
	// from here on cannot lose the unlock.
	if err := t.ledger.WriteTentative(record); err != nil {
		t.log.WithError(err).Warn("failed to write fallback entry for " + id)
	}
	t.writeSnapshot()

	if err := t.persistAchievement(record); err != nil {
		t.log.WithError(err).Warn("durable write failed for " + id + ", fallback entry retained")
	} else {
		t.ledger.ClearTentative(id)
	}

	t.unlockListeners.notify(record)
	t.pushRemoteBestEffort(ctx)
	return true
}

// unlockIfEligible is the reconciliation entry point: a no-op whenever the
// id is already present, claimed or not.
func (t *Tracker) unlockIfEligible(ctx context.Context, id string) {
	t.mu.Lock()
	_, exists := t.byID[id]
	t.mu.Unlock()
	if exists {
		return
	}
	t.unlock(ctx, id)
}

// MarkAchievementClaimed flips the claimed flag for an unlocked
// achievement. Concurrent claims of the same id are serialized by an
// in-flight marker: the loser observes "claim in progress" and returns
// false. Absent or already claimed ids return false.
func (t *Tracker) MarkAchievementClaimed(ctx context.Context, id string) bool {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	if _, busy := t.claimsInFlight[id]; busy {
		t.mu.Unlock()
		return false
	}
	a, ok := t.byID[id]
	if !ok || a.Claimed {
		t.mu.Unlock()
		return false
	}
	t.claimsInFlight[id] = struct{}{}
	a.Claimed = true
	record := *a
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.claimsInFlight, id)
		t.mu.Unlock()
	}()

	// These synchronous writes must land before we return: the durable
	// write below may be slow or fail outright.
	if err := t.ledger.MarkClaimed(id); err != nil {
		t.log.WithError(err).Warn("failed to write claim flag for " + id)
	}
	if err := t.ledger.Commit(record); err != nil {
		t.log.WithError(err).Warn("failed to write claim fallback record for " + id)
	}
	t.writeSnapshot()

	if err := t.persistAchievement(record); err != nil {
		t.log.WithError(err).Warn("durable claim write failed for " + id + ", fallback retained")
	} else {
		// The full fallback record is only cleared once the durable tier
		// confirms; the claimed-flag map itself is monotonic and stays.
		t.ledger.ClearCommitted(id)
		t.ledger.ClearTentative(id)
	}

	t.claimListeners.notify(record)
	t.pushRemoteBestEffort(ctx)
	return true
}

// ClaimAll claims every unlocked, unclaimed achievement and returns the
// claimed records. Ids with a claim already in flight are skipped.
func (t *Tracker) ClaimAll(ctx context.Context) []models.Achievement {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	var candidates []string
	for _, a := range t.achievements {
		if !a.Claimed {
			candidates = append(candidates, a.ID)
		}
	}
	t.mu.Unlock()

	var claimed []models.Achievement
	for _, id := range candidates {
		if t.MarkAchievementClaimed(ctx, id) {
			t.mu.Lock()
			claimed = append(claimed, *t.byID[id])
			t.mu.Unlock()
		}
	}
	return claimed
}

// GetAchievements returns references into the live cache. This aliasing is
// deliberate: a claim after the call is observable through a previously
// returned slice, which the UI relies on.
func (t *Tracker) GetAchievements(ctx context.Context) []*models.Achievement {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.Achievement, len(t.achievements))
	copy(out, t.achievements)
	return out
}

// GetStatistics returns a snapshot copy.
func (t *Tracker) GetStatistics(ctx context.Context) models.PlayerStatistics {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// --- persistence helpers ---

// persistAchievement is the durable-write-with-retry path: bounded
// attempts with linearly increasing backoff, after which the caller keeps
// the fallback entry instead of losing the update.
func (t *Tracker) persistAchievement(a models.Achievement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return t.saveWithRetry(durable.TableAchievements, a.ID, data)
}

func (t *Tracker) persistStatistics() {
	t.mu.Lock()
	data, err := json.Marshal(t.stats)
	t.mu.Unlock()
	if err != nil {
		t.log.WithError(err).Warn("failed to encode statistics")
		return
	}
	if err := t.saveWithRetry(durable.TableStatistics, statisticsKey, data); err != nil {
		t.log.WithError(err).Warn("failed to persist statistics")
	}
}

func (t *Tracker) saveWithRetry(table, key string, value []byte) error {
	var err error
	for attempt := 1; attempt <= t.retryAttempts; attempt++ {
		if err = t.store.Save(table, key, value); err == nil {
			return nil
		}
		if attempt < t.retryAttempts {
			t.retryDelay(attempt)
		}
	}
	return err
}

func (t *Tracker) writeSnapshot() {
	t.mu.Lock()
	entries := make([]models.AchievementSnapshot, 0, len(t.achievements))
	for _, a := range t.achievements {
		entries = append(entries, models.AchievementSnapshot{
			ID:                a.ID,
			UnlockedTimestamp: a.UnlockedTimestamp,
			Claimed:           a.Claimed,
		})
	}
	t.mu.Unlock()

	if err := t.ledger.WriteSnapshot(entries); err != nil {
		t.log.WithError(err).Warn("failed to write fallback snapshot")
	}
}

// pushRemoteBestEffort mirrors the whole local state to the cloud tier.
// Pure disaster recovery: any failure is logged and forgotten.
func (t *Tracker) pushRemoteBestEffort(ctx context.Context) {
	if t.mirror == nil {
		return
	}
	userID, err := t.mirror.EnsureUser(ctx)
	if err != nil || userID == "" {
		return
	}
	if err := t.pushRemote(ctx, userID); err != nil {
		t.log.WithError(err).Warn("cloud push failed")
	}
}

func (t *Tracker) pushRemote(ctx context.Context, userID string) error {
	t.mu.Lock()
	achievements := make([]models.Achievement, 0, len(t.achievements))
	for _, a := range t.achievements {
		achievements = append(achievements, *a)
	}
	stats := t.stats
	t.mu.Unlock()

	return t.mirror.Upsert(ctx, userID, remote.DefaultSlot, remote.Save{
		Achievements: achievements,
		Statistics:   &stats,
		UpdatedAt:    t.now().UnixMilli(),
	})
}

// touchStatsLocked stamps LastPlayedTimestamp; every mutation goes through
// it. Callers hold t.mu.
func (t *Tracker) touchStatsLocked() {
	t.stats.LastPlayedTimestamp = t.now().UnixMilli()
}
