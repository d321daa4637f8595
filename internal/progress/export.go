package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chronochess/progress/internal/hash"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/storage/durable"
)

// ErrChecksumMismatch rejects an import wholesale: partially corrupt
// cross-device data risks granting unearned rewards.
var ErrChecksumMismatch = fmt.Errorf("progress import rejected: checksum mismatch")

// ExportProgressData produces the cross-device sync payload. The checksum
// covers the JSON encoding of everything except the checksum field itself.
func (t *Tracker) ExportProgressData(ctx context.Context) (models.ProgressExport, error) {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	payload := models.ProgressExport{
		Statistics:      t.stats,
		Achievements:    make([]models.Achievement, 0, len(t.achievements)),
		UnlockedContent: append([]string(nil), t.unlockedContent...),
		ExportedAt:      t.now().UnixMilli(),
	}
	for _, a := range t.achievements {
		payload.Achievements = append(payload.Achievements, *a)
	}
	t.mu.Unlock()

	if t.combos != nil {
		payload.CombinationHashes = t.combos.Hashes()
	}

	checksum, err := exportChecksum(payload)
	if err != nil {
		return models.ProgressExport{}, fmt.Errorf("failed to encode export payload: %w", err)
	}
	payload.Checksum = checksum
	return payload, nil
}

// ImportProgressData verifies and merges a payload produced by
// ExportProgressData on another device. Statistics merge by numeric max
// (min for createdTimestamp); achievements not known locally are appended,
// and local claimed state is never overwritten.
func (t *Tracker) ImportProgressData(ctx context.Context, payload models.ProgressExport) error {
	t.EnsureInitialized(ctx)

	expected, err := exportChecksum(payload)
	if err != nil {
		return fmt.Errorf("failed to encode import payload: %w", err)
	}
	if expected != payload.Checksum {
		return ErrChecksumMismatch
	}

	t.mu.Lock()
	t.stats.MergeMax(payload.Statistics)
	var added []models.Achievement
	for _, a := range payload.Achievements {
		if _, exists := t.byID[a.ID]; exists {
			continue
		}
		t.mergeLocked(a)
		added = append(added, a)
	}
	for _, content := range payload.UnlockedContent {
		if !containsString(t.unlockedContent, content) {
			t.unlockedContent = append(t.unlockedContent, content)
		}
	}
	t.mu.Unlock()

	t.persistStatistics()
	for _, a := range added {
		if err := t.persistAchievement(a); err != nil {
			t.log.WithError(err).Warn("failed to persist imported achievement " + a.ID)
		}
	}
	t.persistUnlockedContent()
	t.writeSnapshot()
	return nil
}

func (t *Tracker) persistUnlockedContent() {
	t.mu.Lock()
	data, err := json.Marshal(t.unlockedContent)
	t.mu.Unlock()
	if err != nil {
		return
	}
	if err := t.saveWithRetry(durable.TableContent, statisticsKey, data); err != nil {
		t.log.WithError(err).Warn("failed to persist unlocked content")
	}
}

func exportChecksum(payload models.ProgressExport) (int32, error) {
	payload.Checksum = 0
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	return hash.Rolling32(string(data)), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
