package models

// ProgressExport is the cross-device sync payload. Checksum is the 32-bit
// rolling hash of the JSON encoding of the payload with the checksum field
// zeroed; imports that fail the recomputation are rejected wholesale.
type ProgressExport struct {
	Statistics        PlayerStatistics `json:"statistics"`
	Achievements      []Achievement    `json:"achievements"`
	CombinationHashes []string         `json:"combinationHashes"`
	UnlockedContent   []string         `json:"unlockedContent"`
	ExportedAt        int64            `json:"exportedAt"`
	Checksum          int32            `json:"checksum"`
}
