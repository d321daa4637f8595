// Package hash holds the 32-bit rolling hash shared by combination
// identity and export checksums. It has to stay stable across releases:
// persisted combination hashes and previously exported payloads are
// verified against it.
package hash

// Rolling32 computes hash = hash*31 + char over the string, wrapped to a
// signed 32-bit integer.
func Rolling32(s string) int32 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return h
}
