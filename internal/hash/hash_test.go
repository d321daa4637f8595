package hash

import "testing"

func TestRolling32Deterministic(t *testing.T) {
	a := Rolling32(`{"pieceType":"pawn","evolutionLevel":3}`)
	b := Rolling32(`{"pieceType":"pawn","evolutionLevel":3}`)
	if a != b {
		t.Fatalf("same input hashed differently: %d vs %d", a, b)
	}
}

func TestRolling32Distinguishes(t *testing.T) {
	if Rolling32("knight:2") == Rolling32("knight:3") {
		t.Fatal("expected different hashes for different inputs")
	}
}

func TestRolling32Empty(t *testing.T) {
	if got := Rolling32(""); got != 0 {
		t.Fatalf("empty string should hash to 0, got %d", got)
	}
}

func TestRolling32WrapsToSigned32(t *testing.T) {
	// Long inputs overflow int32 many times over; the result must still be
	// a stable wrapped value, not saturate.
	long := ""
	for i := 0; i < 64; i++ {
		long += "chronochess"
	}
	first := Rolling32(long)
	second := Rolling32(long)
	if first != second {
		t.Fatalf("overflowing hash not stable: %d vs %d", first, second)
	}
}
