package idhash

import "testing"

func TestComputePairID_Deterministic(t *testing.T) {
	a := ComputePairID("KXBTC-25DEC31", "0xabc123")
	b := ComputePairID("KXBTC-25DEC31", "0xabc123")

	if a != b {
		t.Errorf("Pair ID not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestComputePairID_OrderSensitive(t *testing.T) {
	a := ComputePairID("k1", "p1")
	b := ComputePairID("p1", "k1")

	if a == b {
		t.Error("Pair ID should depend on side order")
	}
}

func TestComputePairID_DistinctPairs(t *testing.T) {
	ids := map[string]bool{}
	pairs := [][2]string{
		{"k1", "p1"},
		{"k1", "p2"},
		{"k2", "p1"},
		{"k1|p", "1"},
	}

	for _, p := range pairs {
		id := ComputePairID(p[0], p[1])
		if ids[id] {
			t.Errorf("Collision for pair %v", p)
		}
		ids[id] = true
	}
}
