package xp

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestTierFor_Boundaries(t *testing.T) {
	tests := []struct {
		xp   int64
		want Tier
	}{
		{0, Bronze},
		{499, Bronze},
		{500, Silver},
		{1999, Silver},
		{2000, Gold},
		{4999, Gold},
		{5000, Platinum},
		{9999, Platinum},
		{10000, Diamond},
		{1 << 40, Diamond},
	}
	for _, tt := range tests {
		if got := TierFor(tt.xp); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.xp, got, tt.want)
		}
	}
}

func TestTierFor_Monotonic(t *testing.T) {
	rank := map[Tier]int{}
	for i, tier := range AllTiers() {
		rank[tier] = i
	}
	prev := TierFor(0)
	for x := int64(1); x <= 12000; x++ {
		cur := TierFor(x)
		if !cur.IsValid() {
			t.Fatalf("TierFor(%d) returned invalid tier %q", x, cur)
		}
		if rank[cur] < rank[prev] {
			t.Fatalf("tier decreased at xp=%d: %s -> %s", x, prev, cur)
		}
		prev = cur
	}
}

func TestMinXP(t *testing.T) {
	want := map[Tier]int64{Bronze: 0, Silver: 500, Gold: 2000, Platinum: 5000, Diamond: 10000}
	for tier, min := range want {
		if got := tier.MinXP(); got != min {
			t.Errorf("%s.MinXP() = %d, want %d", tier, got, min)
		}
		if TierFor(min) != tier {
			t.Errorf("TierFor(%s.MinXP()) = %s", tier, TierFor(min))
		}
	}
}

func TestSwitchExpr_MirrorsTable(t *testing.T) {
	expr := SwitchExpr("$xp")
	sw, ok := expr["$switch"].(bson.M)
	if !ok {
		t.Fatalf("missing $switch: %#v", expr)
	}
	branches, ok := sw["branches"].(bson.A)
	if !ok || len(branches) != len(thresholds) {
		t.Fatalf("branches = %#v", sw["branches"])
	}
	if sw["default"] != string(Diamond) {
		t.Errorf("default = %v, want %s", sw["default"], Diamond)
	}
	first := branches[0].(bson.M)
	if first["then"] != string(Bronze) {
		t.Errorf("first branch then = %v", first["then"])
	}
}
