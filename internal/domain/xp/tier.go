// internal/domain/xp/tier.go
package xp

import "go.mongodb.org/mongo-driver/bson"

// Tier is the reputation label derived from a user's XP.
type Tier string

const (
	Bronze   Tier = "Bronze"
	Silver   Tier = "Silver"
	Gold     Tier = "Gold"
	Platinum Tier = "Platinum"
	Diamond  Tier = "Diamond"
)

// XP awarded per engagement action.
const (
	AwardComment      int64 = 10
	AwardPublish      int64 = 50
	AwardLikeReceived int64 = 5
)

// threshold is the exclusive upper bound of a tier.
type threshold struct {
	below int64
	tier  Tier
}

// thresholds are ascending; anything at or above the last bound is Diamond.
var thresholds = []threshold{
	{500, Bronze},
	{2000, Silver},
	{5000, Gold},
	{10000, Platinum},
}

// TierFor returns the tier for an XP total. Values at a threshold belong to
// the higher tier. Negative totals are treated as zero.
func TierFor(xp int64) Tier {
	for _, t := range thresholds {
		if xp < t.below {
			return t.tier
		}
	}
	return Diamond
}

// AllTiers returns the tiers in ascending order.
func AllTiers() []Tier {
	return []Tier{Bronze, Silver, Gold, Platinum, Diamond}
}

// IsValid reports whether t is one of the defined tiers.
func (t Tier) IsValid() bool {
	for _, v := range AllTiers() {
		if v == t {
			return true
		}
	}
	return false
}

// MinXP returns the lowest XP total that maps to t.
func (t Tier) MinXP() int64 {
	var lo int64
	for _, th := range thresholds {
		if th.tier == t {
			return lo
		}
		lo = th.below
	}
	return lo
}

// SwitchExpr builds an aggregation $switch that maps the numeric expression
// field (for example "$xp") to a tier name using the same table as TierFor.
func SwitchExpr(field string) bson.M {
	branches := make(bson.A, 0, len(thresholds))
	for _, t := range thresholds {
		branches = append(branches, bson.M{
			"case": bson.M{"$lt": bson.A{field, t.below}},
			"then": string(t.tier),
		})
	}
	return bson.M{"$switch": bson.M{
		"branches": branches,
		"default":  string(Diamond),
	}}
}
