package storeutil

import (
	"math"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		limit, page         int64
		wantLimit, wantSkip int64
	}{
		{0, 0, 20, 0},
		{10, 1, 10, 0},
		{10, 3, 10, 20},
		{500, 2, 100, 100},
		{-1, -1, 20, 0},
		{100, 1 << 62, 100, (math.MaxInt64/100 - 1) * 100},
		{20, math.MaxInt64, 20, (math.MaxInt64/20 - 1) * 20},
	}
	for _, tt := range tests {
		opts := Paginate(tt.limit, tt.page)
		if *opts.Limit != tt.wantLimit || *opts.Skip != tt.wantSkip {
			t.Errorf("Paginate(%d, %d) = limit %d skip %d, want %d/%d",
				tt.limit, tt.page, *opts.Limit, *opts.Skip, tt.wantLimit, tt.wantSkip)
		}
	}
}

func TestSkip_NeverNegative(t *testing.T) {
	for _, limit := range []int64{0, 1, 7, 20, MaxLimit, math.MaxInt64} {
		for _, page := range []int64{math.MinInt64, 0, 1, 1 << 62, math.MaxInt64 - 1, math.MaxInt64} {
			if got := Skip(limit, page); got < 0 {
				t.Errorf("Skip(%d, %d) = %d, want >= 0", limit, page, got)
			}
		}
	}
	if got := Skip(10, 3); got != 20 {
		t.Errorf("Skip(10, 3) = %d, want 20", got)
	}
}

func TestPages(t *testing.T) {
	if got := Pages(0, 20); got != 0 {
		t.Errorf("Pages(0,20) = %d", got)
	}
	if got := Pages(20, 20); got != 1 {
		t.Errorf("Pages(20,20) = %d", got)
	}
	if got := Pages(21, 20); got != 2 {
		t.Errorf("Pages(21,20) = %d", got)
	}
}

func TestToggleMember_TargetsOnlyField(t *testing.T) {
	p := ToggleMember("likes", primitive.NewObjectID())
	if len(p) != 1 {
		t.Fatalf("pipeline stages = %d, want 1", len(p))
	}
	set, ok := p[0][0].Value.(bson.M)
	if !ok || p[0][0].Key != "$set" {
		t.Fatalf("stage = %#v", p[0])
	}
	if len(set) != 1 {
		t.Errorf("$set touches %d fields, want 1", len(set))
	}
	if _, ok := set["likes"]; !ok {
		t.Error("$set does not target likes")
	}
}
