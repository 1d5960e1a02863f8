package itemcf

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/rushteam/basketrec/core"
)

func mustBuild(t *testing.T, events []core.TransactionEvent, opts Options) *Model {
	t.Helper()
	m, err := Build(context.Background(), events, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

// bundleEvents 构造组合购买数据：买 A 的用户中 70% 同时买 B，其他物品只出现在另一批用户的购物篮里。
func bundleEvents(seed int64) []core.TransactionEvent {
	r := rand.New(rand.NewSource(seed))
	others := []string{"C", "D", "E", "F"}
	var out []core.TransactionEvent
	for u := 0; u < 100; u++ {
		user := fmt.Sprintf("u%03d", u)
		ts := day0.AddDate(0, 0, r.Intn(300))
		if u < 60 {
			out = append(out, core.TransactionEvent{UserID: user, ItemID: "A", Quantity: float64(1 + r.Intn(5)), Timestamp: ts})
			if u%10 < 7 {
				out = append(out, core.TransactionEvent{UserID: user, ItemID: "B", Quantity: 8, Timestamp: ts})
			}
			continue
		}
		for n := 0; n < 3; n++ {
			out = append(out, core.TransactionEvent{UserID: user, ItemID: others[r.Intn(len(others))], Quantity: float64(1 + r.Intn(5)), Timestamp: ts})
		}
	}
	return out
}

func TestRecommend_BundleScenario(t *testing.T) {
	m := mustBuild(t, bundleEvents(2024), DefaultOptions())
	got, err := m.Recommend(Query{Seeds: []string{"A"}, TopK: 1})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "B" || got[0].Score <= 0 {
		t.Fatalf("Recommend({A}, 1) = %+v, want [(B, >0)]", got)
	}
}

func TestRecommend_Properties(t *testing.T) {
	m := mustBuild(t, randomEvents(99, 40, 30, 800), DefaultOptions())
	ids := m.Index().IDs()

	for trial := 0; trial < 50; trial++ {
		r := rand.New(rand.NewSource(int64(trial)))
		seeds := []string{ids[r.Intn(len(ids))], ids[r.Intn(len(ids))], "unknown-sku"}
		k := 1 + r.Intn(10)

		got, err := m.Recommend(Query{Seeds: seeds, TopK: k})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}

		// 可推荐集合：不是种子、得分 > 0
		eligible := 0
		seedSet := map[string]bool{}
		for _, s := range seeds {
			seedSet[s] = true
		}
		for _, c := range ids {
			if seedSet[c] {
				continue
			}
			score := 0.0
			for s := range seedSet {
				score += m.Similar(s, c)
			}
			if score > 0 {
				eligible++
			}
		}
		if want := min(k, eligible); len(got) != want {
			t.Fatalf("trial %d: len = %d, want min(%d, %d)", trial, len(got), k, eligible)
		}

		for i, it := range got {
			if seedSet[it.ItemID] {
				t.Fatalf("trial %d: seed %s returned", trial, it.ItemID)
			}
			if it.Score <= 0 {
				t.Fatalf("trial %d: non-positive score %+v", trial, it)
			}
			if i == 0 {
				continue
			}
			prev := got[i-1]
			if prev.Score < it.Score || (prev.Score == it.Score && prev.ItemID > it.ItemID) {
				t.Fatalf("trial %d: order violated at %d: %+v then %+v", trial, i, prev, it)
			}
		}
	}
}

func TestRecommend_TieBreakByItemID(t *testing.T) {
	// A 与 B、C 的共现完全对称
	events := []core.TransactionEvent{
		ev("u1", "A", 1, 0), ev("u1", "C", 1, 0),
		ev("u2", "A", 1, 0), ev("u2", "B", 1, 0),
	}
	m := mustBuild(t, events, DefaultOptions())
	got, err := m.Recommend(Query{Seeds: []string{"A"}, TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ItemID != "B" || got[1].ItemID != "C" || got[0].Score != got[1].Score {
		t.Fatalf("Recommend() = %+v, want [B C] with equal scores", got)
	}
}

func TestRecommend_EdgeCases(t *testing.T) {
	events := []core.TransactionEvent{
		ev("u1", "A", 1, 0), ev("u1", "B", 1, 1),
		ev("u2", "X", 1, 0), ev("u2", "Y", 1, 2),
	}
	m := mustBuild(t, events, DefaultOptions())

	tests := []struct {
		name    string
		query   Query
		want    []string
		wantErr error
	}{
		{name: "unseen single item", query: Query{Seeds: []string{"nope"}, TopK: 5}, want: []string{}},
		{name: "empty cart", query: Query{TopK: 5}, want: []string{}},
		{name: "zero top_k", query: Query{Seeds: []string{"A"}, TopK: 0}, wantErr: core.ErrInvalidTopK},
		{name: "negative top_k", query: Query{Seeds: []string{"A"}, TopK: -1}, wantErr: core.ErrInvalidTopK},
		{name: "disjoint clusters", query: Query{Seeds: []string{"A"}, TopK: 5}, want: []string{"B"}},
		{name: "other cluster", query: Query{Seeds: []string{"Y"}, TopK: 5}, want: []string{"X"}},
		{name: "duplicated seeds", query: Query{Seeds: []string{"A", "A", "nope"}, TopK: 5}, want: []string{"B"}},
		{name: "whole cluster in cart", query: Query{Seeds: []string{"A", "B"}, TopK: 5}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Recommend(tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Recommend() error = %v, want %v", err, tt.wantErr)
				}
				if !core.IsInvalidInput(err) {
					t.Errorf("error should be INVALID_INPUT")
				}
				return
			}
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			ids := make([]string, 0, len(got))
			for _, it := range got {
				ids = append(ids, it.ItemID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Recommend() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestRecommend_HistoryMode(t *testing.T) {
	events := []core.TransactionEvent{
		ev("u1", "A", 1, 0), ev("u1", "B", 1, 0),
		ev("u2", "A", 1, 0), ev("u2", "B", 1, 0), ev("u2", "C", 1, 0),
		ev("u3", "D", 1, 0), ev("u3", "E", 1, 0),
		ev("buyer", "C", 2, 0),
	}
	m := mustBuild(t, events, DefaultOptions())

	if m.ModeFor("buyer") != ModeHistory || m.ModeFor("ghost") != ModeColdStart || m.ModeFor("") != ModeColdStart {
		t.Fatal("ModeFor() mismatch")
	}

	// buyer 买过 C：C 与 A、B 相似，且 C 自身不会被推荐
	got, err := m.Recommend(Query{Seeds: []string{"D"}, TopK: 10, UserID: "buyer"})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, it := range got {
		seen[it.ItemID] = true
	}
	for _, id := range []string{"A", "B", "E"} {
		if !seen[id] {
			t.Errorf("history recommend missing %s: %+v", id, got)
		}
	}
	if seen["C"] || seen["D"] {
		t.Errorf("owned or seed item returned: %+v", got)
	}

	cold, err := m.Recommend(Query{Seeds: []string{"D"}, TopK: 10, UserID: "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cold) != 1 || cold[0].ItemID != "E" {
		t.Errorf("cold start recommend = %+v, want [E]", cold)
	}
}

func TestRecommend_Propagate(t *testing.T) {
	opts := DefaultOptions()
	opts.Normalize = true
	m := mustBuild(t, randomEvents(5, 20, 12, 300), opts)
	seed := m.Index().ID(0)

	raw, err := m.Recommend(Query{Seeds: []string{seed}, TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	prop, err := m.Recommend(Query{Seeds: []string{seed}, TopK: 3, Propagate: true})
	if err != nil {
		t.Fatal(err)
	}
	// 单种子时行归一化只改变尺度，不改变排序
	if len(raw) != len(prop) {
		t.Fatalf("len %d vs %d", len(raw), len(prop))
	}
	for i := range raw {
		if raw[i].ItemID != prop[i].ItemID {
			t.Errorf("rank %d: %s vs %s", i, raw[i].ItemID, prop[i].ItemID)
		}
		if prop[i].Score > raw[i].Score {
			t.Errorf("normalized score should not grow: %v > %v", prop[i].Score, raw[i].Score)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	events := randomEvents(11, 30, 20, 500)
	m1 := mustBuild(t, events, DefaultOptions())
	m2 := mustBuild(t, events, DefaultOptions())

	for _, seed := range m1.Index().IDs() {
		q := Query{Seeds: []string{seed}, TopK: 10}
		r1, _ := m1.Recommend(q)
		r2, _ := m2.Recommend(q)
		if !reflect.DeepEqual(r1, r2) {
			t.Fatalf("seed %s: %+v vs %+v", seed, r1, r2)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(context.Background(), nil, DefaultOptions()); !errors.Is(err, core.ErrNoTrainingData) {
		t.Errorf("Build(nil) error = %v, want ErrNoTrainingData", err)
	}
	zero := []core.TransactionEvent{ev("u1", "A", 0, 0), ev("u1", "B", 0, 1), ev("u2", "A", 0, 2)}
	if _, err := Build(context.Background(), zero, DefaultOptions()); !errors.Is(err, core.ErrNoTrainingData) {
		t.Errorf("Build(all zero quantity) error = %v, want ErrNoTrainingData", err)
	}
	bad := DefaultOptions()
	bad.Metric = "pearson"
	if _, err := Build(context.Background(), []core.TransactionEvent{ev("u", "A", 1, 0)}, bad); err == nil {
		t.Error("Build() with unknown metric should fail")
	}
}

func TestModel_StatsAndPopular(t *testing.T) {
	events := []core.TransactionEvent{
		ev("u1", "A", 3, 0), ev("u1", "B", 1, 0),
		ev("u2", "A", 1, 0), ev("u2", "C", 1, 0),
		ev("u3", "C", 1, 0),
	}
	opts := DefaultOptions()
	opts.HalfLifeDays = 0
	m := mustBuild(t, events, opts)

	st := m.Stats()
	if st.Users != 3 || st.Items != 3 || st.Events != 5 {
		t.Errorf("Stats() = %+v", st)
	}
	if !st.DataUntil.Equal(day0) {
		t.Errorf("DataUntil = %v, want %v", st.DataUntil, day0)
	}

	got := m.Popular(2, map[string]struct{}{"B": {}})
	want := []core.ScoredItem{{ItemID: "A", Score: 4}, {ItemID: "C", Score: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Popular() = %+v, want %+v", got, want)
	}
	if m.Popular(0, nil) != nil {
		t.Error("Popular(0) should be nil")
	}

	known, unknown := m.Partition([]string{"A", "zz", "A", "C"})
	if !reflect.DeepEqual(known, []string{"A", "C"}) || !reflect.DeepEqual(unknown, []string{"zz"}) {
		t.Errorf("Partition() = %v, %v", known, unknown)
	}
}
