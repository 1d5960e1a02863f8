package source

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/basketrec/core"
)

func strp(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	rows := []Row{
		{UserID: "u1", ItemID: "A", Quantity: strp("2"), Timestamp: "2024-01-02"},
		// 缺数量、空数量都按 1
		{UserID: " u2 ", ItemID: "B", Timestamp: "2024-01-02 10:30:00"},
		{UserID: "u3", ItemID: "C", Quantity: strp(""), Timestamp: "2024-01-02T10:30:00Z"},
		{UserID: "u4", ItemID: "D", Quantity: strp("1.5"), Timestamp: "1704153600"},
		{UserID: "", ItemID: "A", Timestamp: "2024-01-02"},
		{UserID: "u5", ItemID: "  ", Timestamp: "2024-01-02"},
		{UserID: "u6", ItemID: "A", Timestamp: ""},
		{UserID: "u7", ItemID: "A", Quantity: strp("-1"), Timestamp: "2024-01-02"},
		{UserID: "u8", ItemID: "A", Quantity: strp("abc"), Timestamp: "2024-01-02"},
		{UserID: "u9", ItemID: "A", Quantity: strp("NaN"), Timestamp: "2024-01-02"},
		{UserID: "u10", ItemID: "A", Timestamp: "yesterday"},
		{UserID: "u11", ItemID: "A", Quantity: strp("0"), Timestamp: "2024-01-02"},
		{UserID: "u12", ItemID: "A", Timestamp: "2300-01-01"},
	}

	events, stats := Normalize(rows, zerolog.Nop())

	if stats.Rows != len(rows) || stats.Kept != 5 || len(events) != 5 {
		t.Fatalf("stats = %+v, events = %d", stats, len(events))
	}
	wantDropped := map[string]int{
		DropMissingUser:  1,
		DropMissingItem:  1,
		DropMissingTime:  1,
		DropBadQuantity:  3,
		DropBadTimestamp: 2,
	}
	for reason, n := range wantDropped {
		if stats.Dropped[reason] != n {
			t.Errorf("Dropped[%s] = %d, want %d", reason, stats.Dropped[reason], n)
		}
	}

	want := []core.TransactionEvent{
		{UserID: "u1", ItemID: "A", Quantity: 2, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{UserID: "u2", ItemID: "B", Quantity: 1, Timestamp: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)},
		{UserID: "u3", ItemID: "C", Quantity: 1, Timestamp: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)},
		{UserID: "u4", ItemID: "D", Quantity: 1.5, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{UserID: "u11", ItemID: "A", Quantity: 0, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for i := range want {
		got := events[i]
		if got.UserID != want[i].UserID || got.ItemID != want[i].ItemID || got.Quantity != want[i].Quantity || !got.Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("events[%d] = %+v, want %+v", i, got, want[i])
		}
	}
}

// 一条远未来的脏数据不能成为衰减基准
func TestNormalize_FutureTimestamp(t *testing.T) {
	now := time.Now().UTC()
	rows := []Row{
		{UserID: "u1", ItemID: "A", Timestamp: "2024-01-15"},
		{UserID: "u1", ItemID: "B", Timestamp: "2024-06-15"},
		{UserID: "u2", ItemID: "A", Timestamp: "2300-01-01"},
		{UserID: "u3", ItemID: "C", Timestamp: now.Add(time.Hour).Format(time.RFC3339)},
		{UserID: "u4", ItemID: "D", Timestamp: now.Add(48 * time.Hour).Format(time.RFC3339)},
	}
	events, stats := Normalize(rows, zerolog.Nop())
	if stats.Kept != 3 || stats.Dropped[DropBadTimestamp] != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, ev := range events {
		if ev.UserID == "u2" || ev.UserID == "u4" {
			t.Errorf("future row kept: %+v", ev)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-05", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{in: "2024-03-05 08:09:10", want: time.Date(2024, 3, 5, 8, 9, 10, 0, time.UTC)},
		{in: "2024-03-05T08:09:10+08:00", want: time.Date(2024, 3, 5, 0, 9, 10, 0, time.UTC)},
		{in: "0", want: time.Unix(0, 0).UTC()},
		{in: "not a date", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	ev := core.TransactionEvent{UserID: "u", ItemID: "A", Quantity: 1, Timestamp: time.Unix(0, 0)}
	s := NewStatic(ev)
	got, err := s.Load(context.Background())
	if err != nil || len(got) != 1 || got[0] != ev {
		t.Fatalf("Load() = %v, %v", got, err)
	}

	rows := NewStaticRows([]Row{
		{UserID: "u", ItemID: "A", Timestamp: "2024-01-01"},
		{UserID: "", ItemID: "A", Timestamp: "2024-01-01"},
	})
	got, err = rows.Load(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("Load() rows = %v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Load(ctx); err == nil {
		t.Error("Load() with canceled context should fail")
	}
}
