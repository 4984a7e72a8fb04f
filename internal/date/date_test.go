package date

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		from Date
		n    int
		want Date
	}{
		{New(2025, 1, 31), 1, New(2025, 2, 28)},
		{New(2024, 1, 31), 1, New(2024, 2, 29)},
		{New(2024, 1, 31), 2, New(2024, 3, 31)},
		{New(2025, 8, 31), 1, New(2025, 9, 30)},
		{New(2025, 12, 15), 1, New(2026, 1, 15)},
		{New(2025, 3, 31), -1, New(2025, 2, 28)},
	}
	for _, tc := range cases {
		if got := tc.from.AddMonthsClamped(tc.n); got != tc.want {
			t.Errorf("%s + %d months = %s, want %s", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestArithmeticAndCompare(t *testing.T) {
	d := New(2024, 2, 28)
	if got := d.AddDays(2); got != New(2024, 3, 1) {
		t.Fatalf("AddDays across leap day = %s", got)
	}
	if New(2024, 3, 1).DaysSince(New(2024, 2, 1)) != 29 {
		t.Fatalf("DaysSince wrong")
	}
	if !d.Before(d.AddDays(1)) || d.After(d) || d.Compare(d) != 0 {
		t.Fatalf("comparisons wrong")
	}
	if DaysIn(2023, time.February) != 28 || DaysIn(2024, time.February) != 29 {
		t.Fatalf("DaysIn wrong")
	}
	if Min(d, d.AddDays(1)) != d || Max(d, d.AddDays(-1)) != d {
		t.Fatalf("Min/Max wrong")
	}
}

func TestDaysSinceSpansCenturies(t *testing.T) {
	if got := New(2025, 3, 15).DaysSince(New(1700, 1, 4)); got != 118774 {
		t.Fatalf("DaysSince = %d, want 118774", got)
	}
	if got := New(1700, 1, 4).DaysSince(New(2025, 3, 15)); got != -118774 {
		t.Fatalf("reverse DaysSince = %d, want -118774", got)
	}
}

func TestInTimezone(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	instant := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	if got := In(instant, bogota); got != New(2025, 2, 28) {
		t.Fatalf("In() = %s, want 2025-02-28", got)
	}
}

func TestParseAndJSON(t *testing.T) {
	d, err := Parse("2025-7-1")
	if err != nil || d != New(2025, 7, 1) {
		t.Fatalf("Parse: %v %s", err, d)
	}
	if _, err := Parse("01/07/2025"); err == nil {
		t.Fatalf("expected parse error")
	}
	b, _ := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: d})
	if string(b) != `{"d":"2025-07-01","z":null}` {
		t.Fatalf("marshal = %s", b)
	}
	var out struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-07-01","z":""}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.D != d || !out.Z.IsZero() {
		t.Fatalf("unmarshal got %+v", out)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(New(2025, 1, 1))
	c.Advance(31)
	if c.Today() != New(2025, 2, 1) {
		t.Fatalf("Advance: %s", c.Today())
	}
	c.Set(New(2030, 6, 6))
	if c.Today() != New(2030, 6, 6) {
		t.Fatalf("Set: %s", c.Today())
	}
}
