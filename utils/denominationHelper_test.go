package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundChange(t *testing.T) {
	cases := []struct {
		name   string
		change string
		want   string
	}{
		{"exact note", "5000", "5000"},
		{"rounds down to 50", "5049", "5000"},
		{"sub-note remainder dropped", "57", "50"},
		{"below smallest note", "49", "0"},
		{"zero", "0", "0"},
		{"negative clamps to zero", "-100", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RoundChange(d(tc.change))
			if !got.Equal(d(tc.want)) {
				t.Fatalf("RoundChange(%s) = %s; want %s", tc.change, got, tc.want)
			}
		})
	}
}

func TestBreakdownChange(t *testing.T) {
	breakdown := BreakdownChange(d("16750"))
	want := []NoteCount{
		{Note: 10000, Count: 1},
		{Note: 5000, Count: 1},
		{Note: 1000, Count: 1},
		{Note: 500, Count: 1},
		{Note: 200, Count: 1},
		{Note: 50, Count: 1},
	}
	if len(breakdown) != len(want) {
		t.Fatalf("breakdown has %d entries; want %d: %+v", len(breakdown), len(want), breakdown)
	}
	for i, w := range want {
		if breakdown[i] != w {
			t.Fatalf("breakdown[%d] = %+v; want %+v", i, breakdown[i], w)
		}
	}
}

func TestBreakdownChange_SumsBackToRoundedChange(t *testing.T) {
	change := d("7857")
	rounded := RoundChange(change)
	var sum decimal.Decimal
	for _, nc := range BreakdownChange(change) {
		sum = sum.Add(decimal.NewFromInt(nc.Note).Mul(decimal.NewFromInt(nc.Count)))
	}
	if !sum.Equal(rounded) {
		t.Fatalf("breakdown sums to %s; want %s", sum, rounded)
	}
}

func TestBreakdownChange_Zero(t *testing.T) {
	if breakdown := BreakdownChange(decimal.Zero); len(breakdown) != 0 {
		t.Fatalf("expected empty breakdown for zero change; got %+v", breakdown)
	}
}
