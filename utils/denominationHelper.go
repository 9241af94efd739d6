package utils

import (
	"github.com/shopspring/decimal"
)

// Kyat notes in circulation, largest first. The breakdown below walks this
// table greedily, so order matters.
var currencyNotes = []int64{10000, 5000, 1000, 500, 200, 100, 50}

type NoteCount struct {
	Note  int64 `json:"note"`
	Count int64 `json:"count"`
}

// RoundChange rounds change due down to the smallest note. Sub-note
// remainders cannot be tendered in cash.
func RoundChange(change decimal.Decimal) decimal.Decimal {
	if change.IsNegative() {
		return decimal.Zero
	}
	smallest := decimal.NewFromInt(currencyNotes[len(currencyNotes)-1])
	return change.Div(smallest).Floor().Mul(smallest)
}

// BreakdownChange returns the greedy largest-first note breakdown for the
// change due. Presentation only; never persisted.
func BreakdownChange(change decimal.Decimal) []NoteCount {
	remaining := RoundChange(change)
	breakdown := make([]NoteCount, 0, len(currencyNotes))
	for _, note := range currencyNotes {
		noteValue := decimal.NewFromInt(note)
		if remaining.LessThan(noteValue) {
			continue
		}
		count := remaining.Div(noteValue).Floor()
		remaining = remaining.Sub(count.Mul(noteValue))
		breakdown = append(breakdown, NoteCount{Note: note, Count: count.IntPart()})
	}
	return breakdown
}
