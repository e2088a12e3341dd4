package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Project folds entries in chronological order starting from a zero balance.
// Entries are ordered by (OccurredAt, CreatedAt, EntryID), so the result does
// not depend on the order of the input. The input slice is not modified.
func Project(entries []Entry) Projection {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return entryLess(sorted[i], sorted[j])
	})

	p := Projection{
		Entries:       make([]ProjectedEntry, 0, len(sorted)),
		FinalBalance:  decimal.Zero,
		TotalCharges:  decimal.Zero,
		TotalPayments: decimal.Zero,
	}

	balance := decimal.Zero
	for _, e := range sorted {
		switch e.Type {
		case Charge:
			p.TotalCharges = p.TotalCharges.Add(e.Amount)
		case Payment:
			p.TotalPayments = p.TotalPayments.Add(e.Amount)
		}
		balance = balance.Add(e.Signed())
		p.Entries = append(p.Entries, ProjectedEntry{Entry: e, RunningBalance: balance})
	}
	p.FinalBalance = balance

	return p
}

func entryLess(a, b Entry) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.EntryID < b.EntryID
}

// NewestFirst returns the projected entries in reverse chronological order
func (p Projection) NewestFirst() []ProjectedEntry {
	out := make([]ProjectedEntry, len(p.Entries))
	for i, e := range p.Entries {
		out[len(p.Entries)-1-i] = e
	}
	return out
}
