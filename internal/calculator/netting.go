package calculator

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// NetDebt is the aggregated remaining amount a debtor owes a creditor.
type NetDebt struct {
	DebtorID   int64
	CreditorID int64
	Amount     decimal.Decimal
}

// CreditorSummary aggregates what a creditor is still owed after netting.
type CreditorSummary struct {
	CreditorID      int64
	TotalReceivable decimal.Decimal
	DebtorCount     int
}

type pairKey struct{ debtor, creditor int64 }

// NetMutualDebts cancels reciprocal debts between the same two users.
//
// For every pair {A, B} owing each other, min(sum A->B, sum B->A) is deducted
// from both directions oldest-first, so only the larger direction keeps a
// remainder. Each pair is processed once. Remainders closer to zero than 0.01
// are snapped to zero. The input slice is not modified.
func NetMutualDebts(debts []DebtDetail) []DebtDetail {
	out := slices.Clone(debts)

	byPair := make(map[pairKey][]int)
	var keys []pairKey
	for i := range out {
		k := pairKey{out[i].DebtorID, out[i].CreditorID}
		if _, ok := byPair[k]; !ok {
			keys = append(keys, k)
		}
		byPair[k] = append(byPair[k], i)
	}
	for _, idx := range byPair {
		slices.SortStableFunc(idx, func(a, b int) int { return compareAge(out[a], out[b]) })
	}
	slices.SortFunc(keys, comparePair)

	visited := make(map[pairKey]bool)
	for _, k := range keys {
		if visited[k] {
			continue
		}
		reverse := pairKey{k.creditor, k.debtor}
		visited[k] = true
		visited[reverse] = true

		forwardIdx, reverseIdx := byPair[k], byPair[reverse]
		if len(reverseIdx) == 0 {
			continue
		}
		forward := sumRemaining(out, forwardIdx)
		backward := sumRemaining(out, reverseIdx)
		if !forward.IsPositive() || !backward.IsPositive() {
			continue
		}

		net := decimal.Min(forward, backward)
		deductOldestFirst(out, forwardIdx, net, nil)
		deductOldestFirst(out, reverseIdx, net, nil)
	}

	for i := range out {
		if out[i].Remaining.Abs().LessThan(roundingNoise) {
			out[i].Remaining = decimal.Zero
		}
	}
	return out
}

// SummarizeNet aggregates remaining amounts per (debtor, creditor).
// Only pairs with a positive remainder are returned, sorted by debtor then creditor.
func SummarizeNet(debts []DebtDetail) []NetDebt {
	totals := make(map[pairKey]decimal.Decimal)
	for _, d := range debts {
		if !d.Remaining.IsPositive() {
			continue
		}
		k := pairKey{d.DebtorID, d.CreditorID}
		totals[k] = totals[k].Add(d.Remaining)
	}

	out := make([]NetDebt, 0, len(totals))
	for k, amount := range totals {
		out = append(out, NetDebt{DebtorID: k.debtor, CreditorID: k.creditor, Amount: amount})
	}
	slices.SortFunc(out, func(a, b NetDebt) int {
		return comparePair(pairKey{a.DebtorID, a.CreditorID}, pairKey{b.DebtorID, b.CreditorID})
	})
	return out
}

// SummarizeCreditors groups net debts by creditor, ordered by creditor id.
func SummarizeCreditors(net []NetDebt) []CreditorSummary {
	byCreditor := make(map[int64]*CreditorSummary)
	for _, n := range net {
		s, ok := byCreditor[n.CreditorID]
		if !ok {
			s = &CreditorSummary{CreditorID: n.CreditorID, TotalReceivable: decimal.Zero}
			byCreditor[n.CreditorID] = s
		}
		s.TotalReceivable = s.TotalReceivable.Add(n.Amount)
		s.DebtorCount++
	}

	out := make([]CreditorSummary, 0, len(byCreditor))
	for _, s := range byCreditor {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b CreditorSummary) int { return cmp.Compare(a.CreditorID, b.CreditorID) })
	return out
}

func comparePair(a, b pairKey) int {
	if c := cmp.Compare(a.debtor, b.debtor); c != 0 {
		return c
	}
	return cmp.Compare(a.creditor, b.creditor)
}
