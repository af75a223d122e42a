// Package balance folds an expense history into per-participant net
// positions and suggests transfers that would settle them.
//
// All computation is read-only and derived: balances are never stored, they
// are recomputed from the ledger on every call.
package balance

import (
	"sort"

	"splitledger/internal/core"
)

// Transfer is a suggested payment from one participant to another.
type Transfer struct {
	FromID int64
	ToID   int64
	Amount core.Money
}

// Compute folds expenses into net balances: the payer is credited with the
// full amount, every split participant is debited their share. The result is
// sorted ascending by participant id and its nets sum to zero, because each
// expense contributes its total once as credit and exactly once as debits.
func Compute(expenses []core.Expense) []core.BalanceEntry {
	nets := make(map[int64]int64)

	for _, e := range expenses {
		nets[e.PayerID] += e.Amount.Cents
		for _, sh := range e.Split {
			nets[sh.ParticipantID] -= sh.Amount.Cents
		}
	}

	entries := make([]core.BalanceEntry, 0, len(nets))
	for id, cents := range nets {
		entries = append(entries, core.BalanceEntry{
			ParticipantID: id,
			Net:           core.Money{Cents: cents},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries
}

// SuggestSettlements greedily matches debtors against creditors, producing a
// short list of transfers that would zero every balance. Matching runs in
// ascending participant-id order, so the output is deterministic. Computing
// the suggestions has no side effects; nothing here records a payment.
func SuggestSettlements(entries []core.BalanceEntry) []Transfer {
	var debtors, creditors []core.BalanceEntry
	for _, e := range entries {
		switch {
		case e.Net.Cents < 0:
			debtors = append(debtors, e)
		case e.Net.Cents > 0:
			creditors = append(creditors, e)
		}
	}

	var transfers []Transfer
	i, j := 0, 0
	var owed, due int64
	for i < len(debtors) && j < len(creditors) {
		if owed == 0 {
			owed = -debtors[i].Net.Cents
		}
		if due == 0 {
			due = creditors[j].Net.Cents
		}

		amount := owed
		if due < amount {
			amount = due
		}
		transfers = append(transfers, Transfer{
			FromID: debtors[i].ParticipantID,
			ToID:   creditors[j].ParticipantID,
			Amount: core.Money{Cents: amount},
		})

		owed -= amount
		due -= amount
		if owed == 0 {
			i++
		}
		if due == 0 {
			j++
		}
	}
	return transfers
}
