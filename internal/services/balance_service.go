package services

import (
	"context"
	"fmt"

	"splitledger/internal/balance"
	"splitledger/internal/core"
)

// BalanceStore is the storage surface the balance service needs.
type BalanceStore interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

// BalanceService derives net positions from the expense ledger. Balances are
// never stored; every call folds the full ledger.
type BalanceService struct {
	store BalanceStore
}

func NewBalanceService(store BalanceStore) *BalanceService {
	return &BalanceService{store: store}
}

// Sheet returns the net position of every participant that appears in the
// ledger, ordered by participant id. The entries sum to zero.
func (s *BalanceService) Sheet(ctx context.Context) ([]core.BalanceEntry, error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	return balance.Compute(expenses), nil
}

// Report returns the balance sheet together with a set of transfers that
// would zero it out. Both are derived from a single ledger read, so the
// transfers always match the entries even while expenses are being recorded.
func (s *BalanceService) Report(ctx context.Context) ([]core.BalanceEntry, []balance.Transfer, error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load expenses: %w", err)
	}

	entries := balance.Compute(expenses)
	return entries, balance.SuggestSettlements(entries), nil
}
