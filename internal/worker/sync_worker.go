package worker

import (
	"context"
	"fmt"
	"log/slog"

	"splitledger/internal/amqp"
	"splitledger/internal/core"
)

// Store is the storage surface the sync worker needs.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListParticipants(ctx context.Context) ([]core.Participant, error)
	PendingSyncExpenses(ctx context.Context, limit int) ([]int64, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// RowAppender mirrors one expense into the external balance sheet.
type RowAppender interface {
	AppendExpense(ctx context.Context, e core.Expense, participants map[int64]core.Participant) (string, error)
}

// SyncWorker mirrors recorded expenses from SQLite to the spreadsheet
type SyncWorker struct {
	store     Store
	sheet     RowAppender
	batchSize int
}

func NewSyncWorker(store Store, sheet RowAppender, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		sheet:     sheet,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single expense sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "expense_id", msg.ID)

	return w.syncExpense(ctx, msg.ID)
}

// ProcessPendingExpenses mirrors any expenses not yet marked synced.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) error {
	pending, err := w.store.PendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	for _, id := range pending {
		if err := w.syncExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync expense", "expense_id", id, "error", err)
		}
	}

	return nil
}

// StartupSyncCheck mirrors pending expenses at worker startup, with a larger
// batch than the periodic scan. Useful to recover from missed AMQP messages
// or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.PendingSyncExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending expenses for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending expenses found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending expenses on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, id := range pending {
		if err := w.syncExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync expense during startup",
				"expense_id", id, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, id int64) error {
	expense, err := w.store.GetExpense(ctx, id)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "expense_id", id, "error", markErr)
		}
		return fmt.Errorf("get expense from storage: %w", err)
	}

	participants, err := w.store.ListParticipants(ctx)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	resolved := make(map[int64]core.Participant, len(participants))
	for _, p := range participants {
		resolved[p.ID] = p
	}

	ref, err := w.sheet.AppendExpense(ctx, expense, resolved)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "expense_id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "expense_id", id, "error", err)
		// Don't return an error here, the mirror write actually worked
	}

	slog.InfoContext(ctx, "Successfully synced expense",
		"expense_id", id,
		"sheets_ref", ref,
		"description", expense.Description,
		"amount_cents", expense.Amount.Cents)

	return nil
}
