package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"splitledger/internal/core"
	"splitledger/internal/log"
	"splitledger/internal/split"
)

// ExpenseStore is the storage surface the expense service needs.
type ExpenseStore interface {
	GetParticipant(ctx context.Context, id int64) (core.Participant, error)
	ListParticipants(ctx context.Context) ([]core.Participant, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListExpensesForParticipant(ctx context.Context, participantID int64) ([]core.Expense, error)
}

// SyncPublisher publishes sync notifications for newly recorded expenses.
type SyncPublisher interface {
	PublishExpenseSync(ctx context.Context, id int64) error
}

// ExpenseService orchestrates expense recording across validation, SQLite
// and AMQP
type ExpenseService struct {
	store     ExpenseStore
	publisher SyncPublisher
}

// NewExpenseService creates an expense service. The publisher may be nil
// when AMQP is not configured; recording then skips the sync notification.
func NewExpenseService(store ExpenseStore, publisher SyncPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
	}
}

// Record validates the expense, normalizes its split against the registered
// participants and appends it to the ledger. The write is local-first: the
// expense is durable once this returns, and the sync message is published
// best-effort afterwards.
func (s *ExpenseService) Record(ctx context.Context, payerID int64, description string, amount core.Money, raw core.RawSplit) (core.Expense, error) {
	description = strings.TrimSpace(description)

	if payerID <= 0 {
		return core.Expense{}, fmt.Errorf("%w: missing payer", core.ErrInvalidInput)
	}
	if description == "" {
		return core.Expense{}, fmt.Errorf("%w: empty description", core.ErrInvalidInput)
	}
	if err := amount.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := raw.Validate(); err != nil {
		return core.Expense{}, err
	}

	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load participants: %w", err)
	}

	known := make(map[int64]struct{}, len(participants))
	for _, p := range participants {
		known[p.ID] = struct{}{}
	}

	if _, ok := known[payerID]; !ok {
		return core.Expense{}, fmt.Errorf("%w: payer %d", core.ErrParticipantNotFound, payerID)
	}

	normalized, err := split.Normalize(amount, raw, known)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		PayerID:     payerID,
		Description: description,
		Amount:      amount,
		Method:      raw.Method,
		Split:       normalized,
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	fields := log.NewFields().
		WithComponent(log.ComponentExpense).
		WithOperation(log.OpCreate).
		WithExpense(created.ID, created.Description, created.Amount.Cents, string(created.Method))
	fields[log.FieldShareCount] = len(created.Split)
	slog.InfoContext(ctx, "Expense recorded", fields.ToSlice()...)

	// Publish async sync message (non-blocking for the caller's request)
	if err := s.publishSyncMessage(ctx, created.ID); err != nil {
		errFields := log.NewFields().WithComponent(log.ComponentAMQP).WithError(err)
		errFields[log.FieldExpenseID] = created.ID
		slog.ErrorContext(ctx, "Failed to publish sync message", errFields.ToSlice()...)
		// Don't fail the request, the expense is saved locally
	}

	return created, nil
}

// Get returns a single expense by id
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	if id <= 0 {
		return core.Expense{}, fmt.Errorf("%w: invalid expense id %d", core.ErrInvalidInput, id)
	}
	return s.store.GetExpense(ctx, id)
}

// ListAll returns the full ledger in insertion order
func (s *ExpenseService) ListAll(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx)
}

// ListFor returns the expenses involving a participant, either as payer or
// as a share holder, in insertion order. Unknown participants are an error
// rather than an empty list.
func (s *ExpenseService) ListFor(ctx context.Context, participantID int64) ([]core.Expense, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("%w: invalid participant id %d", core.ErrInvalidInput, participantID)
	}

	if _, err := s.store.GetParticipant(ctx, participantID); err != nil {
		return nil, fmt.Errorf("lookup participant %d: %w", participantID, err)
	}

	return s.store.ListExpensesForParticipant(ctx, participantID)
}

func (s *ExpenseService) publishSyncMessage(ctx context.Context, id int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return nil
	}

	return s.publisher.PublishExpenseSync(ctx, id)
}
