package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"splitledger/internal/core"
)

// fakeStore is an in-memory stand-in for the SQLite repository.
type fakeStore struct {
	participants []core.Participant
	expenses     []core.Expense

	createExpenseErr error
	listExpenseCalls int
}

func (f *fakeStore) CreateParticipant(_ context.Context, p core.Participant) (core.Participant, error) {
	for _, existing := range f.participants {
		if existing.Email == p.Email {
			return core.Participant{}, core.ErrDuplicateParticipant
		}
	}
	p.ID = int64(len(f.participants) + 1)
	f.participants = append(f.participants, p)
	return p, nil
}

func (f *fakeStore) GetParticipant(_ context.Context, id int64) (core.Participant, error) {
	for _, p := range f.participants {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Participant{}, core.ErrNotFound
}

func (f *fakeStore) ListParticipants(_ context.Context) ([]core.Participant, error) {
	return f.participants, nil
}

func (f *fakeStore) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if f.createExpenseErr != nil {
		return core.Expense{}, f.createExpenseErr
	}
	e.ID = int64(len(f.expenses) + 1)
	f.expenses = append(f.expenses, e)
	return e, nil
}

func (f *fakeStore) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	for _, e := range f.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (f *fakeStore) ListExpenses(_ context.Context) ([]core.Expense, error) {
	f.listExpenseCalls++
	return f.expenses, nil
}

func (f *fakeStore) ListExpensesForParticipant(_ context.Context, participantID int64) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		if e.PayerID == participantID {
			out = append(out, e)
			continue
		}
		if _, ok := e.Split.ShareFor(participantID); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakePublisher records published expense ids.
type fakePublisher struct {
	published []int64
	err       error
}

func (f *fakePublisher) PublishExpenseSync(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func seedParticipants(t *testing.T, store *fakeStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := store.CreateParticipant(context.Background(), core.Participant{
			Name:  fmt.Sprintf("Person %d", i),
			Email: fmt.Sprintf("person%d@example.com", i),
			Phone: fmt.Sprintf("+100000000%d", i),
		})
		if err != nil {
			t.Fatalf("seed participant %d: %v", i, err)
		}
	}
}

func TestParticipantService_Register(t *testing.T) {
	tests := []struct {
		name    string
		inName  string
		inEmail string
		inPhone string
		wantErr error
	}{
		{"valid", "Alice", "alice@example.com", "+10000000001", nil},
		{"empty name", "  ", "alice@example.com", "+10000000001", core.ErrInvalidInput},
		{"empty email", "Alice", "", "+10000000001", core.ErrInvalidInput},
		{"malformed email", "Alice", "not-an-email", "+10000000001", core.ErrInvalidInput},
		{"empty phone", "Alice", "alice@example.com", " ", core.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewParticipantService(&fakeStore{})
			p, err := svc.Register(context.Background(), tt.inName, tt.inEmail, tt.inPhone)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && p.ID == 0 {
				t.Error("Register() returned zero id for valid input")
			}
		})
	}
}

func TestParticipantService_RegisterNormalizesEmail(t *testing.T) {
	svc := NewParticipantService(&fakeStore{})

	p, err := svc.Register(context.Background(), " Alice ", " Alice@Example.COM ", "+10000000001")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if p.Email != "alice@example.com" {
		t.Errorf("Register() email = %q, want %q", p.Email, "alice@example.com")
	}
	if p.Name != "Alice" {
		t.Errorf("Register() name = %q, want %q", p.Name, "Alice")
	}

	_, err = svc.Register(context.Background(), "Other Alice", "ALICE@example.com", "+10000000002")
	if !errors.Is(err, core.ErrDuplicateParticipant) {
		t.Errorf("Register() with case-variant duplicate email error = %v, want ErrDuplicateParticipant", err)
	}
}

func TestParticipantService_Lookup(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 1)
	svc := NewParticipantService(store)

	if _, err := svc.Lookup(context.Background(), 1); err != nil {
		t.Errorf("Lookup(1) error = %v, want nil", err)
	}
	if _, err := svc.Lookup(context.Background(), 99); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Lookup(99) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Lookup(context.Background(), 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Lookup(0) error = %v, want ErrInvalidInput", err)
	}
}

func TestExpenseService_Record(t *testing.T) {
	tests := []struct {
		name        string
		payerID     int64
		description string
		amount      core.Money
		raw         core.RawSplit
		wantErr     error
	}{
		{
			name:        "valid equal split",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 30000},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2, 3}},
			wantErr:     nil,
		},
		{
			name:        "missing payer",
			payerID:     0,
			description: "Dinner",
			amount:      core.Money{Cents: 30000},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}},
			wantErr:     core.ErrInvalidInput,
		},
		{
			name:        "empty description",
			payerID:     1,
			description: "   ",
			amount:      core.Money{Cents: 30000},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}},
			wantErr:     core.ErrInvalidInput,
		},
		{
			name:        "zero amount",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 0},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}},
			wantErr:     core.ErrInvalidAmount,
		},
		{
			name:        "unknown payer",
			payerID:     42,
			description: "Dinner",
			amount:      core.Money{Cents: 30000},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}},
			wantErr:     core.ErrParticipantNotFound,
		},
		{
			name:        "unknown split participant",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 30000},
			raw:         core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 42}},
			wantErr:     core.ErrParticipantNotFound,
		},
		{
			name:        "exact split mismatch",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 6000},
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 5000},
			}},
			wantErr: core.ErrSplitMismatch,
		},
		{
			name:        "percentage short of whole",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 10000},
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 5000, 2: 4000,
			}},
			wantErr: core.ErrSplitMismatch,
		},
		{
			name:        "unknown method",
			payerID:     1,
			description: "Dinner",
			amount:      core.Money{Cents: 10000},
			raw:         core.RawSplit{Method: "Random", Participants: []int64{1, 2}},
			wantErr:     core.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			seedParticipants(t, store, 3)
			svc := NewExpenseService(store, nil)

			e, err := svc.Record(context.Background(), tt.payerID, tt.description, tt.amount, tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Record() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(store.expenses) != 0 {
					t.Errorf("Record() with error persisted %d expenses, want 0", len(store.expenses))
				}
				return
			}
			if e.ID == 0 {
				t.Error("Record() returned zero expense id")
			}
			if e.Split.Total() != tt.amount {
				t.Errorf("Record() split total = %d, want %d", e.Split.Total().Cents, tt.amount.Cents)
			}
		})
	}
}

func TestExpenseService_RecordPublishesSync(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 2)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	e, err := svc.Record(context.Background(), 1, "Taxi", core.Money{Cents: 2000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(pub.published) != 1 || pub.published[0] != e.ID {
		t.Errorf("published ids = %v, want [%d]", pub.published, e.ID)
	}
}

func TestExpenseService_RecordSurvivesPublishFailure(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 2)
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, pub)

	e, err := svc.Record(context.Background(), 1, "Taxi", core.Money{Cents: 2000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}})
	if err != nil {
		t.Fatalf("Record() error = %v, want nil (publish failure must not fail the write)", err)
	}
	if e.ID == 0 {
		t.Error("Record() returned zero expense id")
	}
}

func TestExpenseService_ListFor(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 3)
	svc := NewExpenseService(store, nil)

	// Expense 1: payer 1, shared by 1 and 2. Expense 2: payer 2, shared by 2 and 3.
	if _, err := svc.Record(context.Background(), 1, "Groceries", core.Money{Cents: 4000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := svc.Record(context.Background(), 2, "Fuel", core.Money{Cents: 6000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{2, 3}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		participantID int64
		wantCount     int
	}{
		{1, 1}, // payer of expense 1
		{2, 2}, // share in 1, payer of 2
		{3, 1}, // share in 2
	}

	for _, tt := range tests {
		got, err := svc.ListFor(context.Background(), tt.participantID)
		if err != nil {
			t.Fatalf("ListFor(%d) error = %v", tt.participantID, err)
		}
		if len(got) != tt.wantCount {
			t.Errorf("ListFor(%d) returned %d expenses, want %d", tt.participantID, len(got), tt.wantCount)
		}
	}

	if _, err := svc.ListFor(context.Background(), 99); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ListFor(99) error = %v, want ErrNotFound", err)
	}
}

func TestBalanceService_Sheet(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 3)
	expenses := NewExpenseService(store, nil)
	balances := NewBalanceService(store)

	// Participant 1 fronts 300.00 split three ways.
	if _, err := expenses.Record(context.Background(), 1, "Hotel", core.Money{Cents: 30000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2, 3}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	sheet, err := balances.Sheet(context.Background())
	if err != nil {
		t.Fatalf("Sheet() error = %v", err)
	}

	want := map[int64]int64{1: 20000, 2: -10000, 3: -10000}
	if len(sheet) != len(want) {
		t.Fatalf("Sheet() returned %d entries, want %d", len(sheet), len(want))
	}
	var sum int64
	for _, entry := range sheet {
		if entry.Net.Cents != want[entry.ParticipantID] {
			t.Errorf("Sheet() participant %d net = %d, want %d",
				entry.ParticipantID, entry.Net.Cents, want[entry.ParticipantID])
		}
		sum += entry.Net.Cents
	}
	if sum != 0 {
		t.Errorf("Sheet() entries sum to %d cents, want 0", sum)
	}
}

func TestBalanceService_Report(t *testing.T) {
	store := &fakeStore{}
	seedParticipants(t, store, 3)
	expenses := NewExpenseService(store, nil)
	balances := NewBalanceService(store)

	if _, err := expenses.Record(context.Background(), 1, "Hotel", core.Money{Cents: 30000},
		core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2, 3}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	store.listExpenseCalls = 0
	entries, transfers, err := balances.Report(context.Background())
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	// Entries and transfers come from one ledger snapshot: a write landing
	// between two separate reads must not be able to skew the report.
	if store.listExpenseCalls != 1 {
		t.Errorf("Report() read the ledger %d times, want 1", store.listExpenseCalls)
	}

	// Applying the transfers must zero every balance in the same report.
	nets := make(map[int64]int64, len(entries))
	for _, e := range entries {
		nets[e.ParticipantID] = e.Net.Cents
	}
	for _, tr := range transfers {
		nets[tr.FromID] += tr.Amount.Cents
		nets[tr.ToID] -= tr.Amount.Cents
	}
	for id, net := range nets {
		if net != 0 {
			t.Errorf("participant %d net after settlements = %d, want 0", id, net)
		}
	}
}
