package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SplitEqual      SplitMethod = "Equal"
	SplitExact      SplitMethod = "Exact"
	SplitPercentage SplitMethod = "Percentage"
)

// BasisPointsPerWhole is the basis-point representation of 100%.
// Percentages are carried as hundredths of a percent so the
// "must sum to exactly 100" rule is an integer comparison.
const BasisPointsPerWhole = 10000

type (
	SplitMethod string

	Money struct {
		Cents int64
	}

	// Participant is an identity record. Immutable once registered; email
	// uniqueness is enforced by the registry at registration time.
	Participant struct {
		ID        int64
		Name      string
		Email     string
		Phone     string
		CreatedAt time.Time
	}

	// RawSplit is the method-specific division request for one expense,
	// a tagged variant keyed by Method. Exactly one of the payload fields
	// is meaningful for a given method.
	RawSplit struct {
		Method       SplitMethod
		Participants []int64         // Equal: who shares the total
		Amounts      map[int64]Money // Exact: participant -> owed amount
		Percents     map[int64]int64 // Percentage: participant -> basis points
	}

	// Share is one participant's owed portion of an expense. PercentBP
	// carries the raw basis points for Percentage splits and is zero for
	// the other methods.
	Share struct {
		ParticipantID int64
		Amount        Money
		PercentBP     int64
	}

	// NormalizedSplit maps every referenced participant to a currency-exact
	// share. Ordered ascending by participant id; shares sum exactly to the
	// expense total.
	NormalizedSplit []Share

	// Expense is an append-only ledger record. The persisted split is the
	// normalized one, so the division is durable and unambiguous.
	Expense struct {
		ID          int64
		PayerID     int64
		Description string
		Amount      Money
		Method      SplitMethod
		Split       NormalizedSplit
		CreatedAt   time.Time
	}

	// BalanceEntry is a participant's signed net position: positive means
	// the group owes them, negative means they owe the group.
	BalanceEntry struct {
		ParticipantID int64
		Net           Money
	}
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrDuplicateParticipant = errors.New("participant already registered")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrSplitMismatch        = errors.New("split does not reconcile to total")
	ErrNotFound             = errors.New("not found")
)

func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("%w: empty email", ErrInvalidInput)
	}
	if !strings.Contains(p.Email, "@") {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Phone) == "" {
		return fmt.Errorf("%w: empty phone", ErrInvalidInput)
	}
	return nil
}

// Size returns the number of participants referenced by the raw spec.
func (r RawSplit) Size() int {
	switch r.Method {
	case SplitEqual:
		return len(r.Participants)
	case SplitExact:
		return len(r.Amounts)
	case SplitPercentage:
		return len(r.Percents)
	}
	return 0
}

// ParticipantIDs returns every participant referenced by the raw spec,
// in unspecified order and without deduplication.
func (r RawSplit) ParticipantIDs() []int64 {
	switch r.Method {
	case SplitEqual:
		ids := make([]int64, len(r.Participants))
		copy(ids, r.Participants)
		return ids
	case SplitExact:
		ids := make([]int64, 0, len(r.Amounts))
		for id := range r.Amounts {
			ids = append(ids, id)
		}
		return ids
	case SplitPercentage:
		ids := make([]int64, 0, len(r.Percents))
		for id := range r.Percents {
			ids = append(ids, id)
		}
		return ids
	}
	return nil
}

func (r RawSplit) Validate() error {
	if !r.Method.Valid() {
		return fmt.Errorf("%w: unknown split method %q", ErrInvalidInput, string(r.Method))
	}
	if r.Size() == 0 {
		return fmt.Errorf("%w: empty split specification", ErrInvalidInput)
	}
	return nil
}

// Total sums the shares. For a valid normalized split this equals the
// expense amount exactly.
func (s NormalizedSplit) Total() Money {
	var cents int64
	for _, sh := range s {
		cents += sh.Amount.Cents
	}
	return Money{Cents: cents}
}

// ShareFor returns the share owed by the given participant, or false when
// they are not part of the split.
func (s NormalizedSplit) ShareFor(participantID int64) (Money, bool) {
	for _, sh := range s {
		if sh.ParticipantID == participantID {
			return sh.Amount, true
		}
	}
	return Money{}, false
}

func (e Expense) Validate() error {
	if e.PayerID <= 0 {
		return fmt.Errorf("%w: missing payer", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidInput)
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidInput)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Method.Valid() {
		return fmt.Errorf("%w: unknown split method %q", ErrInvalidInput, string(e.Method))
	}
	if len(e.Split) == 0 {
		return fmt.Errorf("%w: empty split", ErrInvalidInput)
	}
	if e.Split.Total() != e.Amount {
		return fmt.Errorf("%w: shares sum to %d cents, expense total is %d cents",
			ErrSplitMismatch, e.Split.Total().Cents, e.Amount.Cents)
	}
	return nil
}
