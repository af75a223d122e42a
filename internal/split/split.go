// Package split validates raw split specifications and normalizes them into
// currency-exact per-participant shares.
//
// The package is pure: it has no storage or clock dependencies, which keeps
// every strategy independently testable. Callers supply the set of known
// participant ids; the registry itself is not consulted here.
package split

import (
	"fmt"
	"math"
	"sort"

	"splitledger/internal/core"
)

// Normalize turns a raw split specification into a normalized split whose
// shares are non-negative and sum exactly to total.
//
// Rounding never creates or destroys money: integer-cent division leaves a
// remainder smaller than the participant count, and that remainder is handed
// out one cent at a time in ascending participant-id order. The order is
// arbitrary but deterministic, so repeated normalization of the same spec
// yields the same shares.
func Normalize(total core.Money, raw core.RawSplit, known map[int64]struct{}) (core.NormalizedSplit, error) {
	if err := total.Validate(); err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if err := checkParticipants(raw, known); err != nil {
		return nil, err
	}

	switch raw.Method {
	case core.SplitEqual:
		return normalizeEqual(total, raw.Participants), nil
	case core.SplitExact:
		return normalizeExact(total, raw.Amounts)
	case core.SplitPercentage:
		return normalizePercentage(total, raw.Percents)
	}
	return nil, fmt.Errorf("%w: unknown split method %q", core.ErrInvalidInput, string(raw.Method))
}

// checkParticipants rejects unknown and duplicated participant references.
// Map-backed specs cannot carry duplicates, so the duplicate check only
// bites for the Equal participant list.
func checkParticipants(raw core.RawSplit, known map[int64]struct{}) error {
	seen := make(map[int64]struct{}, raw.Size())
	for _, id := range raw.ParticipantIDs() {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: participant %d", core.ErrParticipantNotFound, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: participant %d listed twice", core.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func normalizeEqual(total core.Money, participants []int64) core.NormalizedSplit {
	ids := make([]int64, len(participants))
	copy(ids, participants)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	n := int64(len(ids))
	base := total.Cents / n
	remainder := total.Cents % n

	shares := make(core.NormalizedSplit, 0, n)
	for i, id := range ids {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		shares = append(shares, core.Share{ParticipantID: id, Amount: core.Money{Cents: amount}})
	}
	return shares
}

func normalizeExact(total core.Money, amounts map[int64]core.Money) (core.NormalizedSplit, error) {
	var sum int64
	for id, amt := range amounts {
		if amt.Cents < 0 {
			return nil, fmt.Errorf("%w: negative amount for participant %d", core.ErrInvalidInput, id)
		}
		sum += amt.Cents
	}
	if sum != total.Cents {
		return nil, fmt.Errorf("%w: amounts sum to %d cents, total is %d cents",
			core.ErrSplitMismatch, sum, total.Cents)
	}

	shares := make(core.NormalizedSplit, 0, len(amounts))
	for id, amt := range amounts {
		shares = append(shares, core.Share{ParticipantID: id, Amount: amt})
	}
	sortShares(shares)
	return shares, nil
}

func normalizePercentage(total core.Money, percents map[int64]int64) (core.NormalizedSplit, error) {
	var sum int64
	for id, bp := range percents {
		if bp < 0 {
			return nil, fmt.Errorf("%w: negative percentage for participant %d", core.ErrInvalidInput, id)
		}
		sum += bp
	}
	if sum != core.BasisPointsPerWhole {
		return nil, fmt.Errorf("%w: percentages sum to %s%%, must be exactly 100",
			core.ErrSplitMismatch, core.FormatBasisPoints(sum))
	}

	// The per-share product total*bp must stay inside int64 or the sum
	// guarantee silently breaks.
	if total.Cents > math.MaxInt64/core.BasisPointsPerWhole {
		return nil, fmt.Errorf("%w: amount too large for a percentage split", core.ErrInvalidAmount)
	}

	// Floor each share, then distribute the leftover cents in ascending
	// participant-id order. Each flooring drops less than one cent, so the
	// leftover is strictly smaller than the participant count.
	shares := make(core.NormalizedSplit, 0, len(percents))
	var assigned int64
	for id, bp := range percents {
		cents := total.Cents * bp / core.BasisPointsPerWhole
		assigned += cents
		shares = append(shares, core.Share{
			ParticipantID: id,
			Amount:        core.Money{Cents: cents},
			PercentBP:     bp,
		})
	}
	sortShares(shares)

	remainder := total.Cents - assigned
	for i := range shares {
		if remainder == 0 {
			break
		}
		shares[i].Amount.Cents++
		remainder--
	}
	return shares, nil
}

func sortShares(s core.NormalizedSplit) {
	sort.Slice(s, func(i, j int) bool { return s[i].ParticipantID < s[j].ParticipantID })
}
