package split

import (
	"errors"
	"math"
	"testing"

	"splitledger/internal/core"
)

func knownSet(ids ...int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		total       int64
		raw         core.RawSplit
		known       map[int64]struct{}
		wantErr     error
		wantShares  map[int64]int64
	}{
		{
			name:  "equal split divides evenly",
			total: 300,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 2, 3}},
			known: knownSet(1, 2, 3),
			wantShares: map[int64]int64{1: 100, 2: 100, 3: 100},
		},
		{
			name:  "equal split distributes remainder to lowest ids",
			total: 100,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{3, 1, 2}},
			known: knownSet(1, 2, 3),
			wantShares: map[int64]int64{1: 34, 2: 33, 3: 33},
		},
		{
			name:  "equal split single participant",
			total: 250,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{7}},
			known: knownSet(7),
			wantShares: map[int64]int64{7: 250},
		},
		{
			name:  "equal split rejects duplicate participant",
			total: 100,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 1}},
			known: knownSet(1),
			wantErr: core.ErrInvalidInput,
		},
		{
			name:  "unknown participant",
			total: 100,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{1, 99}},
			known: knownSet(1),
			wantErr: core.ErrParticipantNotFound,
		},
		{
			name:    "empty spec",
			total:   100,
			raw:     core.RawSplit{Method: core.SplitEqual},
			known:   knownSet(1),
			wantErr: core.ErrInvalidInput,
		},
		{
			name:  "exact split matching total",
			total: 100,
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 60}, 2: {Cents: 40},
			}},
			known: knownSet(1, 2),
			wantShares: map[int64]int64{1: 60, 2: 40},
		},
		{
			name:  "exact split allows zero share",
			total: 100,
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 100}, 2: {Cents: 0},
			}},
			known: knownSet(1, 2),
			wantShares: map[int64]int64{1: 100, 2: 0},
		},
		{
			name:  "exact split under total fails",
			total: 100,
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 60}, 2: {Cents: 39},
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrSplitMismatch,
		},
		{
			name:  "exact split one cent over fails",
			total: 100,
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 60}, 2: {Cents: 41},
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrSplitMismatch,
		},
		{
			name:  "exact split negative amount fails",
			total: 100,
			raw: core.RawSplit{Method: core.SplitExact, Amounts: map[int64]core.Money{
				1: {Cents: 150}, 2: {Cents: -50},
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrInvalidInput,
		},
		{
			name:  "percentage fifty fifty",
			total: 10000,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 5000, 2: 5000,
			}},
			known: knownSet(1, 2),
			wantShares: map[int64]int64{1: 5000, 2: 5000},
		},
		{
			name:  "percentage thirds reconstruct total exactly",
			total: 10000,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 3333, 2: 3333, 3: 3334,
			}},
			known: knownSet(1, 2, 3),
			// floors: 3333 + 3333 + 3334 = 10000, no remainder
			wantShares: map[int64]int64{1: 3333, 2: 3333, 3: 3334},
		},
		{
			name:  "percentage remainder goes to lowest ids",
			total: 101,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 3333, 2: 3333, 3: 3334,
			}},
			known: knownSet(1, 2, 3),
			// floors: 33 + 33 + 33 = 99, remainder 2 -> participants 1 and 2
			wantShares: map[int64]int64{1: 34, 2: 34, 3: 33},
		},
		{
			name:  "percentage sum above 100 fails",
			total: 100,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 6000, 2: 5000,
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrSplitMismatch,
		},
		{
			name:  "percentage sum below 100 fails",
			total: 100,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 4000, 2: 5000,
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrSplitMismatch,
		},
		{
			// total*basis points must not wrap around int64
			name:  "percentage rejects total that would overflow",
			total: math.MaxInt64/core.BasisPointsPerWhole + 1,
			raw: core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
				1: 5000, 2: 5000,
			}},
			known:   knownSet(1, 2),
			wantErr: core.ErrInvalidAmount,
		},
		{
			// the same total is fine when no multiplication is involved
			name:  "equal split accepts very large total",
			total: math.MaxInt64/core.BasisPointsPerWhole + 1,
			raw:   core.RawSplit{Method: core.SplitEqual, Participants: []int64{1}},
			known: knownSet(1),
			wantShares: map[int64]int64{1: math.MaxInt64/core.BasisPointsPerWhole + 1},
		},
		{
			name:    "unknown method",
			total:   100,
			raw:     core.RawSplit{Method: "Weighted", Participants: []int64{1}},
			known:   knownSet(1),
			wantErr: core.ErrInvalidInput,
		},
		{
			name:    "non-positive total",
			total:   0,
			raw:     core.RawSplit{Method: core.SplitEqual, Participants: []int64{1}},
			known:   knownSet(1),
			wantErr: core.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Normalize(core.Money{Cents: tt.total}, tt.raw, tt.known)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := shares.Total().Cents; got != tt.total {
				t.Fatalf("shares sum to %d, want %d", got, tt.total)
			}
			if len(shares) != len(tt.wantShares) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.wantShares))
			}
			for _, sh := range shares {
				want, ok := tt.wantShares[sh.ParticipantID]
				if !ok {
					t.Fatalf("unexpected participant %d in shares", sh.ParticipantID)
				}
				if sh.Amount.Cents != want {
					t.Errorf("participant %d share = %d, want %d", sh.ParticipantID, sh.Amount.Cents, want)
				}
			}
			// Output ordering is part of the contract.
			for i := 1; i < len(shares); i++ {
				if shares[i-1].ParticipantID >= shares[i].ParticipantID {
					t.Fatalf("shares not in ascending participant order: %v", shares)
				}
			}
		})
	}
}

// Equal shares may differ from the ideal per-head amount by at most one cent,
// whatever the total and group size.
func TestNormalizeEqualShareBound(t *testing.T) {
	known := knownSet(1, 2, 3, 4, 5, 6, 7)
	participants := []int64{1, 2, 3, 4, 5, 6, 7}

	for _, total := range []int64{1, 7, 100, 999, 12345, 1000003} {
		raw := core.RawSplit{Method: core.SplitEqual, Participants: participants}
		shares, err := Normalize(core.Money{Cents: total}, raw, known)
		if err != nil {
			t.Fatalf("total %d: %v", total, err)
		}
		if shares.Total().Cents != total {
			t.Fatalf("total %d: shares sum to %d", total, shares.Total().Cents)
		}
		base := total / int64(len(participants))
		for _, sh := range shares {
			if sh.Amount.Cents != base && sh.Amount.Cents != base+1 {
				t.Fatalf("total %d: share %d deviates more than one cent from %d",
					total, sh.Amount.Cents, base)
			}
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := core.RawSplit{Method: core.SplitPercentage, Percents: map[int64]int64{
		5: 2500, 2: 2500, 9: 2500, 1: 2500,
	}}
	known := knownSet(1, 2, 5, 9)

	first, err := Normalize(core.Money{Cents: 1001}, raw, known)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Normalize(core.Money{Cents: 1001}, raw, known)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("share count changed between runs")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: share %d changed: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}
