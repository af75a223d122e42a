package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"reflect"
	"testing"

	"splitledger/internal/core"
)

func testParticipants() []core.Participant {
	return []core.Participant{
		{ID: 1, Name: "Alice", Email: "alice@example.com", Phone: "+10000000001"},
		{ID: 2, Name: "Bob", Email: "bob@example.com", Phone: "+10000000002"},
		{ID: 3, Name: "Carol", Email: "carol@example.com", Phone: "+10000000003"},
	}
}

func TestWriteBalanceSheet(t *testing.T) {
	expenses := []core.Expense{
		{
			ID:          1,
			PayerID:     1,
			Description: "Dinner",
			Amount:      core.Money{Cents: 30000},
			Method:      core.SplitEqual,
			Split: core.NormalizedSplit{
				{ParticipantID: 1, Amount: core.Money{Cents: 10000}},
				{ParticipantID: 2, Amount: core.Money{Cents: 10000}},
				{ParticipantID: 3, Amount: core.Money{Cents: 10000}},
			},
		},
		{
			ID:          2,
			PayerID:     2,
			Description: "Taxi",
			Amount:      core.Money{Cents: 5000},
			Method:      core.SplitPercentage,
			Split: core.NormalizedSplit{
				{ParticipantID: 1, Amount: core.Money{Cents: 2500}, PercentBP: 5000},
				{ParticipantID: 2, Amount: core.Money{Cents: 2500}, PercentBP: 5000},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteBalanceSheet(&buf, expenses, testParticipants()); err != nil {
		t.Fatalf("WriteBalanceSheet() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}

	want := [][]string{
		{"User", "Email", "Description", "Amount", "Split Method", "Split Details"},
		{"Alice", "alice@example.com", "Dinner", "300.00", "Equal", "Alice=100.00; Bob=100.00; Carol=100.00"},
		{"Bob", "bob@example.com", "Taxi", "50.00", "Percentage", "Alice=50%=25.00; Bob=50%=25.00"},
	}

	if !reflect.DeepEqual(records, want) {
		t.Errorf("WriteBalanceSheet() output = %v, want %v", records, want)
	}
}

func TestWriteBalanceSheet_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBalanceSheet(&buf, nil, testParticipants()); err != nil {
		t.Fatalf("WriteBalanceSheet() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("WriteBalanceSheet() on empty ledger wrote %d rows, want header only", len(records))
	}
}

func TestWriteBalanceSheet_UnresolvablePayer(t *testing.T) {
	expenses := []core.Expense{
		{
			ID:          1,
			PayerID:     42,
			Description: "Dinner",
			Amount:      core.Money{Cents: 100},
			Method:      core.SplitEqual,
			Split: core.NormalizedSplit{
				{ParticipantID: 1, Amount: core.Money{Cents: 100}},
			},
		},
	}

	var buf bytes.Buffer
	err := WriteBalanceSheet(&buf, expenses, testParticipants())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("WriteBalanceSheet() error = %v, want ErrNotFound", err)
	}
}

func TestWriteBalanceSheet_FieldsWithCommasAreQuoted(t *testing.T) {
	expenses := []core.Expense{
		{
			ID:          1,
			PayerID:     1,
			Description: "Dinner, drinks and dessert",
			Amount:      core.Money{Cents: 100},
			Method:      core.SplitEqual,
			Split: core.NormalizedSplit{
				{ParticipantID: 1, Amount: core.Money{Cents: 100}},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteBalanceSheet(&buf, expenses, testParticipants()); err != nil {
		t.Fatalf("WriteBalanceSheet() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if records[1][2] != "Dinner, drinks and dessert" {
		t.Errorf("description round-trip = %q, want %q", records[1][2], "Dinner, drinks and dessert")
	}
}
