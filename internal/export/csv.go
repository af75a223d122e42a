// Package export renders the expense ledger for external consumers: a CSV
// balance sheet for download and rows for the spreadsheet mirror.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"splitledger/internal/core"
)

// reportHeader is the fixed column order of the balance sheet.
var reportHeader = []string{"User", "Email", "Description", "Amount", "Split Method", "Split Details"}

// WriteBalanceSheet renders the full ledger as CSV, one row per expense with
// the payer resolved to name and email. Expenses referencing a participant
// that cannot be resolved fail with ErrNotFound rather than producing a
// partial report.
func WriteBalanceSheet(w io.Writer, expenses []core.Expense, participants []core.Participant) error {
	names := make(map[int64]core.Participant, len(participants))
	for _, p := range participants {
		names[p.ID] = p
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range expenses {
		row, err := BalanceSheetRow(e, names)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write expense %d: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// BalanceSheetRow renders one expense as a balance sheet row.
func BalanceSheetRow(e core.Expense, participants map[int64]core.Participant) ([]string, error) {
	payer, ok := participants[e.PayerID]
	if !ok {
		return nil, fmt.Errorf("%w: payer %d of expense %d", core.ErrNotFound, e.PayerID, e.ID)
	}

	details, err := SplitDetails(e, participants)
	if err != nil {
		return nil, err
	}

	return []string{
		payer.Name,
		payer.Email,
		e.Description,
		e.Amount.FormatDecimal(),
		string(e.Method),
		details,
	}, nil
}

// SplitDetails renders the normalized split as a human-readable summary,
// one "name=amount" pair per share. Percentage splits carry the requested
// percentage alongside the derived amount.
func SplitDetails(e core.Expense, participants map[int64]core.Participant) (string, error) {
	parts := make([]string, 0, len(e.Split))
	for _, share := range e.Split {
		p, ok := participants[share.ParticipantID]
		if !ok {
			return "", fmt.Errorf("%w: participant %d of expense %d", core.ErrNotFound, share.ParticipantID, e.ID)
		}
		if e.Method == core.SplitPercentage {
			parts = append(parts, fmt.Sprintf("%s=%s%%=%s",
				p.Name, core.FormatBasisPoints(share.PercentBP), share.Amount.FormatDecimal()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", p.Name, share.Amount.FormatDecimal()))
	}
	return strings.Join(parts, "; "), nil
}
