package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"splitledger/internal/balance"
	"splitledger/internal/core"
	applog "splitledger/internal/log"
)

type participantResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at,omitempty"`
}

type shareResponse struct {
	ParticipantID int64  `json:"participant_id"`
	Amount        string `json:"amount"`
	Percent       string `json:"percent,omitempty"`
}

type expenseResponse struct {
	ID          int64           `json:"id"`
	PayerID     int64           `json:"payer_id"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	SplitMethod string          `json:"split_method"`
	Shares      []shareResponse `json:"shares"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type balanceEntryResponse struct {
	ParticipantID int64  `json:"participant_id"`
	Net           string `json:"net"`
}

type settlementResponse struct {
	FromID int64  `json:"from_id"`
	ToID   int64  `json:"to_id"`
	Amount string `json:"amount"`
}

type balancesResponse struct {
	Balances    []balanceEntryResponse `json:"balances"`
	Settlements []settlementResponse   `json:"settlements"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toParticipantResponse(p core.Participant) participantResponse {
	resp := participantResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toExpenseResponse(e core.Expense) expenseResponse {
	shares := make([]shareResponse, 0, len(e.Split))
	for _, share := range e.Split {
		sr := shareResponse{
			ParticipantID: share.ParticipantID,
			Amount:        share.Amount.FormatDecimal(),
		}
		if e.Method == core.SplitPercentage {
			sr.Percent = core.FormatBasisPoints(share.PercentBP)
		}
		shares = append(shares, sr)
	}

	resp := expenseResponse{
		ID:          e.ID,
		PayerID:     e.PayerID,
		Description: e.Description,
		Amount:      e.Amount.FormatDecimal(),
		SplitMethod: string(e.Method),
		Shares:      shares,
	}
	if !e.CreatedAt.IsZero() {
		resp.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toExpenseResponses(expenses []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

func toBalancesResponse(entries []core.BalanceEntry, transfers []balance.Transfer) balancesResponse {
	resp := balancesResponse{
		Balances:    make([]balanceEntryResponse, 0, len(entries)),
		Settlements: make([]settlementResponse, 0, len(transfers)),
	}
	for _, entry := range entries {
		resp.Balances = append(resp.Balances, balanceEntryResponse{
			ParticipantID: entry.ParticipantID,
			Net:           entry.Net.FormatDecimal(),
		})
	}
	for _, tr := range transfers {
		resp.Settlements = append(resp.Settlements, settlementResponse{
			FromID: tr.FromID,
			ToID:   tr.ToID,
			Amount: tr.Amount.FormatDecimal(),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes: bad input and
// reconciliation failures are 400, missing records 404, everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrDuplicateParticipant),
		errors.Is(err, core.ErrSplitMismatch):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, core.ErrParticipantNotFound),
		errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Unhandled error",
			applog.FieldError, err.Error(), applog.FieldPath, r.URL.Path)
	}

	writeJSON(w, status, errorResponse{Error: message})
}
