package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"splitledger/internal/core"
)

type registerParticipantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type recordExpenseRequest struct {
	UserID       int64           `json:"user_id"`
	Description  string          `json:"description"`
	Amount       json.Number     `json:"amount"`
	SplitMethod  string          `json:"split_method"`
	SplitDetails json.RawMessage `json:"split_details"`
}

func parseParticipantRequest(r *http.Request) (registerParticipantRequest, error) {
	var req registerParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: malformed JSON body", core.ErrInvalidInput)
	}
	req.Name = sanitizeInput(req.Name)
	req.Email = sanitizeInput(req.Email)
	req.Phone = sanitizeInput(req.Phone)
	return req, nil
}

// parseExpenseRequest decodes the recording request into domain values.
// Amounts and percents arrive as JSON numbers or strings; both go through
// the decimal parsers so rounding rules are identical either way.
func parseExpenseRequest(r *http.Request) (payerID int64, description string, amount core.Money, raw core.RawSplit, err error) {
	var req recordExpenseRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = fmt.Errorf("%w: malformed JSON body", core.ErrInvalidInput)
		return
	}

	description = sanitizeInput(req.Description)

	if req.Amount.String() == "" {
		err = fmt.Errorf("%w: missing amount", core.ErrInvalidInput)
		return
	}
	cents, perr := core.ParseDecimalToCents(req.Amount.String())
	if perr != nil {
		err = perr
		return
	}
	amount = core.Money{Cents: cents}

	raw, err = parseSplitDetails(core.SplitMethod(req.SplitMethod), req.SplitDetails)
	if err != nil {
		return
	}

	payerID = req.UserID
	return
}

func parseSplitDetails(method core.SplitMethod, details json.RawMessage) (core.RawSplit, error) {
	raw := core.RawSplit{Method: method}

	if !method.Valid() {
		return raw, fmt.Errorf("%w: unknown split method %q", core.ErrInvalidInput, string(method))
	}
	if len(details) == 0 {
		return raw, fmt.Errorf("%w: missing split details", core.ErrInvalidInput)
	}

	switch method {
	case core.SplitEqual:
		if err := json.Unmarshal(details, &raw.Participants); err != nil {
			return raw, fmt.Errorf("%w: Equal split details must be a list of participant ids", core.ErrInvalidInput)
		}

	case core.SplitExact:
		entries, err := decodeNumberMap(details)
		if err != nil {
			return raw, fmt.Errorf("%w: Exact split details must map participant id to amount", core.ErrInvalidInput)
		}
		raw.Amounts = make(map[int64]core.Money, len(entries))
		for id, value := range entries {
			cents, perr := core.ParseShareToCents(value.String())
			if perr != nil {
				return raw, perr
			}
			raw.Amounts[id] = core.Money{Cents: cents}
		}

	case core.SplitPercentage:
		entries, err := decodeNumberMap(details)
		if err != nil {
			return raw, fmt.Errorf("%w: Percentage split details must map participant id to percentage", core.ErrInvalidInput)
		}
		raw.Percents = make(map[int64]int64, len(entries))
		for id, value := range entries {
			bp, perr := core.ParsePercentToBasisPoints(value.String())
			if perr != nil {
				return raw, perr
			}
			raw.Percents[id] = bp
		}
	}

	return raw, nil
}

func decodeNumberMap(details json.RawMessage) (map[int64]json.Number, error) {
	var byKey map[string]json.Number
	if err := json.Unmarshal(details, &byKey); err != nil {
		return nil, err
	}

	out := make(map[int64]json.Number, len(byKey))
	for key, value := range byKey {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("participant id %q: %w", key, err)
		}
		out[id] = value
	}
	return out, nil
}

func parsePathID(r *http.Request, name string) (int64, error) {
	value := r.PathValue(name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrInvalidInput, name, value)
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
