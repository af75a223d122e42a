package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"splitledger/internal/export"
)

const balanceCacheKey = "balances"

func (s *Server) handleRegisterParticipant(w http.ResponseWriter, r *http.Request) {
	req, err := parseParticipantRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.participants.Register(r.Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantResponse(p))
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.participants.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toParticipantResponse(p))
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	payerID, description, amount, raw, err := parseExpenseRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.expenses.Record(r.Context(), payerID, description, amount, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The ledger changed, cached reports are stale
	s.balanceCache.Flush()

	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponses(expenses))
}

func (s *Server) handleListExpensesForParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := s.expenses.ListFor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponses(expenses))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.balanceCache.Get(balanceCacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	entries, transfers, err := s.balances.Report(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := json.Marshal(toBalancesResponse(entries, transfers))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.balanceCache.Set(balanceCacheKey, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	participants, err := s.participants.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBalanceSheet(&buf, expenses, participants); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=balance_sheet.csv")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write balance sheet", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports operational counters alongside the health checks:
// request volume, rate limiting, suspicious-request detection and the
// state of the balance cache.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	limiterMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests": map[string]any{
			"total":                traceMetrics.TotalRequests,
			"avg_response_time_us": traceMetrics.AverageResponseTime,
		},
		"rate_limiter": map[string]any{
			"active_clients":   limiterMetrics.ActiveClients,
			"limited_requests": limiterMetrics.LimitedRequests,
		},
		"security": map[string]any{
			"suspicious_requests": securityMetrics.SuspiciousRequests,
			"invalid_ip_attempts": securityMetrics.InvalidIPAttempts,
		},
		"cache": map[string]any{
			"balance_entries": s.balanceCache.Size(),
		},
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Readiness means the ledger is reachable
	if _, err := s.participants.List(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
