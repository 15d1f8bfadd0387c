package handlers

import (
	"net/http"

	"battlefield/internal/middleware"
	"battlefield/internal/store"
)

type withdrawalRequest struct {
	Amount int64  `json:"amount"`
	UpiID  string `json:"upi_id"`
}

type topupRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type payoutView struct {
	ID          string   `json:"id"`
	Direction   string   `json:"direction"`
	Amount      int64    `json:"amount"`
	UpiID       string   `json:"upi_id,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Status      string   `json:"status"`
	RequestedAt any      `json:"requested_at"`
	ProcessedAt any      `json:"processed_at,omitempty"`
	Note        string   `json:"note,omitempty"`
	RiskTags    []string `json:"risk_tags,omitempty"`
	RiskScore   int      `json:"risk_score,omitempty"`
}

func toPayoutView(request store.PayoutRequest, includeRisk bool) payoutView {
	view := payoutView{
		ID:          request.ID,
		Direction:   request.Direction,
		Amount:      request.Amount,
		UpiID:       request.UpiID,
		Reference:   request.Reference,
		Status:      request.Status,
		RequestedAt: request.RequestedAt,
		Note:        request.Note,
	}
	if request.ProcessedAt != nil {
		view.ProcessedAt = request.ProcessedAt
	}
	if includeRisk {
		view.RiskTags = request.RiskTags
		view.RiskScore = request.RiskScore
	}
	return view
}

func (h *Handlers) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req withdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	request, err := h.payoutSvc.RequestWithdrawal(r.Context(), userID, req.Amount, req.UpiID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPayoutView(request, false))
}

func (h *Handlers) RequestTopup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req topupRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	request, err := h.payoutSvc.RequestTopup(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPayoutView(request, false))
}

func (h *Handlers) ListMyPayouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, offset := pagination(r)
	requests, err := h.payoutSvc.ListMine(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]payoutView, 0, len(requests))
	for _, request := range requests {
		views = append(views, toPayoutView(request, false))
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": views})
}
