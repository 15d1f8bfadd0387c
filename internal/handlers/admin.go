package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"battlefield/internal/middleware"
	"battlefield/internal/money"
	"battlefield/internal/services"
	"battlefield/internal/store"
)

type createMatchRequest struct {
	Title        string `json:"title"`
	MatchType    string `json:"match_type"`
	EntryFee     int64  `json:"entry_fee"`
	TotalSlots   int    `json:"total_slots"`
	PrizePool    int64  `json:"prize_pool"`
	PrizeFirst   int64  `json:"prize_first"`
	PrizeSecond  int64  `json:"prize_second"`
	PrizeThird   int64  `json:"prize_third"`
	CoinsPerKill int64  `json:"coins_per_kill"`
	StartsAt     string `json:"starts_at"`
}

func (h *Handlers) AdminCreateMatch(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req createMatchRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "starts_at must be RFC 3339")
		return
	}
	match, err := h.matchSvc.Create(r.Context(), adminID, store.MatchInput{
		Title:        req.Title,
		MatchType:    req.MatchType,
		EntryFee:     req.EntryFee,
		TotalSlots:   req.TotalSlots,
		PrizePool:    req.PrizePool,
		PrizeFirst:   req.PrizeFirst,
		PrizeSecond:  req.PrizeSecond,
		PrizeThird:   req.PrizeThird,
		CoinsPerKill: req.CoinsPerKill,
		StartsAt:     startsAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMatchView(match, true))
}

func (h *Handlers) AdminActivateMatch(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.matchSvc.Activate(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.MatchActive})
}

func (h *Handlers) AdminCancelMatch(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.matchSvc.Cancel(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.MatchCancelled})
}

type settleRequest struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

func (h *Handlers) AdminSettleMatch(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	placements := services.Placements{}
	if req.First != "" {
		placements[1] = req.First
	}
	if req.Second != "" {
		placements[2] = req.Second
	}
	if req.Third != "" {
		placements[3] = req.Third
	}
	if err := h.matchSvc.Settle(r.Context(), chi.URLParam(r, "id"), adminID, placements); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.MatchCompleted})
}

func (h *Handlers) AdminListEntrants(w http.ResponseWriter, r *http.Request) {
	entrants, err := h.matchSvc.Entrants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entrants})
}

func (h *Handlers) AdminVerifyResult(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	matchID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryID")
	if err := h.matchSvc.VerifyResult(r.Context(), matchID, entryID, adminID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.ResultVerified})
}

func (h *Handlers) AdminListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	requests, err := h.payouts.ListAll(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	rate, rateErr := money.ParseRate(h.cfg.CoinRupeeRate)
	views := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		view := map[string]any{"request": toPayoutView(request, true)}
		if rateErr == nil {
			view["rupee_value"] = money.FormatRupees(money.CoinsToRupees(request.Amount, rate))
		}
		views = append(views, view)
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": views})
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) AdminApprovePayout(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.payoutSvc.Approve(r.Context(), chi.URLParam(r, "id"), adminID, req.Note); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.RequestApproved})
}

func (h *Handlers) AdminRejectPayout(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.payoutSvc.Reject(r.Context(), chi.URLParam(r, "id"), adminID, req.Note); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": store.RequestRejected})
}

type grantRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AdminGrantRole changes a user's role. Routed behind the superadmin gate.
func (h *Handlers) AdminGrantRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req grantRoleRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !store.ValidRole(req.Role) {
		respondMessage(w, http.StatusBadRequest, "unknown role")
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		respondError(w, err)
		return
	}
	err := h.tx.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.roles.Grant(r.Context(), tx, req.UserID, req.Role, &actorID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, actorID, "role.grant", "user", req.UserID,
			fmt.Sprintf(`{"role":%q}`, req.Role))
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "role": req.Role})
}

func (h *Handlers) AdminListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// AdminReconcile replays every wallet against its ledger and reports drift.
func (h *Handlers) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.wallets.ListAllWithUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	type row struct {
		UserID    string `json:"user_id"`
		Username  string `json:"username"`
		Stored    int64  `json:"stored"`
		Projected int64  `json:"projected"`
	}
	var drifted []row
	for _, wallet := range wallets {
		projected, err := h.ledger.SpendableSum(r.Context(), h.db, wallet.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		if projected != wallet.Balance {
			username := ""
			if wallet.Username != nil {
				username = *wallet.Username
			}
			drifted = append(drifted, row{
				UserID:    wallet.UserID,
				Username:  username,
				Stored:    wallet.Balance,
				Projected: projected,
			})
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"checked":    len(wallets),
		"drifted":    len(drifted),
		"mismatches": drifted,
	})
}
