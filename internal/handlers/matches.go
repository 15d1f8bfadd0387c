package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"battlefield/internal/middleware"
	"battlefield/internal/store"
)

type matchView struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	MatchType    string  `json:"match_type"`
	EntryFee     int64   `json:"entry_fee"`
	TotalSlots   int     `json:"total_slots"`
	FilledSlots  int     `json:"filled_slots"`
	PrizePool    int64   `json:"prize_pool"`
	PrizeFirst   int64   `json:"prize_first"`
	PrizeSecond  int64   `json:"prize_second"`
	PrizeThird   int64   `json:"prize_third"`
	CoinsPerKill int64   `json:"coins_per_kill"`
	Status       string  `json:"status"`
	StartsAt     any     `json:"starts_at"`
	RoomID       *string `json:"room_id,omitempty"`
	RoomPassword *string `json:"room_password,omitempty"`
}

// toMatchView strips room credentials unless the caller is an entrant of an
// active match.
func toMatchView(match store.Match, showRoom bool) matchView {
	view := matchView{
		ID:           match.ID,
		Title:        match.Title,
		MatchType:    match.MatchType,
		EntryFee:     match.EntryFee,
		TotalSlots:   match.TotalSlots,
		FilledSlots:  match.FilledSlots,
		PrizePool:    match.PrizePool,
		PrizeFirst:   match.PrizeFirst,
		PrizeSecond:  match.PrizeSecond,
		PrizeThird:   match.PrizeThird,
		CoinsPerKill: match.CoinsPerKill,
		Status:       match.Status,
		StartsAt:     match.StartsAt,
	}
	if showRoom && match.Status == store.MatchActive {
		view.RoomID = match.RoomID
		view.RoomPassword = match.RoomPassword
	}
	return view
}

func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	matches, err := h.matchSvc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]matchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, toMatchView(m, false))
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": views})
}

func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	match, err := h.matchSvc.Get(r.Context(), matchID)
	if err != nil {
		respondError(w, err)
		return
	}
	showRoom := false
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		entrant, err := h.matchSvc.IsEntrant(r.Context(), h.db, matchID, userID)
		if err == nil && entrant {
			showRoom = true
		}
	}
	respondJSON(w, http.StatusOK, toMatchView(match, showRoom))
}

func (h *Handlers) JoinMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	entry, err := h.matchSvc.Join(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"entry_id":    entry.ID,
		"slot_number": entry.SlotNumber,
	})
}

type resultRequest struct {
	Kills     int `json:"kills"`
	Placement int `json:"placement"`
}

func (h *Handlers) SubmitResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req resultRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.matchSvc.SubmitResult(r.Context(), chi.URLParam(r, "id"), userID, req.Kills, req.Placement); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "submitted"})
}
