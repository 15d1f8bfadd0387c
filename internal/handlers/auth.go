package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"battlefield/internal/auth"
	"battlefield/internal/middleware"
	"battlefield/internal/store"
	"battlefield/internal/validator"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates the account, its wallet, and the signup bonus in one
// transaction. The first account on a fresh install becomes superadmin.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.ValidateUsername(req.Username); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	userID := uuid.NewString()
	firstUser := false
	err = h.tx.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		hasUsers, err := h.users.HasAnyUser(r.Context(), tx)
		if err != nil {
			return err
		}
		firstUser = !hasUsers
		if err := h.users.Create(r.Context(), tx, userID, req.Username, req.Email, hash); err != nil {
			return err
		}
		if err := h.wallets.Create(r.Context(), tx, userID, h.cfg.SignupBonus, 0); err != nil {
			return err
		}
		if h.cfg.SignupBonus > 0 {
			if err := h.ledger.Append(r.Context(), tx, store.LedgerEntryInput{
				ID:        uuid.NewString(),
				UserID:    userID,
				Kind:      store.KindBonus,
				Amount:    h.cfg.SignupBonus,
				Status:    store.EntryCompleted,
				Notes:     "signup bonus",
				CreatedBy: userID,
			}); err != nil {
				return err
			}
		}
		if firstUser {
			if err := h.roles.Grant(r.Context(), tx, userID, store.RoleSuperadmin, nil); err != nil {
				return err
			}
		}
		return h.audit.Log(r.Context(), tx, userID, "user.register", "user", userID,
			fmt.Sprintf(`{"username":%q,"first_user":%t}`, req.Username, firstUser))
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			respondMessage(w, http.StatusConflict, "username or email already taken")
			return
		}
		respondError(w, err)
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, err)
		return
	}
	log.WithFields(log.Fields{"user_id": userID, "first_user": firstUser}).Info("user registered")
	respondJSON(w, http.StatusCreated, map[string]any{
		"token":    token,
		"user_id":  userID,
		"username": req.Username,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Indistinguishable from a wrong password.
		respondMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(valueToString(user["password_hash"]), req.Password) {
		respondMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	userID := valueToString(user["id"])
	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"user_id":  userID,
		"username": valueToString(user["username"]),
	})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	role, err := h.roles.RoleOf(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       userID,
		"username": valueToString(user["username"]),
		"email":    valueToString(user["email"]),
		"role":     role,
	})
}
