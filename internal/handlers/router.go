package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"battlefield/internal/middleware"
	"battlefield/internal/store"
)

// Router assembles the full HTTP surface.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(20, time.Minute))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Authenticate(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(h.cfg.JWTSecret))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Get("/entries", h.GetWalletEntries)
			r.Get("/self-check", h.WalletSelfCheck)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.ListMatches)
			r.Get("/{id}", h.GetMatch)
			r.Post("/{id}/join", h.JoinMatch)
			r.Post("/{id}/result", h.SubmitResult)
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", h.ListMyPayouts)
			r.Post("/withdrawals", h.RequestWithdrawal)
			r.Post("/topups", h.RequestTopup)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(h.roles, store.RoleAdmin))

			r.Post("/matches", h.AdminCreateMatch)
			r.Post("/matches/{id}/activate", h.AdminActivateMatch)
			r.Post("/matches/{id}/cancel", h.AdminCancelMatch)
			r.Post("/matches/{id}/settle", h.AdminSettleMatch)
			r.Get("/matches/{id}/entries", h.AdminListEntrants)
			r.Post("/matches/{id}/entries/{entryID}/verify", h.AdminVerifyResult)

			r.Get("/payouts", h.AdminListPayouts)
			r.Post("/payouts/{id}/approve", h.AdminApprovePayout)
			r.Post("/payouts/{id}/reject", h.AdminRejectPayout)

			r.Get("/audit-logs", h.AdminListAuditLogs)
			r.Get("/reconcile", h.AdminReconcile)

			r.With(middleware.RequireRole(h.roles, store.RoleSuperadmin)).
				Post("/roles", h.AdminGrantRole)
		})
	})

	// Token arrives via query parameter; the JWT middleware does not apply.
	r.Get("/ws/updates", h.WSUpdates)

	return r
}
