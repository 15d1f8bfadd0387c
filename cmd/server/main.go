package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"battlefield/internal/config"
	"battlefield/internal/db"
	"battlefield/internal/events"
	"battlefield/internal/handlers"
	"battlefield/internal/rooms"
	"battlefield/internal/services"
	"battlefield/internal/store"
	ws "battlefield/internal/websocket"
)

func main() {
	cfg := config.Load()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer database.Close()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, using UTC", cfg.Timezone)
		location = time.UTC
	}

	publisher, err := events.Connect(cfg.NATSUrl, os.Getenv("NATS_TOKEN"))
	if err != nil {
		log.Fatalf("connect nats: %v", err)
	}
	defer publisher.Close()

	hub := ws.NewHub()
	txRunner := db.NewTxRunner(database)

	userStore := store.NewUserStore(database)
	walletStore := store.NewWalletStore(database)
	ledgerStore := store.NewLedgerStore(database)
	matchStore := store.NewMatchStore(database)
	entryStore := store.NewEntryStore(database)
	payoutStore := store.NewPayoutStore(database)
	roleStore := store.NewRoleStore(database)
	auditStore := store.NewAuditStore(database)

	walletSvc := services.NewWalletService(database, walletStore, ledgerStore)
	matchSvc := services.NewMatchService(
		txRunner, walletStore, ledgerStore, matchStore, entryStore, auditStore,
		rooms.NewProvider(cfg.RoomServiceURL), hub, publisher,
	)
	payoutSvc := services.NewPayoutService(
		txRunner, walletStore, ledgerStore, payoutStore, auditStore, hub, publisher,
		services.PayoutConfig{
			WindowStart:   cfg.WithdrawWindowStart,
			WindowEnd:     cfg.WithdrawWindowEnd,
			Location:      location,
			MinWithdrawal: cfg.MinWithdrawal,
			Risk: services.RiskConfig{
				LargeAmount: cfg.RiskLargeAmount,
				WeeklyLimit: cfg.RiskWeeklyLimit,
			},
		},
	)

	h := handlers.New(
		cfg, txRunner, database,
		userStore, walletStore, ledgerStore, roleStore, auditStore, payoutStore,
		walletSvc, matchSvc, payoutSvc,
		func(w http.ResponseWriter, r *http.Request, userID string) {
			ws.ServeWS(w, r, hub, userID)
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
