package handlers

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"

	"battlefield/internal/config"
	"battlefield/internal/services"
	"battlefield/internal/store"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type userStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID string) (map[string]any, error)
	HasAnyUser(ctx context.Context, q store.Getter) (bool, error)
}

type walletStore interface {
	Create(ctx context.Context, tx store.Execer, userID string, balance, withdrawable int64) error
	ListAllWithUsers(ctx context.Context) ([]store.WalletWithUser, error)
}

type ledgerStore interface {
	Append(ctx context.Context, tx store.Execer, input store.LedgerEntryInput) error
	SpendableSum(ctx context.Context, q store.Getter, userID string) (int64, error)
}

type roleStore interface {
	RoleOf(ctx context.Context, userID string) (string, error)
	Grant(ctx context.Context, tx store.Execer, userID, role string, grantedBy *string) error
}

type auditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type payoutAdminStore interface {
	ListAll(ctx context.Context, status string, limit, offset int) ([]store.PayoutRequest, error)
	GetByID(ctx context.Context, requestID string) (store.PayoutRequest, error)
}

type walletService interface {
	Balance(ctx context.Context, userID string) (services.Balance, error)
	Entries(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error)
	SelfCheck(ctx context.Context, userID string) (services.SelfCheck, error)
}

type matchService interface {
	Create(ctx context.Context, adminID string, input store.MatchInput) (store.Match, error)
	Get(ctx context.Context, matchID string) (store.Match, error)
	List(ctx context.Context, status string, limit, offset int) ([]store.Match, error)
	Join(ctx context.Context, matchID, userID string) (store.MatchEntry, error)
	Activate(ctx context.Context, matchID, adminID string) error
	SubmitResult(ctx context.Context, matchID, userID string, kills, placement int) error
	VerifyResult(ctx context.Context, matchID, entryID, adminID string) error
	Settle(ctx context.Context, matchID, adminID string, placements services.Placements) error
	Cancel(ctx context.Context, matchID, adminID string) error
	Entrants(ctx context.Context, matchID string) ([]store.MatchEntry, error)
	IsEntrant(ctx context.Context, q store.Getter, matchID, userID string) (bool, error)
}

type payoutService interface {
	RequestWithdrawal(ctx context.Context, userID string, amount int64, upiID string) (store.PayoutRequest, error)
	RequestTopup(ctx context.Context, userID string, amount int64, reference string) (store.PayoutRequest, error)
	Approve(ctx context.Context, requestID, adminID, note string) error
	Reject(ctx context.Context, requestID, adminID, note string) error
	ListMine(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error)
}

// Handlers holds every HTTP dependency. Stores appear directly only where no
// service owns the flow (registration, admin listings).
type Handlers struct {
	cfg     config.Config
	tx      txRunner
	db      store.Getter
	users   userStore
	wallets walletStore
	ledger  ledgerStore
	roles   roleStore
	audit   auditStore
	payouts payoutAdminStore

	walletSvc walletService
	matchSvc  matchService
	payoutSvc payoutService

	serveWS func(w http.ResponseWriter, r *http.Request, userID string)
}

// New wires the handler set. serveWS is injected so tests can run the HTTP
// surface without upgrading real websocket connections.
func New(
	cfg config.Config,
	tx txRunner,
	db store.Getter,
	users userStore,
	wallets walletStore,
	ledger ledgerStore,
	roles roleStore,
	audit auditStore,
	payouts payoutAdminStore,
	walletSvc walletService,
	matchSvc matchService,
	payoutSvc payoutService,
	serveWS func(w http.ResponseWriter, r *http.Request, userID string),
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		tx:        tx,
		db:        db,
		users:     users,
		wallets:   wallets,
		ledger:    ledger,
		roles:     roles,
		audit:     audit,
		payouts:   payouts,
		walletSvc: walletSvc,
		matchSvc:  matchSvc,
		payoutSvc: payoutSvc,
		serveWS:   serveWS,
	}
}
