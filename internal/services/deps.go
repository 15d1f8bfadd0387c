package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"battlefield/internal/store"
	ws "battlefield/internal/websocket"
)

// txRunner runs fn inside one serializable database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type walletStore interface {
	Get(ctx context.Context, userID string) (store.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.Wallet, error)
	ApplyDelta(ctx context.Context, tx store.Execer, userID string, spendableDelta, withdrawableDelta int64) error
}

type ledgerStore interface {
	Append(ctx context.Context, tx store.Execer, input store.LedgerEntryInput) error
	Transition(ctx context.Context, tx store.Execer, entryID, newStatus string) (int64, error)
	SpendableSum(ctx context.Context, q store.Getter, userID string) (int64, error)
	WithdrawableSum(ctx context.Context, q store.Getter, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error)
	FeeEntry(ctx context.Context, q store.Getter, matchID, userID string) (store.LedgerEntry, error)
	HasRefund(ctx context.Context, q store.Getter, matchID, userID string) (bool, error)
}

type matchStore interface {
	Create(ctx context.Context, tx store.Execer, input store.MatchInput) error
	GetByID(ctx context.Context, matchID string) (store.Match, error)
	GetForUpdate(ctx context.Context, tx store.Getter, matchID string) (store.Match, error)
	List(ctx context.Context, status string, limit, offset int) ([]store.Match, error)
	SetStatus(ctx context.Context, tx store.Execer, matchID, from, to string) (int64, error)
	SetRoom(ctx context.Context, tx store.Execer, matchID, roomID, roomPassword string) error
	IncrementFilledSlots(ctx context.Context, tx store.Execer, matchID string) (int64, error)
}

type entryStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.MatchEntryInput) error
	Exists(ctx context.Context, q store.Getter, matchID, userID string) (bool, error)
	NextSlot(ctx context.Context, q store.Getter, matchID string) (int, error)
	GetByID(ctx context.Context, entryID string) (store.MatchEntry, error)
	ListByMatch(ctx context.Context, matchID string) ([]store.MatchEntry, error)
	SubmitResult(ctx context.Context, tx store.Execer, matchID, userID string, kills, placement int) (int64, error)
	VerifyResult(ctx context.Context, tx store.Execer, entryID string) (int64, error)
	CountUnverified(ctx context.Context, q store.Getter, matchID string) (int, error)
}

type payoutStore interface {
	Create(ctx context.Context, tx store.Execer, input store.PayoutRequestInput) error
	HasPending(ctx context.Context, q store.Getter, userID, direction string) (bool, error)
	GetByID(ctx context.Context, requestID string) (store.PayoutRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (store.PayoutRequest, error)
	Resolve(ctx context.Context, tx store.Execer, requestID, status, adminID, note string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error)
	CountByUser(ctx context.Context, userID, direction string) (int, error)
	CountSince(ctx context.Context, userID, direction string, since time.Time) (int, error)
	DestinationShared(ctx context.Context, upiID, excludeUserID string) (bool, error)
}

type auditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// hub pushes realtime updates to connected clients of a user.
type hub interface {
	BroadcastWallet(userID string, update ws.WalletUpdate)
	BroadcastMatch(userID string, update ws.MatchUpdate)
}

// eventPublisher emits cross-instance change hints.
type eventPublisher interface {
	WalletChanged(userID string)
	MatchChanged(matchID, status string)
}
