package store

import (
	"context"
	"errors"
)

// Ledger entry kinds. Negative amounts are debits, positive are credits.
const (
	KindEntryFee        = "entry_fee"
	KindPrize           = "prize"
	KindKillReward      = "kill_reward"
	KindRefund          = "refund"
	KindTopup           = "topup"
	KindWithdrawal      = "withdrawal"
	KindBonus           = "bonus"
	KindAdminAdjustment = "admin_adjustment"
)

const (
	EntryPending   = "pending"
	EntryCompleted = "completed"
	EntryRejected  = "rejected"
)

var (
	ErrZeroAmount        = errors.New("ledger entry amount must be non-zero")
	ErrUnknownKind       = errors.New("unknown ledger entry kind")
	ErrUnknownStatus     = errors.New("unknown ledger entry status")
	ErrWithdrawableDelta = errors.New("withdrawable delta must share the amount's sign and not exceed it")
)

var entryKinds = map[string]bool{
	KindEntryFee:        true,
	KindPrize:           true,
	KindKillReward:      true,
	KindRefund:          true,
	KindTopup:           true,
	KindWithdrawal:      true,
	KindBonus:           true,
	KindAdminAdjustment: true,
}

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithdrawableDelta records how much of the entry moves the withdrawable
// subtotal. It carries the exact delta the wallet cache applies, so replaying
// the ledger reproduces the cache. Bonus credits carry 0; a mixed-funded
// debit carries only its withdrawable-funded portion.
type LedgerEntryInput struct {
	ID                string
	UserID            string
	Kind              string
	Amount            int64
	WithdrawableDelta int64
	Status            string
	MatchID           *string
	RequestID         *string
	Notes             string
	CreatedBy         string
}

type LedgerEntry struct {
	Seq               int64   `db:"seq"`
	ID                string  `db:"id"`
	UserID            string  `db:"user_id"`
	Kind              string  `db:"kind"`
	Amount            int64   `db:"amount"`
	WithdrawableDelta int64   `db:"withdrawable_delta"`
	Status            string  `db:"status"`
	MatchID           *string `db:"match_id"`
	RequestID         *string `db:"request_id"`
	Notes             string  `db:"notes"`
	CreatedBy         string  `db:"created_by"`
	CreatedAt         any     `db:"created_at"`
}

// Append inserts one immutable entry. Entries start pending or completed;
// rejected only ever results from a transition.
func (s *LedgerStore) Append(ctx context.Context, tx Execer, input LedgerEntryInput) error {
	if input.Amount == 0 {
		return ErrZeroAmount
	}
	if !entryKinds[input.Kind] {
		return ErrUnknownKind
	}
	if input.Status != EntryPending && input.Status != EntryCompleted {
		return ErrUnknownStatus
	}
	if d := input.WithdrawableDelta; d > 0 && (input.Amount < 0 || d > input.Amount) ||
		d < 0 && (input.Amount > 0 || d < input.Amount) {
		return ErrWithdrawableDelta
	}
	query := `
		INSERT INTO ledger_entries (id, user_id, kind, amount, withdrawable_delta, status, match_id, request_id, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Kind, input.Amount, input.WithdrawableDelta,
		input.Status, input.MatchID, input.RequestID, input.Notes, input.CreatedBy,
	)
	return err
}

// Transition moves a pending entry to completed or rejected. The returned
// count is zero when the entry was not pending, which callers treat as an
// invalid transition; an entry resolves exactly once.
func (s *LedgerStore) Transition(ctx context.Context, tx Execer, entryID, newStatus string) (int64, error) {
	if newStatus != EntryCompleted && newStatus != EntryRejected {
		return 0, ErrUnknownStatus
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = $1
		WHERE id = $2 AND status = 'pending'
	`, newStatus, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SpendableSum folds the ledger: completed entries plus pending debits
// (funds on hold for unresolved withdrawals). Rejected entries contribute
// nothing, which is the implicit reversal.
func (s *LedgerStore) SpendableSum(ctx context.Context, q Getter, userID string) (int64, error) {
	var sum int64
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(
			CASE WHEN status = 'completed' OR (status = 'pending' AND amount < 0)
			     THEN amount ELSE 0 END
		), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`, userID)
	return sum, err
}

// WithdrawableSum folds withdrawable_delta with the same status rule as
// SpendableSum. Because every entry records the exact delta the cache
// applied, the result equals wallets.withdrawable on a healthy wallet.
func (s *LedgerStore) WithdrawableSum(ctx context.Context, q Getter, userID string) (int64, error) {
	var sum int64
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(
			CASE WHEN status = 'completed' OR (status = 'pending' AND amount < 0)
			     THEN withdrawable_delta ELSE 0 END
		), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`, userID)
	return sum, err
}

func (s *LedgerStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	var rows []LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT seq, id, user_id, kind, amount, withdrawable_delta, status, match_id, request_id, notes, created_by, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FeeEntry returns the entry-fee debit a user paid for a match. Refunds read
// its withdrawable_delta so the credit mirrors the original funding split.
func (s *LedgerStore) FeeEntry(ctx context.Context, q Getter, matchID, userID string) (LedgerEntry, error) {
	var entry LedgerEntry
	err := q.GetContext(ctx, &entry, `
		SELECT seq, id, user_id, kind, amount, withdrawable_delta, status, match_id, request_id, notes, created_by, created_at
		FROM ledger_entries
		WHERE match_id = $1 AND user_id = $2 AND kind = 'entry_fee'
	`, matchID, userID)
	return entry, err
}

// HasRefund reports whether a refund entry already exists for this user's
// entry in the match. Cancellation retries use it to stay idempotent.
func (s *LedgerStore) HasRefund(ctx context.Context, q Getter, matchID, userID string) (bool, error) {
	var count int
	err := q.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM ledger_entries
		WHERE match_id = $1 AND user_id = $2 AND kind = 'refund'
	`, matchID, userID)
	return count > 0, err
}
