package store

import "context"

// WalletStore manages the materialized balance row per user. Every update
// happens in the same transaction as the ledger append that justifies it;
// the ledger remains the source of truth and the wallet row is always
// re-derivable (see LedgerStore.SpendableSum).
type WalletStore struct {
	db DB
}

type Wallet struct {
	UserID       string `db:"user_id"`
	Balance      int64  `db:"balance"`
	Withdrawable int64  `db:"withdrawable"`
	UpdatedAt    any    `db:"updated_at"`
}

type WalletWithUser struct {
	UserID       string  `db:"user_id"`
	Balance      int64   `db:"balance"`
	Withdrawable int64   `db:"withdrawable"`
	Username     *string `db:"username"`
	Email        *string `db:"email"`
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, userID string, balance, withdrawable int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, withdrawable)
		VALUES ($1, $2, $3)
	`, userID, balance, withdrawable)
	return err
}

func (s *WalletStore) Get(ctx context.Context, userID string) (Wallet, error) {
	var row Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, balance, withdrawable, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (Wallet, error) {
	var row Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, balance, withdrawable
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return Wallet{}, err
	}
	return row, nil
}

// ApplyDelta adjusts both balances. Withdrawable is clamped to
// [0, new spendable balance]: bonus-funded coins never become withdrawable
// and the withdrawable pool can never exceed what is actually spendable.
func (s *WalletStore) ApplyDelta(ctx context.Context, tx Execer, userID string, spendableDelta, withdrawableDelta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
		    withdrawable = LEAST(GREATEST(withdrawable + $2, 0), balance + $1),
		    updated_at = NOW()
		WHERE user_id = $3
	`, spendableDelta, withdrawableDelta, userID)
	return err
}

func (s *WalletStore) ListAllWithUsers(ctx context.Context) ([]WalletWithUser, error) {
	var rows []WalletWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.user_id, w.balance, w.withdrawable, u.username, u.email
		FROM wallets w
		LEFT JOIN users u ON u.id = w.user_id
		ORDER BY w.balance DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
