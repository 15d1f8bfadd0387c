package services

import (
	"context"

	"battlefield/internal/store"
)

// WalletService reads balances and replays the ledger for audit checks. All
// writes to wallets happen inside the match and payout services.
type WalletService struct {
	db      store.Getter
	wallets walletStore
	ledger  ledgerStore
}

func NewWalletService(db store.Getter, wallets walletStore, ledger ledgerStore) *WalletService {
	return &WalletService{db: db, wallets: wallets, ledger: ledger}
}

type Balance struct {
	Spendable    int64 `json:"spendable"`
	Withdrawable int64 `json:"withdrawable"`
}

// Balance returns the materialized wallet row.
func (s *WalletService) Balance(ctx context.Context, userID string) (Balance, error) {
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Spendable: wallet.Balance, Withdrawable: wallet.Withdrawable}, nil
}

// ProjectedBalance folds the ledger instead of reading the wallet row.
// Completed entries and pending debits (holds) count; rejected entries do
// not. Entries record the exact withdrawable delta they applied, so on a
// healthy wallet the projection matches the stored row without adjustment.
func (s *WalletService) ProjectedBalance(ctx context.Context, userID string) (Balance, error) {
	spendable, err := s.ledger.SpendableSum(ctx, s.db, userID)
	if err != nil {
		return Balance{}, err
	}
	withdrawable, err := s.ledger.WithdrawableSum(ctx, s.db, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Spendable: spendable, Withdrawable: withdrawable}, nil
}

type SelfCheck struct {
	Stored     Balance `json:"stored"`
	Projected  Balance `json:"projected"`
	Consistent bool    `json:"consistent"`
}

// SelfCheck compares the stored wallet row against the ledger projection.
func (s *WalletService) SelfCheck(ctx context.Context, userID string) (SelfCheck, error) {
	stored, err := s.Balance(ctx, userID)
	if err != nil {
		return SelfCheck{}, err
	}
	projected, err := s.ProjectedBalance(ctx, userID)
	if err != nil {
		return SelfCheck{}, err
	}
	return SelfCheck{
		Stored:     stored,
		Projected:  projected,
		Consistent: stored == projected,
	}, nil
}

// Entries lists the user's ledger entries, newest first.
func (s *WalletService) Entries(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}
