package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"battlefield/internal/store"
	"battlefield/internal/validator"
	ws "battlefield/internal/websocket"
)

// PayoutConfig carries the withdrawal policy knobs.
type PayoutConfig struct {
	WindowStart   int
	WindowEnd     int
	Location      *time.Location
	MinWithdrawal int64
	Risk          RiskConfig
}

// PayoutService runs the withdrawal and top-up approval workflow. Withdrawal
// requests place a pending hold on the ledger; approval completes the hold,
// rejection releases it. Top-ups have no balance effect until approved.
type PayoutService struct {
	tx      txRunner
	wallets walletStore
	ledger  ledgerStore
	payouts payoutStore
	audit   auditStore
	hub     hub
	events  eventPublisher
	cfg     PayoutConfig
	risk    RiskConfig

	// now is swapped in tests to pin the withdrawal window clock.
	now func() time.Time
}

func NewPayoutService(
	tx txRunner,
	wallets walletStore,
	ledger ledgerStore,
	payouts payoutStore,
	audit auditStore,
	hub hub,
	events eventPublisher,
	cfg PayoutConfig,
) *PayoutService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &PayoutService{
		tx:      tx,
		wallets: wallets,
		ledger:  ledger,
		payouts: payouts,
		audit:   audit,
		hub:     hub,
		events:  events,
		cfg:     cfg,
		risk:    cfg.Risk,
		now:     time.Now,
	}
}

// RequestWithdrawal places a withdrawal for admin review and holds the
// amount. The window and balance checks run against the same locked wallet
// row that the hold debits.
func (s *PayoutService) RequestWithdrawal(ctx context.Context, userID string, amount int64, upiID string) (store.PayoutRequest, error) {
	if amount <= 0 {
		return store.PayoutRequest{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount < s.cfg.MinWithdrawal {
		return store.PayoutRequest{}, fmt.Errorf("%w: minimum withdrawal is %d coins", ErrBelowMinimum, s.cfg.MinWithdrawal)
	}
	if err := validator.ValidateUPI(upiID); err != nil {
		return store.PayoutRequest{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hour := s.now().In(s.cfg.Location).Hour()
	if !withinWindow(hour, s.cfg.WindowStart, s.cfg.WindowEnd) {
		return store.PayoutRequest{}, ErrOutsideWindow
	}

	requestID := uuid.NewString()
	entryID := uuid.NewString()
	var tags []string
	var score int
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		pending, err := s.payouts.HasPending(ctx, tx, userID, store.DirectionWithdrawal)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicatePending
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if wallet.Withdrawable < amount {
			return ErrInsufficientBalance
		}

		tags, score = s.assessRisk(ctx, userID, upiID, amount, wallet.Balance)

		if err := s.ledger.Append(ctx, tx, store.LedgerEntryInput{
			ID:                entryID,
			UserID:            userID,
			Kind:              store.KindWithdrawal,
			Amount:            -amount,
			WithdrawableDelta: -amount,
			Status:            store.EntryPending,
			RequestID:         &requestID,
			Notes:             fmt.Sprintf("withdrawal to %s", upiID),
			CreatedBy:         userID,
		}); err != nil {
			return err
		}
		if err := s.wallets.ApplyDelta(ctx, tx, userID, -amount, -amount); err != nil {
			return err
		}
		if err := s.payouts.Create(ctx, tx, store.PayoutRequestInput{
			ID:            requestID,
			UserID:        userID,
			Direction:     store.DirectionWithdrawal,
			Amount:        amount,
			UpiID:         upiID,
			LedgerEntryID: entryID,
			RiskTags:      tags,
			RiskScore:     score,
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "payout.request_withdrawal", "payout_request", requestID,
			fmt.Sprintf(`{"amount":%d,"risk_score":%d}`, amount, score))
	})
	if err != nil {
		return store.PayoutRequest{}, err
	}

	s.notifyWallet(ctx, userID)
	log.WithFields(log.Fields{"user_id": userID, "amount": amount, "risk_score": score}).Info("withdrawal requested")
	return s.payouts.GetByID(ctx, requestID)
}

// RequestTopup records a claimed deposit for admin confirmation. No coins
// move until approval.
func (s *PayoutService) RequestTopup(ctx context.Context, userID string, amount int64, reference string) (store.PayoutRequest, error) {
	if amount <= 0 {
		return store.PayoutRequest{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if reference == "" {
		return store.PayoutRequest{}, fmt.Errorf("%w: payment reference is required", ErrValidation)
	}

	requestID := uuid.NewString()
	entryID := uuid.NewString()
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		pending, err := s.payouts.HasPending(ctx, tx, userID, store.DirectionTopup)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicatePending
		}
		if err := s.ledger.Append(ctx, tx, store.LedgerEntryInput{
			ID:                entryID,
			UserID:            userID,
			Kind:              store.KindTopup,
			Amount:            amount,
			WithdrawableDelta: amount,
			Status:            store.EntryPending,
			RequestID:         &requestID,
			Notes:             fmt.Sprintf("top-up ref %s", reference),
			CreatedBy:         userID,
		}); err != nil {
			return err
		}
		if err := s.payouts.Create(ctx, tx, store.PayoutRequestInput{
			ID:            requestID,
			UserID:        userID,
			Direction:     store.DirectionTopup,
			Amount:        amount,
			Reference:     reference,
			LedgerEntryID: entryID,
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "payout.request_topup", "payout_request", requestID,
			fmt.Sprintf(`{"amount":%d}`, amount))
	})
	if err != nil {
		return store.PayoutRequest{}, err
	}
	return s.payouts.GetByID(ctx, requestID)
}

// Approve finalizes a pending request. For withdrawals the held coins leave
// for good; for top-ups the coins land now.
func (s *PayoutService) Approve(ctx context.Context, requestID, adminID, note string) error {
	var userID string
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		request, err := s.payouts.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != store.RequestPending {
			return ErrInvalidTransition
		}
		userID = request.UserID

		affected, err := s.payouts.Resolve(ctx, tx, requestID, store.RequestApproved, adminID, note)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}
		affected, err = s.ledger.Transition(ctx, tx, request.LedgerEntryID, store.EntryCompleted)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}
		if request.Direction == store.DirectionTopup {
			if err := s.wallets.ApplyDelta(ctx, tx, userID, request.Amount, request.Amount); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, adminID, "payout.approve", "payout_request", requestID,
			fmt.Sprintf(`{"direction":%q,"amount":%d}`, request.Direction, request.Amount))
	})
	if err != nil {
		return err
	}
	s.notifyWallet(ctx, userID)
	log.WithFields(log.Fields{"request_id": requestID, "admin_id": adminID}).Info("payout request approved")
	return nil
}

// Reject refuses a pending request. A withdrawal's held coins come back to
// the wallet; a top-up leaves no trace on the balance.
func (s *PayoutService) Reject(ctx context.Context, requestID, adminID, note string) error {
	var userID string
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		request, err := s.payouts.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != store.RequestPending {
			return ErrInvalidTransition
		}
		userID = request.UserID

		affected, err := s.payouts.Resolve(ctx, tx, requestID, store.RequestRejected, adminID, note)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}
		affected, err = s.ledger.Transition(ctx, tx, request.LedgerEntryID, store.EntryRejected)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}
		if request.Direction == store.DirectionWithdrawal {
			if err := s.wallets.ApplyDelta(ctx, tx, userID, request.Amount, request.Amount); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, adminID, "payout.reject", "payout_request", requestID,
			fmt.Sprintf(`{"direction":%q,"amount":%d}`, request.Direction, request.Amount))
	})
	if err != nil {
		return err
	}
	s.notifyWallet(ctx, userID)
	log.WithFields(log.Fields{"request_id": requestID, "admin_id": adminID}).Info("payout request rejected")
	return nil
}

// ListMine returns the caller's requests, newest first.
func (s *PayoutService) ListMine(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.payouts.ListByUser(ctx, userID, limit, offset)
}

func (s *PayoutService) notifyWallet(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		log.WithField("user_id", userID).Warnf("wallet broadcast read failed: %v", err)
		return
	}
	s.hub.BroadcastWallet(userID, ws.WalletUpdate{Spendable: wallet.Balance, Withdrawable: wallet.Withdrawable})
	s.events.WalletChanged(userID)
}
