package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"battlefield/internal/rooms"
	"battlefield/internal/store"
	ws "battlefield/internal/websocket"
)

// MatchService owns the match lifecycle and every coin movement tied to it.
// All check-then-write sequences run inside one serializable transaction on
// FOR UPDATE locked rows.
type MatchService struct {
	tx      txRunner
	wallets walletStore
	ledger  ledgerStore
	matches matchStore
	entries entryStore
	audit   auditStore
	rooms   rooms.Provider
	hub     hub
	events  eventPublisher
}

func NewMatchService(
	tx txRunner,
	wallets walletStore,
	ledger ledgerStore,
	matches matchStore,
	entries entryStore,
	audit auditStore,
	roomProvider rooms.Provider,
	hub hub,
	events eventPublisher,
) *MatchService {
	return &MatchService{
		tx:      tx,
		wallets: wallets,
		ledger:  ledger,
		matches: matches,
		entries: entries,
		audit:   audit,
		rooms:   roomProvider,
		hub:     hub,
		events:  events,
	}
}

// Create validates and stores a new upcoming match.
func (s *MatchService) Create(ctx context.Context, adminID string, input store.MatchInput) (store.Match, error) {
	if input.Title == "" {
		return store.Match{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !store.ValidMatchType(input.MatchType) {
		return store.Match{}, fmt.Errorf("%w: unknown match type %q", ErrValidation, input.MatchType)
	}
	if input.EntryFee < 0 {
		return store.Match{}, fmt.Errorf("%w: entry fee cannot be negative", ErrValidation)
	}
	if input.TotalSlots < 2 {
		return store.Match{}, fmt.Errorf("%w: a match needs at least 2 slots", ErrValidation)
	}
	if input.PrizePool < 0 || input.PrizeFirst < 0 || input.PrizeSecond < 0 || input.PrizeThird < 0 {
		return store.Match{}, fmt.Errorf("%w: prizes cannot be negative", ErrValidation)
	}
	if input.PrizeFirst+input.PrizeSecond+input.PrizeThird > input.PrizePool {
		return store.Match{}, fmt.Errorf("%w: placement prizes exceed the prize pool", ErrValidation)
	}
	if input.CoinsPerKill < 0 {
		return store.Match{}, fmt.Errorf("%w: coins per kill cannot be negative", ErrValidation)
	}
	if input.StartsAt.IsZero() {
		return store.Match{}, fmt.Errorf("%w: start time is required", ErrValidation)
	}

	input.ID = uuid.NewString()
	input.CreatedBy = adminID
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.matches.Create(ctx, tx, input); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "match.create", "match", input.ID,
			fmt.Sprintf(`{"title":%q,"entry_fee":%d,"total_slots":%d}`, input.Title, input.EntryFee, input.TotalSlots))
	})
	if err != nil {
		return store.Match{}, err
	}
	return s.matches.GetByID(ctx, input.ID)
}

// Join atomically charges the entry fee and claims a slot. A wallet is never
// charged without a seat, and a seat is never granted without the charge.
func (s *MatchService) Join(ctx context.Context, matchID, userID string) (store.MatchEntry, error) {
	entryID := uuid.NewString()
	var slot int
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		match, err := s.matches.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != store.MatchUpcoming {
			return ErrMatchNotJoinable
		}
		if match.FilledSlots >= match.TotalSlots {
			return ErrMatchFull
		}
		joined, err := s.entries.Exists(ctx, tx, matchID, userID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < match.EntryFee {
			return ErrInsufficientBalance
		}

		slot, err = s.entries.NextSlot(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if err := s.entries.Insert(ctx, tx, store.MatchEntryInput{
			ID:         entryID,
			MatchID:    matchID,
			UserID:     userID,
			SlotNumber: slot,
		}); err != nil {
			return err
		}
		if match.EntryFee > 0 {
			// Fees spend bonus coins first. The withdrawable subtotal only
			// shrinks when the non-withdrawable remainder cannot cover the
			// fee, and the entry records exactly how much it consumed.
			withdrawableUsed := wallet.Withdrawable - (wallet.Balance - match.EntryFee)
			if withdrawableUsed < 0 {
				withdrawableUsed = 0
			}
			if err := s.ledger.Append(ctx, tx, store.LedgerEntryInput{
				ID:                uuid.NewString(),
				UserID:            userID,
				Kind:              store.KindEntryFee,
				Amount:            -match.EntryFee,
				WithdrawableDelta: -withdrawableUsed,
				Status:            store.EntryCompleted,
				MatchID:           &matchID,
				Notes:             fmt.Sprintf("entry fee for %s", match.Title),
				CreatedBy:         userID,
			}); err != nil {
				return err
			}
			if err := s.wallets.ApplyDelta(ctx, tx, userID, -match.EntryFee, -withdrawableUsed); err != nil {
				return err
			}
		}
		affected, err := s.matches.IncrementFilledSlots(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrMatchFull
		}
		return s.audit.Log(ctx, tx, userID, "match.join", "match", matchID,
			fmt.Sprintf(`{"slot":%d,"entry_fee":%d}`, slot, match.EntryFee))
	})
	if err != nil {
		return store.MatchEntry{}, err
	}

	s.notifyWallet(ctx, userID)
	s.notifyMatch(ctx, matchID)
	log.WithFields(log.Fields{"match_id": matchID, "user_id": userID, "slot": slot}).Info("player joined match")
	return s.entries.GetByID(ctx, entryID)
}

// Activate moves an upcoming match to active and attaches room credentials.
// A room provider failure is logged and the match still goes live; the room
// can be attached later by re-running activation side effects.
func (s *MatchService) Activate(ctx context.Context, matchID, adminID string) error {
	creds, roomErr := s.rooms.Credentials(ctx, matchID)
	if roomErr != nil {
		log.WithField("match_id", matchID).Warnf("room allocation failed: %v", roomErr)
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err := s.matches.SetStatus(ctx, tx, matchID, store.MatchUpcoming, store.MatchActive)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrMatchNotJoinable
		}
		if roomErr == nil {
			if err := s.matches.SetRoom(ctx, tx, matchID, creds.RoomID, creds.Password); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, adminID, "match.activate", "match", matchID, "{}")
	})
	if err != nil {
		return err
	}
	s.notifyMatch(ctx, matchID)
	return nil
}

// SubmitResult records an entrant's claimed kills and placement, once.
func (s *MatchService) SubmitResult(ctx context.Context, matchID, userID string, kills, placement int) error {
	if kills < 0 || placement < 0 {
		return fmt.Errorf("%w: kills and placement cannot be negative", ErrValidation)
	}
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status != store.MatchActive {
		return ErrMatchNotActive
	}
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		joined, err := s.entries.Exists(ctx, tx, matchID, userID)
		if err != nil {
			return err
		}
		if !joined {
			return ErrNotEntrant
		}
		affected, err := s.entries.SubmitResult(ctx, tx, matchID, userID, kills, placement)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrResultAlreadySubmitted
		}
		return nil
	})
}

// VerifyResult marks a submitted result as verified by an admin.
func (s *MatchService) VerifyResult(ctx context.Context, matchID, entryID, adminID string) error {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.MatchID != matchID {
		return ErrNotEntrant
	}
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err := s.entries.VerifyResult(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}
		return s.audit.Log(ctx, tx, adminID, "result.verify", "match_entry", entryID, "{}")
	})
}

// Placements maps placement rank (1, 2, 3) to the winning user ID.
type Placements map[int]string

// Settle pays out prizes and kill rewards and completes the match. Every
// submitted result must be verified first.
func (s *MatchService) Settle(ctx context.Context, matchID, adminID string, placements Placements) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status != store.MatchActive {
		return ErrMatchNotActive
	}
	entrants, err := s.entries.ListByMatch(ctx, matchID)
	if err != nil {
		return err
	}
	byUser := make(map[string]store.MatchEntry, len(entrants))
	for _, e := range entrants {
		byUser[e.UserID] = e
	}
	for _, winner := range placements {
		if _, ok := byUser[winner]; !ok {
			return fmt.Errorf("%w: %s did not enter this match", ErrNotEntrant, winner)
		}
	}

	credits := make(map[string]int64)
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		unverified, err := s.entries.CountUnverified(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if unverified > 0 {
			return ErrNotVerified
		}

		prizeFor := map[int]int64{1: match.PrizeFirst, 2: match.PrizeSecond, 3: match.PrizeThird}
		for rank, winner := range placements {
			amount := prizeFor[rank]
			if amount <= 0 {
				continue
			}
			if err := s.creditInTx(ctx, tx, winner, store.LedgerEntryInput{
				ID:                uuid.NewString(),
				UserID:            winner,
				Kind:              store.KindPrize,
				Amount:            amount,
				WithdrawableDelta: amount,
				Status:            store.EntryCompleted,
				MatchID:           &matchID,
				Notes:             fmt.Sprintf("prize for placement %d in %s", rank, match.Title),
				CreatedBy:         adminID,
			}); err != nil {
				return err
			}
			credits[winner] += amount
		}

		if store.IsBattleRoyale(match.MatchType) && match.CoinsPerKill > 0 {
			for _, e := range entrants {
				if e.Kills <= 0 {
					continue
				}
				amount := int64(e.Kills) * match.CoinsPerKill
				if err := s.creditInTx(ctx, tx, e.UserID, store.LedgerEntryInput{
					ID:                uuid.NewString(),
					UserID:            e.UserID,
					Kind:              store.KindKillReward,
					Amount:            amount,
					WithdrawableDelta: amount,
					Status:            store.EntryCompleted,
					MatchID:           &matchID,
					Notes:             fmt.Sprintf("%d kills in %s", e.Kills, match.Title),
					CreatedBy:         adminID,
				}); err != nil {
					return err
				}
				credits[e.UserID] += amount
			}
		}

		affected, err := s.matches.SetStatus(ctx, tx, matchID, store.MatchActive, store.MatchCompleted)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrMatchNotActive
		}
		return s.audit.Log(ctx, tx, adminID, "match.settle", "match", matchID,
			fmt.Sprintf(`{"winners":%d}`, len(placements)))
	})
	if err != nil {
		return err
	}

	for userID := range credits {
		s.notifyWallet(ctx, userID)
	}
	s.notifyMatch(ctx, matchID)
	log.WithFields(log.Fields{"match_id": matchID, "credited": len(credits)}).Info("match settled")
	return nil
}

// Cancel marks the match cancelled, then refunds each paid entry in its own
// transaction. Refunds are guarded by an already-refunded check, so a retry
// after a partial failure never refunds an entry twice.
func (s *MatchService) Cancel(ctx context.Context, matchID, adminID string) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status == store.MatchCompleted {
		return ErrInvalidTransition
	}

	if match.Status != store.MatchCancelled {
		err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
			affected, err := s.matches.SetStatus(ctx, tx, matchID, match.Status, store.MatchCancelled)
			if err != nil {
				return err
			}
			if affected == 0 {
				// Lost the race to another cancel; refunds below still run.
				return nil
			}
			return s.audit.Log(ctx, tx, adminID, "match.cancel", "match", matchID, "{}")
		})
		if err != nil {
			return err
		}
	}

	if match.EntryFee <= 0 {
		s.notifyMatch(ctx, matchID)
		return nil
	}

	entrants, err := s.entries.ListByMatch(ctx, matchID)
	if err != nil {
		return err
	}
	for _, e := range entrants {
		entrant := e
		err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
			refunded, err := s.ledger.HasRefund(ctx, tx, matchID, entrant.UserID)
			if err != nil {
				return err
			}
			if refunded {
				return nil
			}
			// Mirror the fee entry so the refund restores the same split of
			// withdrawable and bonus coins the player paid with.
			fee, err := s.ledger.FeeEntry(ctx, tx, matchID, entrant.UserID)
			if err != nil {
				return err
			}
			return s.creditInTx(ctx, tx, entrant.UserID, store.LedgerEntryInput{
				ID:                uuid.NewString(),
				UserID:            entrant.UserID,
				Kind:              store.KindRefund,
				Amount:            -fee.Amount,
				WithdrawableDelta: -fee.WithdrawableDelta,
				Status:            store.EntryCompleted,
				MatchID:           &matchID,
				Notes:             fmt.Sprintf("refund for cancelled match %s", match.Title),
				CreatedBy:         adminID,
			})
		})
		if err != nil {
			return fmt.Errorf("refund entrant %s: %w", entrant.UserID, err)
		}
		s.notifyWallet(ctx, entrant.UserID)
	}
	s.notifyMatch(ctx, matchID)
	return nil
}

// Get returns one match; List filters by status when non-empty.
func (s *MatchService) Get(ctx context.Context, matchID string) (store.Match, error) {
	return s.matches.GetByID(ctx, matchID)
}

func (s *MatchService) List(ctx context.Context, status string, limit, offset int) ([]store.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.matches.List(ctx, status, limit, offset)
}

// Entrants lists the entries of one match.
func (s *MatchService) Entrants(ctx context.Context, matchID string) ([]store.MatchEntry, error) {
	return s.entries.ListByMatch(ctx, matchID)
}

// IsEntrant reports whether userID holds a slot in matchID.
func (s *MatchService) IsEntrant(ctx context.Context, q store.Getter, matchID, userID string) (bool, error) {
	return s.entries.Exists(ctx, q, matchID, userID)
}

func (s *MatchService) creditInTx(ctx context.Context, tx *sqlx.Tx, userID string, input store.LedgerEntryInput) error {
	if err := s.ledger.Append(ctx, tx, input); err != nil {
		return err
	}
	return s.wallets.ApplyDelta(ctx, tx, userID, input.Amount, input.WithdrawableDelta)
}

func (s *MatchService) notifyWallet(ctx context.Context, userID string) {
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		log.WithField("user_id", userID).Warnf("wallet broadcast read failed: %v", err)
		return
	}
	s.hub.BroadcastWallet(userID, ws.WalletUpdate{Spendable: wallet.Balance, Withdrawable: wallet.Withdrawable})
	s.events.WalletChanged(userID)
}

func (s *MatchService) notifyMatch(ctx context.Context, matchID string) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		log.WithField("match_id", matchID).Warnf("match broadcast read failed: %v", err)
		return
	}
	entrants, err := s.entries.ListByMatch(ctx, matchID)
	if err != nil {
		return
	}
	update := ws.MatchUpdate{MatchID: matchID, Status: match.Status, FilledSlots: match.FilledSlots}
	for _, e := range entrants {
		s.hub.BroadcastMatch(e.UserID, update)
	}
	s.events.MatchChanged(matchID, match.Status)
}
