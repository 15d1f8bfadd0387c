package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"battlefield/internal/store"
	ws "battlefield/internal/websocket"
)

// world is an in-memory stand-in for the database. The tx runner serializes
// transactions with a mutex and rolls state back on error, which is enough
// to exercise the services' check-then-write logic under concurrency.
type world struct {
	dataMu  sync.Mutex
	wallets map[string]store.Wallet
	matches map[string]store.Match
	entries []store.MatchEntry
	ledger  []store.LedgerEntry
	payouts map[string]store.PayoutRequest
	audits  []string
}

func newWorld() *world {
	return &world{
		wallets: make(map[string]store.Wallet),
		matches: make(map[string]store.Match),
		payouts: make(map[string]store.PayoutRequest),
	}
}

type snapshot struct {
	wallets map[string]store.Wallet
	matches map[string]store.Match
	entries []store.MatchEntry
	ledger  []store.LedgerEntry
	payouts map[string]store.PayoutRequest
	audits  []string
}

func (w *world) snapshot() snapshot {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	s := snapshot{
		wallets: make(map[string]store.Wallet, len(w.wallets)),
		matches: make(map[string]store.Match, len(w.matches)),
		payouts: make(map[string]store.PayoutRequest, len(w.payouts)),
		entries: append([]store.MatchEntry(nil), w.entries...),
		ledger:  append([]store.LedgerEntry(nil), w.ledger...),
		audits:  append([]string(nil), w.audits...),
	}
	for k, v := range w.wallets {
		s.wallets[k] = v
	}
	for k, v := range w.matches {
		s.matches[k] = v
	}
	for k, v := range w.payouts {
		s.payouts[k] = v
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	w.wallets = s.wallets
	w.matches = s.matches
	w.entries = s.entries
	w.ledger = s.ledger
	w.payouts = s.payouts
	w.audits = s.audits
}

type fakeTxRunner struct {
	w  *world
	mu sync.Mutex
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.w.snapshot()
	if err := fn(nil); err != nil {
		r.w.restore(snap)
		return err
	}
	return nil
}

type fakeWallets struct{ w *world }

func (f *fakeWallets) Get(ctx context.Context, userID string) (store.Wallet, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	wallet, ok := f.w.wallets[userID]
	if !ok {
		return store.Wallet{}, sql.ErrNoRows
	}
	return wallet, nil
}

func (f *fakeWallets) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.Wallet, error) {
	return f.Get(ctx, userID)
}

func (f *fakeWallets) ApplyDelta(ctx context.Context, tx store.Execer, userID string, spendableDelta, withdrawableDelta int64) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	wallet, ok := f.w.wallets[userID]
	if !ok {
		return sql.ErrNoRows
	}
	wallet.Balance += spendableDelta
	withdrawable := wallet.Withdrawable + withdrawableDelta
	if withdrawable < 0 {
		withdrawable = 0
	}
	if withdrawable > wallet.Balance {
		withdrawable = wallet.Balance
	}
	wallet.Withdrawable = withdrawable
	f.w.wallets[userID] = wallet
	return nil
}

type fakeLedger struct{ w *world }

func (f *fakeLedger) Append(ctx context.Context, tx store.Execer, input store.LedgerEntryInput) error {
	if input.Amount == 0 {
		return store.ErrZeroAmount
	}
	if d := input.WithdrawableDelta; d > 0 && (input.Amount < 0 || d > input.Amount) ||
		d < 0 && (input.Amount > 0 || d < input.Amount) {
		return store.ErrWithdrawableDelta
	}
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	f.w.ledger = append(f.w.ledger, store.LedgerEntry{
		Seq:               int64(len(f.w.ledger) + 1),
		ID:                input.ID,
		UserID:            input.UserID,
		Kind:              input.Kind,
		Amount:            input.Amount,
		WithdrawableDelta: input.WithdrawableDelta,
		Status:            input.Status,
		MatchID:           input.MatchID,
		RequestID:         input.RequestID,
		Notes:             input.Notes,
		CreatedBy:         input.CreatedBy,
	})
	return nil
}

func (f *fakeLedger) Transition(ctx context.Context, tx store.Execer, entryID, newStatus string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for i := range f.w.ledger {
		if f.w.ledger[i].ID == entryID && f.w.ledger[i].Status == store.EntryPending {
			f.w.ledger[i].Status = newStatus
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeLedger) SpendableSum(ctx context.Context, q store.Getter, userID string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var sum int64
	for _, e := range f.w.ledger {
		if e.UserID != userID {
			continue
		}
		if e.Status == store.EntryCompleted || (e.Status == store.EntryPending && e.Amount < 0) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (f *fakeLedger) WithdrawableSum(ctx context.Context, q store.Getter, userID string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var sum int64
	for _, e := range f.w.ledger {
		if e.UserID != userID {
			continue
		}
		if e.Status == store.EntryCompleted || (e.Status == store.EntryPending && e.Amount < 0) {
			sum += e.WithdrawableDelta
		}
	}
	return sum, nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var out []store.LedgerEntry
	for i := len(f.w.ledger) - 1; i >= 0; i-- {
		if f.w.ledger[i].UserID == userID {
			out = append(out, f.w.ledger[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) FeeEntry(ctx context.Context, q store.Getter, matchID, userID string) (store.LedgerEntry, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, e := range f.w.ledger {
		if e.Kind == store.KindEntryFee && e.UserID == userID && e.MatchID != nil && *e.MatchID == matchID {
			return e, nil
		}
	}
	return store.LedgerEntry{}, sql.ErrNoRows
}

func (f *fakeLedger) HasRefund(ctx context.Context, q store.Getter, matchID, userID string) (bool, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, e := range f.w.ledger {
		if e.Kind == store.KindRefund && e.UserID == userID && e.MatchID != nil && *e.MatchID == matchID {
			return true, nil
		}
	}
	return false, nil
}

type fakeMatches struct{ w *world }

func (f *fakeMatches) Create(ctx context.Context, tx store.Execer, input store.MatchInput) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	f.w.matches[input.ID] = store.Match{
		ID:           input.ID,
		Title:        input.Title,
		MatchType:    input.MatchType,
		EntryFee:     input.EntryFee,
		TotalSlots:   input.TotalSlots,
		PrizePool:    input.PrizePool,
		PrizeFirst:   input.PrizeFirst,
		PrizeSecond:  input.PrizeSecond,
		PrizeThird:   input.PrizeThird,
		CoinsPerKill: input.CoinsPerKill,
		Status:       store.MatchUpcoming,
		StartsAt:     input.StartsAt,
		CreatedBy:    input.CreatedBy,
	}
	return nil
}

func (f *fakeMatches) GetByID(ctx context.Context, matchID string) (store.Match, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	match, ok := f.w.matches[matchID]
	if !ok {
		return store.Match{}, sql.ErrNoRows
	}
	return match, nil
}

func (f *fakeMatches) GetForUpdate(ctx context.Context, tx store.Getter, matchID string) (store.Match, error) {
	return f.GetByID(ctx, matchID)
}

func (f *fakeMatches) List(ctx context.Context, status string, limit, offset int) ([]store.Match, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var out []store.Match
	for _, m := range f.w.matches {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMatches) SetStatus(ctx context.Context, tx store.Execer, matchID, from, to string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	match, ok := f.w.matches[matchID]
	if !ok || match.Status != from {
		return 0, nil
	}
	match.Status = to
	f.w.matches[matchID] = match
	return 1, nil
}

func (f *fakeMatches) SetRoom(ctx context.Context, tx store.Execer, matchID, roomID, roomPassword string) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	match, ok := f.w.matches[matchID]
	if !ok {
		return sql.ErrNoRows
	}
	match.RoomID = &roomID
	match.RoomPassword = &roomPassword
	f.w.matches[matchID] = match
	return nil
}

func (f *fakeMatches) IncrementFilledSlots(ctx context.Context, tx store.Execer, matchID string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	match, ok := f.w.matches[matchID]
	if !ok || match.Status != store.MatchUpcoming || match.FilledSlots >= match.TotalSlots {
		return 0, nil
	}
	match.FilledSlots++
	f.w.matches[matchID] = match
	return 1, nil
}

type fakeEntries struct{ w *world }

func (f *fakeEntries) Insert(ctx context.Context, tx store.Execer, input store.MatchEntryInput) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, e := range f.w.entries {
		if e.MatchID == input.MatchID && (e.UserID == input.UserID || e.SlotNumber == input.SlotNumber) {
			return errors.New("unique constraint violation")
		}
	}
	f.w.entries = append(f.w.entries, store.MatchEntry{
		ID:           input.ID,
		MatchID:      input.MatchID,
		UserID:       input.UserID,
		SlotNumber:   input.SlotNumber,
		ResultStatus: store.ResultNone,
	})
	return nil
}

func (f *fakeEntries) Exists(ctx context.Context, q store.Getter, matchID, userID string) (bool, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, e := range f.w.entries {
		if e.MatchID == matchID && e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntries) NextSlot(ctx context.Context, q store.Getter, matchID string) (int, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	taken := make(map[int]bool)
	for _, e := range f.w.entries {
		if e.MatchID == matchID {
			taken[e.SlotNumber] = true
		}
	}
	slot := 1
	for taken[slot] {
		slot++
	}
	return slot, nil
}

func (f *fakeEntries) GetByID(ctx context.Context, entryID string) (store.MatchEntry, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, e := range f.w.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return store.MatchEntry{}, sql.ErrNoRows
}

func (f *fakeEntries) ListByMatch(ctx context.Context, matchID string) ([]store.MatchEntry, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var out []store.MatchEntry
	for _, e := range f.w.entries {
		if e.MatchID == matchID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.MatchEntry, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var out []store.MatchEntry
	for _, e := range f.w.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) SubmitResult(ctx context.Context, tx store.Execer, matchID, userID string, kills, placement int) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for i := range f.w.entries {
		e := &f.w.entries[i]
		if e.MatchID == matchID && e.UserID == userID && e.ResultStatus == store.ResultNone {
			e.Kills = kills
			e.Placement = placement
			e.ResultStatus = store.ResultSubmitted
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeEntries) VerifyResult(ctx context.Context, tx store.Execer, entryID string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for i := range f.w.entries {
		if f.w.entries[i].ID == entryID && f.w.entries[i].ResultStatus == store.ResultSubmitted {
			f.w.entries[i].ResultStatus = store.ResultVerified
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeEntries) CountUnverified(ctx context.Context, q store.Getter, matchID string) (int, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	count := 0
	for _, e := range f.w.entries {
		if e.MatchID == matchID && e.ResultStatus == store.ResultSubmitted {
			count++
		}
	}
	return count, nil
}

type fakePayouts struct{ w *world }

func (f *fakePayouts) Create(ctx context.Context, tx store.Execer, input store.PayoutRequestInput) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, r := range f.w.payouts {
		if r.UserID == input.UserID && r.Direction == input.Direction && r.Status == store.RequestPending {
			return errors.New("unique constraint violation")
		}
	}
	f.w.payouts[input.ID] = store.PayoutRequest{
		ID:            input.ID,
		UserID:        input.UserID,
		Direction:     input.Direction,
		Amount:        input.Amount,
		UpiID:         input.UpiID,
		Reference:     input.Reference,
		LedgerEntryID: input.LedgerEntryID,
		Status:        store.RequestPending,
		RiskTags:      input.RiskTags,
		RiskScore:     input.RiskScore,
		RequestedAt:   time.Now(),
	}
	return nil
}

func (f *fakePayouts) HasPending(ctx context.Context, q store.Getter, userID, direction string) (bool, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, r := range f.w.payouts {
		if r.UserID == userID && r.Direction == direction && r.Status == store.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePayouts) GetByID(ctx context.Context, requestID string) (store.PayoutRequest, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	r, ok := f.w.payouts[requestID]
	if !ok {
		return store.PayoutRequest{}, sql.ErrNoRows
	}
	return r, nil
}

func (f *fakePayouts) GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (store.PayoutRequest, error) {
	return f.GetByID(ctx, requestID)
}

func (f *fakePayouts) Resolve(ctx context.Context, tx store.Execer, requestID, status, adminID, note string) (int64, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	r, ok := f.w.payouts[requestID]
	if !ok || r.Status != store.RequestPending {
		return 0, nil
	}
	now := time.Now()
	r.Status = status
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	r.Note = note
	f.w.payouts[requestID] = r
	return 1, nil
}

func (f *fakePayouts) ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	var out []store.PayoutRequest
	for _, r := range f.w.payouts {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePayouts) CountByUser(ctx context.Context, userID, direction string) (int, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	count := 0
	for _, r := range f.w.payouts {
		if r.UserID == userID && r.Direction == direction {
			count++
		}
	}
	return count, nil
}

func (f *fakePayouts) CountSince(ctx context.Context, userID, direction string, since time.Time) (int, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	count := 0
	for _, r := range f.w.payouts {
		if r.UserID == userID && r.Direction == direction && r.RequestedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakePayouts) DestinationShared(ctx context.Context, upiID, excludeUserID string) (bool, error) {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	for _, r := range f.w.payouts {
		if r.UpiID == upiID && r.UserID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

type fakeAudit struct{ w *world }

func (f *fakeAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	f.w.dataMu.Lock()
	defer f.w.dataMu.Unlock()
	f.w.audits = append(f.w.audits, action)
	return nil
}

type fakeHub struct {
	mu      sync.Mutex
	wallets []string
	matches []string
}

func (h *fakeHub) BroadcastWallet(userID string, update ws.WalletUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wallets = append(h.wallets, userID)
}

func (h *fakeHub) BroadcastMatch(userID string, update ws.MatchUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matches = append(h.matches, userID)
}

type fakeEvents struct {
	mu      sync.Mutex
	wallets int
	matches int
}

func (e *fakeEvents) WalletChanged(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallets++
}

func (e *fakeEvents) MatchChanged(matchID, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matches++
}

// ledgerSum folds the world's ledger the way the reconcile query does.
func (w *world) ledgerSum(userID string) int64 {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	var sum int64
	for _, e := range w.ledger {
		if e.UserID != userID {
			continue
		}
		if e.Status == store.EntryCompleted || (e.Status == store.EntryPending && e.Amount < 0) {
			sum += e.Amount
		}
	}
	return sum
}

// withdrawableLedgerSum folds withdrawable_delta the way the projector does.
func (w *world) withdrawableLedgerSum(userID string) int64 {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	var sum int64
	for _, e := range w.ledger {
		if e.UserID != userID {
			continue
		}
		if e.Status == store.EntryCompleted || (e.Status == store.EntryPending && e.Amount < 0) {
			sum += e.WithdrawableDelta
		}
	}
	return sum
}

func (w *world) entryCount(userID, kind string) int {
	w.dataMu.Lock()
	defer w.dataMu.Unlock()
	count := 0
	for _, e := range w.ledger {
		if e.UserID == userID && e.Kind == kind {
			count++
		}
	}
	return count
}
