package handlers

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"

	"battlefield/internal/services"
	"battlefield/internal/store"
)

// Stubs hold one function field per method so each test overrides only what
// it exercises.

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type stubUsers struct {
	create     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmail func(ctx context.Context, email string) (map[string]any, error)
	getByID    func(ctx context.Context, userID string) (map[string]any, error)
	hasAnyUser func(ctx context.Context, q store.Getter) (bool, error)
}

func (s *stubUsers) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.create == nil {
		return nil
	}
	return s.create(ctx, tx, id, username, email, passwordHash)
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	return s.getByEmail(ctx, email)
}

func (s *stubUsers) GetByID(ctx context.Context, userID string) (map[string]any, error) {
	return s.getByID(ctx, userID)
}

func (s *stubUsers) HasAnyUser(ctx context.Context, q store.Getter) (bool, error) {
	if s.hasAnyUser == nil {
		return true, nil
	}
	return s.hasAnyUser(ctx, q)
}

type stubWallets struct {
	create  func(ctx context.Context, tx store.Execer, userID string, balance, withdrawable int64) error
	listAll func(ctx context.Context) ([]store.WalletWithUser, error)
}

func (s *stubWallets) Create(ctx context.Context, tx store.Execer, userID string, balance, withdrawable int64) error {
	if s.create == nil {
		return nil
	}
	return s.create(ctx, tx, userID, balance, withdrawable)
}

func (s *stubWallets) ListAllWithUsers(ctx context.Context) ([]store.WalletWithUser, error) {
	return s.listAll(ctx)
}

type stubLedger struct {
	append       func(ctx context.Context, tx store.Execer, input store.LedgerEntryInput) error
	spendableSum func(ctx context.Context, q store.Getter, userID string) (int64, error)
}

func (s *stubLedger) Append(ctx context.Context, tx store.Execer, input store.LedgerEntryInput) error {
	if s.append == nil {
		return nil
	}
	return s.append(ctx, tx, input)
}

func (s *stubLedger) SpendableSum(ctx context.Context, q store.Getter, userID string) (int64, error) {
	return s.spendableSum(ctx, q, userID)
}

type stubRoles struct {
	roleOf func(ctx context.Context, userID string) (string, error)
	grant  func(ctx context.Context, tx store.Execer, userID, role string, grantedBy *string) error
}

func (s *stubRoles) RoleOf(ctx context.Context, userID string) (string, error) {
	if s.roleOf == nil {
		return store.RolePlayer, nil
	}
	return s.roleOf(ctx, userID)
}

func (s *stubRoles) Grant(ctx context.Context, tx store.Execer, userID, role string, grantedBy *string) error {
	if s.grant == nil {
		return nil
	}
	return s.grant(ctx, tx, userID, role, grantedBy)
}

type stubAudit struct {
	list func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s *stubAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	return nil
}

func (s *stubAudit) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, limit, offset)
}

type stubPayoutAdmin struct {
	listAll func(ctx context.Context, status string, limit, offset int) ([]store.PayoutRequest, error)
	getByID func(ctx context.Context, requestID string) (store.PayoutRequest, error)
}

func (s *stubPayoutAdmin) ListAll(ctx context.Context, status string, limit, offset int) ([]store.PayoutRequest, error) {
	return s.listAll(ctx, status, limit, offset)
}

func (s *stubPayoutAdmin) GetByID(ctx context.Context, requestID string) (store.PayoutRequest, error) {
	return s.getByID(ctx, requestID)
}

type stubWalletSvc struct {
	balance   func(ctx context.Context, userID string) (services.Balance, error)
	entries   func(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error)
	selfCheck func(ctx context.Context, userID string) (services.SelfCheck, error)
}

func (s *stubWalletSvc) Balance(ctx context.Context, userID string) (services.Balance, error) {
	return s.balance(ctx, userID)
}

func (s *stubWalletSvc) Entries(ctx context.Context, userID string, limit, offset int) ([]store.LedgerEntry, error) {
	return s.entries(ctx, userID, limit, offset)
}

func (s *stubWalletSvc) SelfCheck(ctx context.Context, userID string) (services.SelfCheck, error) {
	return s.selfCheck(ctx, userID)
}

type stubMatchSvc struct {
	create       func(ctx context.Context, adminID string, input store.MatchInput) (store.Match, error)
	get          func(ctx context.Context, matchID string) (store.Match, error)
	list         func(ctx context.Context, status string, limit, offset int) ([]store.Match, error)
	join         func(ctx context.Context, matchID, userID string) (store.MatchEntry, error)
	activate     func(ctx context.Context, matchID, adminID string) error
	submitResult func(ctx context.Context, matchID, userID string, kills, placement int) error
	verifyResult func(ctx context.Context, matchID, entryID, adminID string) error
	settle       func(ctx context.Context, matchID, adminID string, placements services.Placements) error
	cancel       func(ctx context.Context, matchID, adminID string) error
	entrants     func(ctx context.Context, matchID string) ([]store.MatchEntry, error)
	isEntrant    func(ctx context.Context, q store.Getter, matchID, userID string) (bool, error)
}

func (s *stubMatchSvc) Create(ctx context.Context, adminID string, input store.MatchInput) (store.Match, error) {
	return s.create(ctx, adminID, input)
}

func (s *stubMatchSvc) Get(ctx context.Context, matchID string) (store.Match, error) {
	return s.get(ctx, matchID)
}

func (s *stubMatchSvc) List(ctx context.Context, status string, limit, offset int) ([]store.Match, error) {
	return s.list(ctx, status, limit, offset)
}

func (s *stubMatchSvc) Join(ctx context.Context, matchID, userID string) (store.MatchEntry, error) {
	return s.join(ctx, matchID, userID)
}

func (s *stubMatchSvc) Activate(ctx context.Context, matchID, adminID string) error {
	return s.activate(ctx, matchID, adminID)
}

func (s *stubMatchSvc) SubmitResult(ctx context.Context, matchID, userID string, kills, placement int) error {
	return s.submitResult(ctx, matchID, userID, kills, placement)
}

func (s *stubMatchSvc) VerifyResult(ctx context.Context, matchID, entryID, adminID string) error {
	return s.verifyResult(ctx, matchID, entryID, adminID)
}

func (s *stubMatchSvc) Settle(ctx context.Context, matchID, adminID string, placements services.Placements) error {
	return s.settle(ctx, matchID, adminID, placements)
}

func (s *stubMatchSvc) Cancel(ctx context.Context, matchID, adminID string) error {
	return s.cancel(ctx, matchID, adminID)
}

func (s *stubMatchSvc) Entrants(ctx context.Context, matchID string) ([]store.MatchEntry, error) {
	return s.entrants(ctx, matchID)
}

func (s *stubMatchSvc) IsEntrant(ctx context.Context, q store.Getter, matchID, userID string) (bool, error) {
	if s.isEntrant == nil {
		return false, nil
	}
	return s.isEntrant(ctx, q, matchID, userID)
}

type stubPayoutSvc struct {
	requestWithdrawal func(ctx context.Context, userID string, amount int64, upiID string) (store.PayoutRequest, error)
	requestTopup      func(ctx context.Context, userID string, amount int64, reference string) (store.PayoutRequest, error)
	approve           func(ctx context.Context, requestID, adminID, note string) error
	reject            func(ctx context.Context, requestID, adminID, note string) error
	listMine          func(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error)
}

func (s *stubPayoutSvc) RequestWithdrawal(ctx context.Context, userID string, amount int64, upiID string) (store.PayoutRequest, error) {
	return s.requestWithdrawal(ctx, userID, amount, upiID)
}

func (s *stubPayoutSvc) RequestTopup(ctx context.Context, userID string, amount int64, reference string) (store.PayoutRequest, error) {
	return s.requestTopup(ctx, userID, amount, reference)
}

func (s *stubPayoutSvc) Approve(ctx context.Context, requestID, adminID, note string) error {
	return s.approve(ctx, requestID, adminID, note)
}

func (s *stubPayoutSvc) Reject(ctx context.Context, requestID, adminID, note string) error {
	return s.reject(ctx, requestID, adminID, note)
}

func (s *stubPayoutSvc) ListMine(ctx context.Context, userID string, limit, offset int) ([]store.PayoutRequest, error) {
	return s.listMine(ctx, userID, limit, offset)
}

var noopServeWS = func(w http.ResponseWriter, r *http.Request, userID string) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}
