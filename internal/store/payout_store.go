package store

import (
	"context"
	"time"

	"github.com/lib/pq"
)

const (
	DirectionWithdrawal = "withdrawal"
	DirectionTopup      = "topup"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// PayoutStore persists withdrawal and top-up requests. A partial unique
// index on (user_id, direction) WHERE status = 'pending' backs the
// one-pending-request-per-account rule even when two requests race.
type PayoutStore struct {
	db DB
}

type PayoutRequest struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Direction     string         `db:"direction"`
	Amount        int64          `db:"amount"`
	UpiID         string         `db:"upi_id"`
	Reference     string         `db:"reference"`
	LedgerEntryID string         `db:"ledger_entry_id"`
	Status        string         `db:"status"`
	RiskTags      pq.StringArray `db:"risk_tags"`
	RiskScore     int            `db:"risk_score"`
	RequestedAt   time.Time      `db:"requested_at"`
	ProcessedAt   *time.Time     `db:"processed_at"`
	ProcessedBy   *string        `db:"processed_by"`
	Note          string         `db:"note"`
}

type PayoutRequestInput struct {
	ID            string
	UserID        string
	Direction     string
	Amount        int64
	UpiID         string
	Reference     string
	LedgerEntryID string
	RiskTags      []string
	RiskScore     int
}

func NewPayoutStore(db DB) *PayoutStore {
	return &PayoutStore{db: db}
}

func (s *PayoutStore) Create(ctx context.Context, tx Execer, input PayoutRequestInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payout_requests (id, user_id, direction, amount, upi_id, reference, ledger_entry_id, status, risk_tags, risk_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9)
	`, input.ID, input.UserID, input.Direction, input.Amount, input.UpiID, input.Reference,
		input.LedgerEntryID, pq.StringArray(input.RiskTags), input.RiskScore)
	return err
}

func (s *PayoutStore) HasPending(ctx context.Context, q Getter, userID, direction string) (bool, error) {
	var count int
	err := q.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM payout_requests
		WHERE user_id = $1 AND direction = $2 AND status = 'pending'
	`, userID, direction)
	return count > 0, err
}

const payoutColumns = `id, user_id, direction, amount, upi_id, reference, ledger_entry_id, status,
	risk_tags, risk_score, requested_at, processed_at, processed_by, note`

func (s *PayoutStore) GetByID(ctx context.Context, requestID string) (PayoutRequest, error) {
	var row PayoutRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, requestID)
	if err != nil {
		return PayoutRequest{}, err
	}
	return row, nil
}

func (s *PayoutStore) GetForUpdate(ctx context.Context, tx Getter, requestID string) (PayoutRequest, error) {
	var row PayoutRequest
	err := tx.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		return PayoutRequest{}, err
	}
	return row, nil
}

// Resolve finalizes a pending request; zero rows affected means it was
// already resolved.
func (s *PayoutStore) Resolve(ctx context.Context, tx Execer, requestID, status, adminID, note string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $1, processed_at = NOW(), processed_by = $2, note = $3
		WHERE id = $4 AND status = 'pending'
	`, status, adminID, note, requestID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PayoutStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]PayoutRequest, error) {
	var rows []PayoutRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+` FROM payout_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PayoutStore) ListAll(ctx context.Context, status string, limit, offset int) ([]PayoutRequest, error) {
	var rows []PayoutRequest
	query := `SELECT ` + payoutColumns + ` FROM payout_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Risk heuristic inputs.

func (s *PayoutStore) CountByUser(ctx context.Context, userID, direction string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM payout_requests WHERE user_id = $1 AND direction = $2
	`, userID, direction)
	return count, err
}

func (s *PayoutStore) CountSince(ctx context.Context, userID, direction string, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM payout_requests
		WHERE user_id = $1 AND direction = $2 AND requested_at >= $3
	`, userID, direction, since)
	return count, err
}

// DestinationShared reports whether another account has used the same UPI id.
func (s *PayoutStore) DestinationShared(ctx context.Context, upiID, excludeUserID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM payout_requests
		WHERE upi_id = $1 AND user_id <> $2
	`, upiID, excludeUserID)
	return count > 0, err
}
