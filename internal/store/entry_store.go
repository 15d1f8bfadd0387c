package store

import "context"

const (
	ResultNone      = "none"
	ResultSubmitted = "submitted"
	ResultVerified  = "verified"
)

// EntryStore manages match entries: one seat per (match, user), slot numbers
// unique within a match. Both are also enforced by unique indexes so a racing
// insert fails loudly instead of double-booking.
type EntryStore struct {
	db DB
}

type MatchEntry struct {
	ID           string `db:"id"`
	MatchID      string `db:"match_id"`
	UserID       string `db:"user_id"`
	SlotNumber   int    `db:"slot_number"`
	Kills        int    `db:"kills"`
	Placement    int    `db:"placement"`
	ResultStatus string `db:"result_status"`
	CreatedAt    any    `db:"created_at"`
}

type MatchEntryInput struct {
	ID         string
	MatchID    string
	UserID     string
	SlotNumber int
}

func NewEntryStore(db DB) *EntryStore {
	return &EntryStore{db: db}
}

func (s *EntryStore) Insert(ctx context.Context, tx Execer, input MatchEntryInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_entries (id, match_id, user_id, slot_number, kills, placement, result_status)
		VALUES ($1, $2, $3, $4, 0, 0, 'none')
	`, input.ID, input.MatchID, input.UserID, input.SlotNumber)
	return err
}

func (s *EntryStore) Exists(ctx context.Context, q Getter, matchID, userID string) (bool, error) {
	var count int
	err := q.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM match_entries WHERE match_id = $1 AND user_id = $2
	`, matchID, userID)
	return count > 0, err
}

// NextSlot returns the lowest unused slot number >= 1 for the match. Runs
// inside the join transaction while the match row is locked.
func (s *EntryStore) NextSlot(ctx context.Context, q Getter, matchID string) (int, error) {
	var slot int
	err := q.GetContext(ctx, &slot, `
		SELECT MIN(candidate) FROM (
			SELECT 1 AS candidate
			UNION
			SELECT slot_number + 1 FROM match_entries WHERE match_id = $1
		) candidates
		WHERE NOT EXISTS (
			SELECT 1 FROM match_entries WHERE match_id = $1 AND slot_number = candidate
		)
	`, matchID)
	return slot, err
}

func (s *EntryStore) GetByID(ctx context.Context, entryID string) (MatchEntry, error) {
	var row MatchEntry
	err := s.db.GetContext(ctx, &row, `
		SELECT id, match_id, user_id, slot_number, kills, placement, result_status, created_at
		FROM match_entries
		WHERE id = $1
	`, entryID)
	if err != nil {
		return MatchEntry{}, err
	}
	return row, nil
}

func (s *EntryStore) ListByMatch(ctx context.Context, matchID string) ([]MatchEntry, error) {
	var rows []MatchEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, match_id, user_id, slot_number, kills, placement, result_status, created_at
		FROM match_entries
		WHERE match_id = $1
		ORDER BY slot_number
	`, matchID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *EntryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]MatchEntry, error) {
	var rows []MatchEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, match_id, user_id, slot_number, kills, placement, result_status, created_at
		FROM match_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SubmitResult records a claimed result once; zero rows means the entrant
// already submitted.
func (s *EntryStore) SubmitResult(ctx context.Context, tx Execer, matchID, userID string, kills, placement int) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE match_entries
		SET kills = $1, placement = $2, result_status = 'submitted'
		WHERE match_id = $3 AND user_id = $4 AND result_status = 'none'
	`, kills, placement, matchID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *EntryStore) VerifyResult(ctx context.Context, tx Execer, entryID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE match_entries
		SET result_status = 'verified'
		WHERE id = $1 AND result_status = 'submitted'
	`, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnverified counts submitted-but-unverified results; settlement
// requires it to be zero.
func (s *EntryStore) CountUnverified(ctx context.Context, q Getter, matchID string) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM match_entries WHERE match_id = $1 AND result_status = 'submitted'
	`, matchID)
	return count, err
}
