package store

import (
	"context"
	"strconv"
	"strings"
	"time"
)

func itoa(value int) string {
	return strconv.Itoa(value)
}

const (
	MatchUpcoming  = "upcoming"
	MatchActive    = "active"
	MatchCompleted = "completed"
	MatchCancelled = "cancelled"
)

const (
	TypeBattleRoyaleSolo  = "battle_royale_solo"
	TypeBattleRoyaleDuo   = "battle_royale_duo"
	TypeBattleRoyaleSquad = "battle_royale_squad"
	TypeClashSquad        = "clash_squad"
)

// Kill rewards only apply to battle-royale modes; clash squad pays
// placement prizes only.
func IsBattleRoyale(matchType string) bool {
	return strings.HasPrefix(matchType, "battle_royale")
}

func ValidMatchType(matchType string) bool {
	switch matchType {
	case TypeBattleRoyaleSolo, TypeBattleRoyaleDuo, TypeBattleRoyaleSquad, TypeClashSquad:
		return true
	}
	return false
}

type MatchStore struct {
	db DB
}

type Match struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	MatchType    string    `db:"match_type"`
	EntryFee     int64     `db:"entry_fee"`
	TotalSlots   int       `db:"total_slots"`
	FilledSlots  int       `db:"filled_slots"`
	PrizePool    int64     `db:"prize_pool"`
	PrizeFirst   int64     `db:"prize_first"`
	PrizeSecond  int64     `db:"prize_second"`
	PrizeThird   int64     `db:"prize_third"`
	CoinsPerKill int64     `db:"coins_per_kill"`
	Status       string    `db:"status"`
	RoomID       *string   `db:"room_id"`
	RoomPassword *string   `db:"room_password"`
	StartsAt     time.Time `db:"starts_at"`
	CreatedBy    string    `db:"created_by"`
	CreatedAt    any       `db:"created_at"`
}

type MatchInput struct {
	ID           string
	Title        string
	MatchType    string
	EntryFee     int64
	TotalSlots   int
	PrizePool    int64
	PrizeFirst   int64
	PrizeSecond  int64
	PrizeThird   int64
	CoinsPerKill int64
	StartsAt     time.Time
	CreatedBy    string
}

func NewMatchStore(db DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) Create(ctx context.Context, tx Execer, input MatchInput) error {
	query := `
		INSERT INTO matches (id, title, match_type, entry_fee, total_slots, filled_slots, prize_pool,
		                     prize_first, prize_second, prize_third, coins_per_kill, status, starts_at, created_by)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, 'upcoming', $11, $12)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.Title, input.MatchType, input.EntryFee, input.TotalSlots, input.PrizePool,
		input.PrizeFirst, input.PrizeSecond, input.PrizeThird, input.CoinsPerKill, input.StartsAt, input.CreatedBy,
	)
	return err
}

const matchColumns = `id, title, match_type, entry_fee, total_slots, filled_slots, prize_pool,
	prize_first, prize_second, prize_third, coins_per_kill, status, room_id, room_password,
	starts_at, created_by, created_at`

func (s *MatchStore) GetByID(ctx context.Context, matchID string) (Match, error) {
	var row Match
	err := s.db.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return Match{}, err
	}
	return row, nil
}

func (s *MatchStore) GetForUpdate(ctx context.Context, tx Getter, matchID string) (Match, error) {
	var row Match
	err := tx.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, matchID)
	if err != nil {
		return Match{}, err
	}
	return row, nil
}

func (s *MatchStore) List(ctx context.Context, status string, limit, offset int) ([]Match, error) {
	var rows []Match
	query := `SELECT ` + matchColumns + ` FROM matches`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY starts_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetStatus transitions only from the expected status; zero rows affected
// means the match was concurrently moved (or already there).
func (s *MatchStore) SetStatus(ctx context.Context, tx Execer, matchID, from, to string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET status = $1 WHERE id = $2 AND status = $3
	`, to, matchID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) SetRoom(ctx context.Context, tx Execer, matchID, roomID, roomPassword string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE matches SET room_id = $1, room_password = $2 WHERE id = $3
	`, roomID, roomPassword, matchID)
	return err
}

// IncrementFilledSlots is the slot-capacity guard: the conditional update
// keeps filled_slots <= total_slots even under concurrent joiners.
func (s *MatchStore) IncrementFilledSlots(ctx context.Context, tx Execer, matchID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE matches
		SET filled_slots = filled_slots + 1
		WHERE id = $1 AND status = 'upcoming' AND filled_slots < total_slots
	`, matchID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
