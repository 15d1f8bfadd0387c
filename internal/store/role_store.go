package store

import (
	"context"
	"database/sql"
)

// Roles are totally ordered. A user without a row is a player.
const (
	RolePlayer     = "player"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

var roleLevels = map[string]int{
	RolePlayer:     1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// RoleLevel returns 0 for unknown roles so they never satisfy any gate.
func RoleLevel(role string) int {
	return roleLevels[role]
}

func ValidRole(role string) bool {
	return roleLevels[role] > 0
}

type RoleStore struct {
	db DB
}

func NewRoleStore(db DB) *RoleStore {
	return &RoleStore{db: db}
}

func (s *RoleStore) RoleOf(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.GetContext(ctx, &role, `
		SELECT role
		FROM user_roles
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return RolePlayer, nil
		}
		return "", err
	}
	return role, nil
}

func (s *RoleStore) Grant(ctx context.Context, tx Execer, userID, role string, grantedBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = $2, granted_by = $3, created_at = NOW()
	`, userID, role, grantedBy)
	return err
}

func (s *RoleStore) HasAnySuperadmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM user_roles WHERE role = 'superadmin'`)
	return count > 0, err
}
