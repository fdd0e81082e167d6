package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Majulish/cookie/pkg/core/model"
)

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.OrganizationID, &role); err != nil {
		return nil, err
	}
	u.Role = model.UserRole(role)
	return &u, nil
}

// InsertUser adds a user to the directory
func (s *txStore) InsertUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, organization_id, role) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.tx.Exec(ctx, query, user.ID, user.Name, user.Email, user.OrganizationID, string(user.Role))
	if isUniqueViolation(err, "users_pkey") {
		return fmt.Errorf("user %s already exists: %w", user.ID, model.ErrInvalidInput)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *txStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.tx.QueryRow(ctx, `SELECT id, name, email, organization_id, role FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// FindManager returns the earliest registered HR manager of the organization
func (s *txStore) FindManager(ctx context.Context, organizationID string) (*model.User, error) {
	query := `
		SELECT id, name, email, organization_id, role
		FROM users
		WHERE organization_id = $1 AND role = $2
		ORDER BY created_at, id
		LIMIT 1
	`
	u, err := scanUser(s.tx.QueryRow(ctx, query, organizationID, string(model.RoleHRManager)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find manager: %w", err)
	}
	return u, nil
}
