package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/db"
)

// PostgresStore is the canonical profile store.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Profile, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("profile: invalid id: %w", err)
	}

	var p Profile
	var pid uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, avatar_url, role, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, uid).Scan(
		&pid,
		&p.Email,
		&p.FullName,
		&p.AvatarURL,
		&p.Role,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.ID = pid.String()
	return &p, nil
}

func (s *PostgresStore) RoleOf(ctx context.Context, id string) (access.Role, bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return "", false, fmt.Errorf("profile: invalid id: %w", err)
	}

	var role string
	err = s.db.QueryRowContext(ctx, `
		SELECT role FROM profiles WHERE id = $1
	`, uid).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	r, err := access.ParseRole(role)
	if err != nil {
		return "", false, fmt.Errorf("profile: stored role: %w", err)
	}
	return r, true, nil
}

// Upsert writes the projection row for an identity. A full_name
// already set by the user survives every later upsert; the incoming
// value only fills the column while it is NULL.
func (s *PostgresStore) Upsert(ctx context.Context, p UpsertParams) error {
	uid, err := uuid.Parse(p.ID)
	if err != nil {
		return fmt.Errorf("profile: invalid id: %w", err)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("profile: invalid role %q", p.Role)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, role, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email      = EXCLUDED.email,
			role       = EXCLUDED.role,
			full_name  = COALESCE(profiles.full_name, EXCLUDED.full_name),
			updated_at = NOW()
	`, uid, p.Email, p.FullName, string(p.Role))
	return err
}

func (s *PostgresStore) CompleteSetup(ctx context.Context, id, fullName string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("profile: invalid id: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET full_name = $2, updated_at = NOW()
		WHERE id = $1 AND full_name IS NULL
	`, uid, fullName)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either no profile, or the name was set before.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNameAlreadySet
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("profile: invalid id: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, full_name, avatar_url, role, created_at, updated_at
		FROM profiles
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var pid uuid.UUID
		if err := rows.Scan(
			&pid,
			&p.Email,
			&p.FullName,
			&p.AvatarURL,
			&p.Role,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.ID = pid.String()
		out = append(out, p)
	}
	return out, rows.Err()
}
