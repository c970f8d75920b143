// internal/roles/store.go
package roles

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/models"
)

// Store reads and mutates role grants in the user_roles table. Roles live in
// Postgres, not in the identity provider, so organizers can grant and revoke
// without touching the auth tenant.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleCheckIn
}

// HasRole reports whether the identity holds the given role.
func (s *Store) HasRole(ctx context.Context, submitterID, role string) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE submitter_id = $1 AND roles @> ARRAY[$2::text]
		)`, submitterID, role).Scan(&has)
	if err != nil {
		return false, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return has, nil
}

// GrantRole adds the role to the identity, creating the row on first grant.
// Granting a role the user already holds is a no-op.
func (s *Store) GrantRole(ctx context.Context, submitterID, email, name, role string) error {
	if !validRole(role) {
		return apperrors.NewBadRequestError("unknown role: " + role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_roles (submitter_id, email, name, roles)
		VALUES ($1, $2, $3, ARRAY[$4::text])
		ON CONFLICT (submitter_id) DO UPDATE
		SET roles = array_append(user_roles.roles, $4),
		    email = EXCLUDED.email,
		    name  = EXCLUDED.name
		WHERE NOT user_roles.roles @> ARRAY[$4::text]`,
		submitterID, email, name, role)
	if err != nil {
		return apperrors.NewUpstreamFailureError("postgres", err)
	}
	return nil
}

// RevokeRole removes the role from the identity. Revoking a role the user
// does not hold is a no-op.
func (s *Store) RevokeRole(ctx context.Context, submitterID, role string) error {
	if !validRole(role) {
		return apperrors.NewBadRequestError("unknown role: " + role)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE user_roles
		SET roles = array_remove(roles, $2)
		WHERE submitter_id = $1`, submitterID, role)
	if err != nil {
		return apperrors.NewUpstreamFailureError("postgres", err)
	}
	return nil
}

// RolesFor returns the roles granted to one identity. No row means no roles.
func (s *Store) RolesFor(ctx context.Context, submitterID string) ([]string, error) {
	var granted pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT roles FROM user_roles WHERE submitter_id = $1`, submitterID).
		Scan(&granted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return granted, nil
}

// ListUsersWithRoles returns everyone holding at least one role, for the
// admin roles page.
func (s *Store) ListUsersWithRoles(ctx context.Context) ([]models.UserRoles, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT submitter_id, email, name, roles
		FROM user_roles
		WHERE cardinality(roles) > 0
		ORDER BY email`)
	if err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	defer rows.Close()

	var users []models.UserRoles
	for rows.Next() {
		var u models.UserRoles
		var granted pq.StringArray
		if err := rows.Scan(&u.SubmitterID, &u.Email, &u.Name, &granted); err != nil {
			return nil, apperrors.NewUpstreamFailureError("postgres", err)
		}
		u.Roles = granted
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamFailureError("postgres", err)
	}
	return users, nil
}
