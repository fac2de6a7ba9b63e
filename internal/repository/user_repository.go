package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// UserRepository reads the platform user records this service needs for
// notification recipient resolution and vendor checks. Account management
// and authentication live elsewhere.
type UserRepository struct {
	db *store.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *store.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves one user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, name, role, is_active FROM users WHERE id = $1`

	u := &User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Role, &u.IsActive)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to get user")
	}
	return u, nil
}

// ActiveWithRole returns the active users holding any of the given roles.
// Recipient sets are resolved at call time; there is no durable
// subscription list.
func (r *UserRepository) ActiveWithRole(ctx context.Context, roles []Role) ([]*User, error) {
	roleValues := make([]any, 0, len(roles))
	for _, role := range roles {
		roleValues = append(roleValues, string(role))
	}

	filters := store.NewFilters().Eq("is_active", true).In("role", roleValues)
	where, args := filters.SQL(1)

	rows, err := r.db.Query(ctx, `SELECT id, name, role, is_active FROM users`+where, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list users by role")
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.IsActive); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan user")
		}
		users = append(users, u)
	}

	return users, nil
}

// IsActiveVendor reports whether the given user exists, is active and holds
// the vendor role.
func (r *UserRepository) IsActiveVendor(ctx context.Context, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE id = $1 AND role = 'vendor' AND is_active = TRUE
		)
	`

	var active bool
	err := r.db.QueryRow(ctx, query, id).Scan(&active)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to check vendor account")
	}
	return active, nil
}
