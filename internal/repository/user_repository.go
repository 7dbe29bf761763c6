package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// UserRepository is the read side of the user directory.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetNames resolves display names for ids. Unknown ids are absent from the result.
func (r *UserRepository) GetNames(ctx context.Context, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, first_name, last_name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		names[u.ID] = u.DisplayName()
	}
	return names, rows.Err()
}

// Create inserts a directory entry. Used by the demo seeder.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, role, scope_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		u.FirstName, u.LastName, u.Role, u.ScopeID,
	).Scan(&u.ID)
}
