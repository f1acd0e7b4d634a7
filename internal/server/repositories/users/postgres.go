package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (owner_id, email, name, profile_image)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id) DO NOTHING
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.OwnerID, user.Email, user.Name, user.ProfileImage)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*models.User, error) {
	query :=
		`SELECT owner_id, email, name, profile_image, created_at, updated_at FROM users
		 WHERE owner_id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&user.OwnerID, &user.Email, &user.Name, &user.ProfileImage, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}
