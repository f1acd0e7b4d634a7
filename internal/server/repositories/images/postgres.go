package images

import (
	"context"
	"fmt"

	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, img *models.Image) error {
	query :=
		`INSERT INTO images (listing_id, owner_id, category, object_ref, tag, caption, is_hero, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err := r.db.ExecContext(ctx, query,
		img.ListingID, img.OwnerID, img.Category, img.ObjectRef,
		img.Tag, img.Caption, img.IsHero, img.SortOrder)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, img *models.Image) error {
	query :=
		`INSERT INTO images (listing_id, owner_id, category, object_ref, tag, caption, is_hero, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (listing_id, object_ref) DO UPDATE SET
		     tag = EXCLUDED.tag,
		     caption = EXCLUDED.caption,
		     is_hero = EXCLUDED.is_hero,
		     sort_order = EXCLUDED.sort_order,
		     updated_at = NOW()
		 `

	_, err := r.db.ExecContext(ctx, query,
		img.ListingID, img.OwnerID, img.Category, img.ObjectRef,
		img.Tag, img.Caption, img.IsHero, img.SortOrder)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByRef(ctx context.Context, listingID, objectRef string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM images WHERE listing_id = $1 AND object_ref = $2`,
		listingID, objectRef)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByListing(ctx context.Context, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM images WHERE listing_id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectByListing(ctx context.Context, listingID string) ([]*models.Image, error) {
	query :=
		`SELECT listing_id, owner_id, category, object_ref, tag, caption, is_hero, sort_order
		 FROM images
		 WHERE listing_id = $1
		 ORDER BY sort_order
		 `

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Image
	for rows.Next() {
		img := &models.Image{}
		if err := rows.Scan(&img.ListingID, &img.OwnerID, &img.Category, &img.ObjectRef,
			&img.Tag, &img.Caption, &img.IsHero, &img.SortOrder); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SelectRefsByListing(ctx context.Context, listingID string) ([]string, error) {
	return r.selectRefs(ctx,
		`SELECT object_ref FROM images WHERE listing_id = $1`, listingID)
}

func (r *PostgresRepository) SelectRefsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return r.selectRefs(ctx,
		`SELECT object_ref FROM images WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepository) selectRefs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return refs, nil
}
