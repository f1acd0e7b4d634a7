package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, cat schema.Category, listingID, ownerID string, fields schema.Fields) error {
	query, args, err := schema.BuildInsert(cat, listingID, ownerID, fields)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, cat schema.Category, listingID string, fields schema.Fields) error {
	query, args, err := schema.BuildUpdate(cat, listingID, fields)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, cat schema.Category, listingID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE listing_id = $1`, cat.Table())
	res, err := r.db.ExecContext(ctx, query, listingID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) OwnerOf(ctx context.Context, cat schema.Category, listingID string) (string, error) {
	query := fmt.Sprintf(`SELECT owner_id FROM %s WHERE listing_id = $1`, cat.Table())

	var ownerID string
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return ownerID, nil
}

func (r *PostgresRepository) SelectByOwner(ctx context.Context, cat schema.Category, ownerID string) ([]Row, error) {
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE owner_id = $1 ORDER BY created_at DESC`, cat.Table())

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

func (r *PostgresRepository) CountWithImages(ctx context.Context, cat schema.Category) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(DISTINCT l.listing_id)
		 FROM %s l
		 INNER JOIN images i ON i.listing_id = l.listing_id`, cat.Table())

	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// imageAgg mirrors the json_build_object shape of the browse query.
type imageAgg struct {
	ObjectRef string  `json:"object_ref"`
	Tag       *string `json:"tag"`
	Caption   *string `json:"caption"`
	IsHero    bool    `json:"is_hero"`
	SortOrder int     `json:"sort_order"`
}

func (r *PostgresRepository) SelectPageWithImages(ctx context.Context, cat schema.Category, limit, offset int) ([]*BrowseItem, error) {
	query := fmt.Sprintf(
		`SELECT l.*,
		        json_agg(json_build_object(
		            'object_ref', i.object_ref,
		            'tag', i.tag,
		            'caption', i.caption,
		            'is_hero', i.is_hero,
		            'sort_order', i.sort_order
		        ) ORDER BY i.is_hero DESC, i.sort_order) AS images
		 FROM %s l
		 INNER JOIN images i ON i.listing_id = l.listing_id
		 GROUP BY l.listing_id
		 ORDER BY l.created_at DESC
		 LIMIT $1 OFFSET $2`, cat.Table())

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	maps, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}

	items := make([]*BrowseItem, 0, len(maps))
	for _, m := range maps {
		raw, _ := m["images"].(string)
		delete(m, "images")

		var aggs []imageAgg
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &aggs); err != nil {
				return nil, fmt.Errorf("db error: decode images json: %w", err)
			}
		}

		listingID, _ := m["listing_id"].(string)
		imgs := make([]*models.Image, 0, len(aggs))
		for _, a := range aggs {
			img := &models.Image{
				ListingID: listingID,
				Category:  string(cat),
				ObjectRef: a.ObjectRef,
				IsHero:    a.IsHero,
				SortOrder: a.SortOrder,
			}
			if a.Tag != nil {
				img.Tag = *a.Tag
			}
			if a.Caption != nil {
				img.Caption = *a.Caption
			}
			imgs = append(imgs, img)
		}
		items = append(items, &BrowseItem{Fields: m, Images: imgs})
	}
	return items, nil
}

// rowsToMaps scans every row into a column-keyed map. Byte slices become
// strings so JSON-encoding a Row stays readable.
func rowsToMaps(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		m := make(Row, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				m[col] = string(v)
			case time.Time:
				m[col] = v
			default:
				m[col] = v
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
