package listings

import (
	"context"

	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

// Row is one listing row keyed by column name. The column set varies per
// category, so the read path stays dynamic while writes go through the
// typed builders in the schema package.
type Row map[string]any

// BrowseItem is one listing of the public browse feed with its images
// aggregated hero-first.
type BrowseItem struct {
	Fields Row
	Images []*models.Image
}

// Repository persists listing rows in their per-category tables.
type Repository interface {
	// Insert writes a new listing row; identity is stamped by the caller.
	Insert(ctx context.Context, cat schema.Category, listingID, ownerID string, fields schema.Fields) error

	// Update applies a partial update to the listing's mutable fields.
	Update(ctx context.Context, cat schema.Category, listingID string, fields schema.Fields) error

	// Delete removes the listing row, or common.ErrNotFound.
	Delete(ctx context.Context, cat schema.Category, listingID string) error

	// OwnerOf returns the stored owner_id, or common.ErrNotFound.
	OwnerOf(ctx context.Context, cat schema.Category, listingID string) (string, error)

	// SelectByOwner returns all of an owner's listings in a category,
	// newest first.
	SelectByOwner(ctx context.Context, cat schema.Category, ownerID string) ([]Row, error)

	// CountWithImages counts listings that have at least one image.
	CountWithImages(ctx context.Context, cat schema.Category) (int, error)

	// SelectPageWithImages returns one browse page. Listings without
	// images are excluded (inner join).
	SelectPageWithImages(ctx context.Context, cat schema.Category, limit, offset int) ([]*BrowseItem, error)
}
