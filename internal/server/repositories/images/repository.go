package images

import (
	"context"

	"github.com/swapwithus/listing-service/internal/server/models"
)

// Repository persists image metadata rows keyed by (listing_id, object_ref).
type Repository interface {
	// Insert adds one image row.
	Insert(ctx context.Context, img *models.Image) error

	// Upsert inserts the row or, on conflict by (listing_id, object_ref),
	// refreshes its mutable metadata (tag, caption, is_hero, sort_order).
	Upsert(ctx context.Context, img *models.Image) error

	// DeleteByRef removes one image row of a listing.
	DeleteByRef(ctx context.Context, listingID, objectRef string) error

	// DeleteByListing removes all image rows of a listing.
	DeleteByListing(ctx context.Context, listingID string) error

	// SelectByListing returns a listing's images ordered by sort_order.
	SelectByListing(ctx context.Context, listingID string) ([]*models.Image, error)

	// SelectRefsByListing returns just the object references of a listing.
	SelectRefsByListing(ctx context.Context, listingID string) ([]string, error)

	// SelectRefsByOwner returns every object reference owned by a user,
	// across all listings and categories.
	SelectRefsByOwner(ctx context.Context, ownerID string) ([]string, error)
}
