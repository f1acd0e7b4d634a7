package users

import (
	"context"

	"github.com/swapwithus/listing-service/internal/server/models"
)

// Repository persists identity-provider subjects that own listings.
type Repository interface {
	// Upsert inserts the user if absent ("create if not exists"); an
	// existing row is left untouched.
	Upsert(ctx context.Context, user *models.User) error

	// Get returns the user or common.ErrNotFound.
	Get(ctx context.Context, ownerID string) (*models.User, error)

	// Delete removes the user row. Listing and image rows cascade at the
	// DB level; object-store cleanup is the caller's concern.
	Delete(ctx context.Context, ownerID string) error
}
