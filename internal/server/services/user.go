package services

import (
	"context"
	"database/sql"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/events"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/repositories/repomanager"
)

// UserService handles account-scoped operations.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	events      EventSink
	logger      logging.Logger
}

func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, store ObjectStore,
	events EventSink, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: rm,
		store:       store,
		events:      events,
		logger:      logger,
	}
}

// Get returns the stored profile, or common.ErrNotFound.
func (s *UserService) Get(ctx context.Context, ownerID string) (*models.User, error) {
	return s.repomanager.Users(s.db).Get(ctx, ownerID)
}

// DeleteAccount removes the user and everything they own. Listing and image
// rows go with the user row via DB cascades inside one transaction; object
// deletion runs after the commit, best-effort, since an orphaned object is
// preferable to a dangling reference.
func (s *UserService) DeleteAccount(ctx context.Context, ownerID string) error {
	refs, err := s.repomanager.Images(s.db).SelectRefsByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error(ctx, "collecting account objects failed", "owner_id", ownerID, "error", err)
		return common.ErrPersistenceFailed
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Delete(ctx, ownerID)
	})
	if err != nil {
		if common.IsClientError(err) {
			return err
		}
		s.logger.Error(ctx, "account delete tx failed", "owner_id", ownerID, "error", err)
		return common.ErrPersistenceFailed
	}

	for _, ref := range refs {
		if !s.store.Delete(ctx, ref) {
			s.logger.Warn(ctx, "orphaned object left behind", "object_ref", ref)
		}
	}

	if s.events != nil {
		s.events.Publish(ctx, events.SubjectUserDeleted, events.ListingEvent{OwnerID: ownerID})
	}
	return nil
}
