package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/events"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/repositories/repomanager"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

// MaxImagesPerListing bounds the image set of one listing.
const MaxImagesPerListing = 20

// ObjectStore is the slice of the storage gateway the services use.
type ObjectStore interface {
	// Put stores one image and returns its object reference.
	Put(ctx context.Context, raw []byte, contentType, listingID, category string) (string, error)
	// Delete removes one object, reporting success. It must not panic or
	// block beyond its own timeout; callers treat false as a logged loss.
	Delete(ctx context.Context, ref string) bool
}

// EventSink receives lifecycle events. Implementations are best-effort.
type EventSink interface {
	Publish(ctx context.Context, subj string, ev events.ListingEvent)
}

// FeedInvalidator drops cached browse pages after a write.
type FeedInvalidator interface {
	Invalidate(ctx context.Context, category string)
}

// newListingID is a seam for tests.
var newListingID = uuid.NewString

// ListingService coordinates listing writes: object-store uploads first,
// then one database transaction, with compensating deletes when either
// stage fails partway.
type ListingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	events      EventSink
	cache       FeedInvalidator
	logger      logging.Logger
}

func NewListingService(db *sql.DB, rm repomanager.RepositoryManager, store ObjectStore,
	events EventSink, cache FeedInvalidator, logger logging.Logger) *ListingService {
	return &ListingService{
		db:          db,
		repomanager: rm,
		store:       store,
		events:      events,
		cache:       cache,
		logger:      logger,
	}
}

// Create persists a new listing with its images. All uploads complete
// before the transaction opens; if anything fails after bytes landed in
// the store, the uploaded objects are deleted best-effort so a failed
// request leaves no orphaned state behind.
func (s *ListingService) Create(ctx context.Context, cat schema.Category, owner *models.User,
	fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) (string, int, error) {

	if len(files) == 0 {
		return "", 0, fmt.Errorf("%w: a listing needs at least one image", common.ErrValidation)
	}
	if len(files) > MaxImagesPerListing {
		return "", 0, fmt.Errorf("%w: at most %d images per listing, got %d",
			common.ErrValidation, MaxImagesPerListing, len(files))
	}
	if err := schema.ValidateFields(cat, fields); err != nil {
		return "", 0, err
	}

	if len(meta) == 0 {
		meta = make([]models.ImageMetadata, len(files))
		for i := range meta {
			meta[i].SortOrder = i
		}
	} else {
		if len(meta) != len(files) {
			return "", 0, fmt.Errorf("%w: %d metadata items for %d files",
				common.ErrValidation, len(meta), len(files))
		}
		for _, m := range meta {
			if m.ObjectRef != "" {
				return "", 0, fmt.Errorf("%w: create cannot reference existing image %q",
					common.ErrValidation, m.ObjectRef)
			}
		}
	}
	ensureHero(meta)

	listingID := newListingID()

	refs, err := s.uploadAll(ctx, listingID, cat, files)
	if err != nil {
		return "", 0, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Upsert(ctx, owner); err != nil {
			return err
		}
		if err := s.repomanager.Listings(tx).Insert(ctx, cat, listingID, owner.OwnerID, fields); err != nil {
			return err
		}
		imageRepo := s.repomanager.Images(tx)
		for i, m := range meta {
			img := &models.Image{
				ListingID: listingID,
				OwnerID:   owner.OwnerID,
				Category:  string(cat),
				ObjectRef: refs[i],
				Tag:       m.Tag,
				Caption:   m.Caption,
				IsHero:    m.IsHero,
				SortOrder: m.SortOrder,
			}
			if err := imageRepo.Insert(ctx, img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if common.IsClientError(err) {
			s.compensate(ctx, refs)
			return "", 0, err
		}
		s.logger.Error(ctx, "listing create tx failed", "listing_id", listingID, "error", err)
		s.compensate(ctx, refs)
		return "", 0, common.ErrPersistenceFailed
	}

	s.notify(ctx, events.SubjectListingCreated, listingID, cat, owner.OwnerID)
	return listingID, len(refs), nil
}

// Update rewrites a listing's fields and image set. meta, when non-empty,
// is the authoritative full set: stored images absent from it are removed,
// entries with an empty ObjectRef pair positionally with files.
func (s *ListingService) Update(ctx context.Context, cat schema.Category, listingID, ownerID string,
	fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) error {

	if err := s.authorize(ctx, cat, listingID, ownerID); err != nil {
		return err
	}
	if len(fields) > 0 {
		if err := schema.ValidateFields(cat, fields); err != nil {
			return err
		}
	}
	if len(meta) == 0 && len(files) > 0 {
		return fmt.Errorf("%w: files uploaded without image metadata", common.ErrValidation)
	}
	if len(meta) > MaxImagesPerListing {
		return fmt.Errorf("%w: at most %d images per listing, got %d",
			common.ErrValidation, MaxImagesPerListing, len(meta))
	}

	var removed, newRefs []string
	if len(meta) > 0 {
		newCount := 0
		kept := make(map[string]bool, len(meta))
		for _, m := range meta {
			if m.ObjectRef == "" {
				newCount++
			} else {
				kept[m.ObjectRef] = true
			}
		}
		if newCount != len(files) {
			return fmt.Errorf("%w: %d new image slots for %d files",
				common.ErrValidation, newCount, len(files))
		}

		stored, err := s.repomanager.Images(s.db).SelectRefsByListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("reading image set: %w", err)
		}
		storedSet := make(map[string]bool, len(stored))
		for _, ref := range stored {
			storedSet[ref] = true
		}
		for ref := range kept {
			if !storedSet[ref] {
				return fmt.Errorf("%w: image %q does not belong to this listing",
					common.ErrValidation, ref)
			}
		}
		for _, ref := range stored {
			if !kept[ref] {
				removed = append(removed, ref)
			}
		}
		ensureHero(meta)

		newRefs, err = s.uploadAll(ctx, listingID, cat, files)
		if err != nil {
			return err
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if len(fields) > 0 {
			if err := s.repomanager.Listings(tx).Update(ctx, cat, listingID, fields); err != nil {
				return err
			}
		}
		if len(meta) == 0 {
			return nil
		}
		imageRepo := s.repomanager.Images(tx)
		for _, ref := range removed {
			if err := imageRepo.DeleteByRef(ctx, listingID, ref); err != nil {
				return err
			}
		}
		next := 0
		for _, m := range meta {
			ref := m.ObjectRef
			if ref == "" {
				ref = newRefs[next]
				next++
			}
			img := &models.Image{
				ListingID: listingID,
				OwnerID:   ownerID,
				Category:  string(cat),
				ObjectRef: ref,
				Tag:       m.Tag,
				Caption:   m.Caption,
				IsHero:    m.IsHero,
				SortOrder: m.SortOrder,
			}
			if err := imageRepo.Upsert(ctx, img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if common.IsClientError(err) {
			s.compensate(ctx, newRefs)
			return err
		}
		s.logger.Error(ctx, "listing update tx failed", "listing_id", listingID, "error", err)
		s.compensate(ctx, newRefs)
		return common.ErrPersistenceFailed
	}

	// Removed objects are deleted only after the commit: an orphaned object
	// is recoverable garbage, a dangling reference is a broken listing.
	s.compensate(ctx, removed)

	s.notify(ctx, events.SubjectListingUpdated, listingID, cat, ownerID)
	return nil
}

// Delete removes a listing, its image rows, and then its stored objects.
func (s *ListingService) Delete(ctx context.Context, cat schema.Category, listingID, ownerID string) error {
	if err := s.authorize(ctx, cat, listingID, ownerID); err != nil {
		return err
	}

	var refs []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		imageRepo := s.repomanager.Images(tx)
		var err error
		refs, err = imageRepo.SelectRefsByListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := imageRepo.DeleteByListing(ctx, listingID); err != nil {
			return err
		}
		return s.repomanager.Listings(tx).Delete(ctx, cat, listingID)
	})
	if err != nil {
		if common.IsClientError(err) {
			return err
		}
		s.logger.Error(ctx, "listing delete tx failed", "listing_id", listingID, "error", err)
		return common.ErrPersistenceFailed
	}

	s.compensate(ctx, refs)

	s.notify(ctx, events.SubjectListingDeleted, listingID, cat, ownerID)
	return nil
}

// authorize distinguishes a missing listing from somebody else's listing.
func (s *ListingService) authorize(ctx context.Context, cat schema.Category, listingID, ownerID string) error {
	owner, err := s.repomanager.Listings(s.db).OwnerOf(ctx, cat, listingID)
	if err != nil {
		return err
	}
	if owner != ownerID {
		return common.ErrForbidden
	}
	return nil
}

// uploadAll stores every file concurrently. On any failure the uploads that
// did succeed are deleted before returning, so the caller never has to
// reason about a half-uploaded set.
func (s *ListingService) uploadAll(ctx context.Context, listingID string, cat schema.Category,
	files []models.ImageFile) ([]string, error) {

	refs := make([]string, len(files))
	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			ref, err := s.store.Put(ctx, f.Data, f.ContentType, listingID, string(cat))
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.compensate(ctx, refs)
		if common.IsClientError(err) {
			return nil, err
		}
		s.logger.Error(ctx, "image upload failed", "listing_id", listingID, "error", err)
		return nil, common.ErrUploadFailed
	}
	return refs, nil
}

// compensate deletes objects best-effort. A failed delete is an orphaned
// object, cleaned up later by bucket lifecycle rules, never a request error.
func (s *ListingService) compensate(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if !s.store.Delete(ctx, ref) {
			s.logger.Warn(ctx, "orphaned object left behind", "object_ref", ref)
		}
	}
}

func (s *ListingService) notify(ctx context.Context, subj, listingID string, cat schema.Category, ownerID string) {
	if s.events != nil {
		s.events.Publish(ctx, subj, events.ListingEvent{
			ListingID: listingID,
			Category:  string(cat),
			OwnerID:   ownerID,
		})
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, string(cat))
	}
}

// ensureHero guarantees exactly one designated hero position: when the
// caller marked none, the first item serves as hero.
func ensureHero(meta []models.ImageMetadata) {
	for _, m := range meta {
		if m.IsHero {
			return
		}
	}
	if len(meta) > 0 {
		meta[0].IsHero = true
	}
}
