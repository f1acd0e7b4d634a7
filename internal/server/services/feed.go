package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/repositories/repomanager"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

const (
	// DefaultSignTTL is how long a feed's image URLs stay valid. Cached
	// pages must expire well before this does.
	DefaultSignTTL = 15 * time.Minute

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PrefixSigner signs a URL prefix, authorizing every object underneath it.
type PrefixSigner interface {
	SignPrefix(prefix string, ttl time.Duration) (string, error)
}

// PageCache caches rendered browse pages.
type PageCache interface {
	Get(ctx context.Context, category string, page, pageSize int) (*models.BrowsePage, bool)
	Set(ctx context.Context, category string, page, pageSize int, bp *models.BrowsePage)
}

// FeedService assembles the read side: an owner's listings and the public
// browse feed, each with short-lived signed image URLs. One prefix token is
// minted per request and shared by every image URL in the response.
type FeedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      PrefixSigner
	cdnBaseURL  string
	signTTL     time.Duration
	cache       PageCache
	logger      logging.Logger
}

func NewFeedService(db *sql.DB, rm repomanager.RepositoryManager, signer PrefixSigner,
	cdnBaseURL string, signTTL time.Duration, cache PageCache, logger logging.Logger) *FeedService {
	if signTTL <= 0 {
		signTTL = DefaultSignTTL
	}
	return &FeedService{
		db:          db,
		repomanager: rm,
		signer:      signer,
		cdnBaseURL:  strings.TrimRight(cdnBaseURL, "/"),
		signTTL:     signTTL,
		cache:       cache,
		logger:      logger,
	}
}

// signedURLBuilder maps object refs to full CDN URLs carrying one shared
// prefix token.
func (s *FeedService) signedURLBuilder() (func(ref string) string, error) {
	base := s.cdnBaseURL + "/"
	token, err := s.signer.SignPrefix(base, s.signTTL)
	if err != nil {
		return nil, fmt.Errorf("signing url prefix: %w", err)
	}
	return func(ref string) string {
		return base + ref + "?" + token
	}, nil
}

// ListForOwner returns every listing the owner has in a category, newest
// first, with images and signed URLs attached. Listings without images are
// included here, unlike in the public browse feed.
func (s *FeedService) ListForOwner(ctx context.Context, cat schema.Category, ownerID string) ([]models.ListingWithImages, error) {
	rows, err := s.repomanager.Listings(s.db).SelectByOwner(ctx, cat, ownerID)
	if err != nil {
		return nil, err
	}

	urlFor, err := s.signedURLBuilder()
	if err != nil {
		return nil, err
	}

	imageRepo := s.repomanager.Images(s.db)
	out := make([]models.ListingWithImages, 0, len(rows))
	for _, row := range rows {
		listingID, _ := row["listing_id"].(string)
		delete(row, "listing_id")

		imgs, err := imageRepo.SelectByListing(ctx, listingID)
		if err != nil {
			return nil, err
		}
		out = append(out, buildListing(listingID, cat, row, imgs, urlFor))
	}
	return out, nil
}

// Browse returns one page of the public feed for a category. Only listings
// with at least one image appear.
func (s *FeedService) Browse(ctx context.Context, cat schema.Category, page, pageSize int) (*models.BrowsePage, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", common.ErrValidation)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page_size must be between 1 and %d", common.ErrValidation, MaxPageSize)
	}

	if s.cache != nil {
		if bp, ok := s.cache.Get(ctx, string(cat), page, pageSize); ok {
			return bp, nil
		}
	}

	listingRepo := s.repomanager.Listings(s.db)
	total, err := listingRepo.CountWithImages(ctx, cat)
	if err != nil {
		return nil, err
	}
	items, err := listingRepo.SelectPageWithImages(ctx, cat, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	urlFor, err := s.signedURLBuilder()
	if err != nil {
		return nil, err
	}

	listings := make([]models.ListingWithImages, 0, len(items))
	for _, item := range items {
		listingID, _ := item.Fields["listing_id"].(string)
		delete(item.Fields, "listing_id")
		listings = append(listings, buildListing(listingID, cat, item.Fields, item.Images, urlFor))
	}

	totalPages := (total + pageSize - 1) / pageSize
	bp := &models.BrowsePage{
		Items: listings,
		Pagination: models.Pagination{
			Page:        page,
			PageSize:    pageSize,
			TotalCount:  total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrevious: page > 1,
		},
	}

	if s.cache != nil {
		s.cache.Set(ctx, string(cat), page, pageSize, bp)
	}
	return bp, nil
}

// buildListing attaches signed image views and resolves the hero URL: the
// image marked hero wins, otherwise the first by sort order, otherwise none.
func buildListing(listingID string, cat schema.Category, fields map[string]any,
	imgs []*models.Image, urlFor func(string) string) models.ListingWithImages {

	views := make([]models.ImageView, 0, len(imgs))
	hero := ""
	for _, img := range imgs {
		v := models.ImageView{
			ObjectRef: img.ObjectRef,
			SignedURL: urlFor(img.ObjectRef),
			Tag:       img.Tag,
			Caption:   img.Caption,
			IsHero:    img.IsHero,
			SortOrder: img.SortOrder,
		}
		if img.IsHero && hero == "" {
			hero = v.SignedURL
		}
		views = append(views, v)
	}
	if hero == "" && len(views) > 0 {
		hero = views[0].SignedURL
	}

	return models.ListingWithImages{
		ListingID:    listingID,
		Category:     string(cat),
		Fields:       fields,
		Images:       views,
		HeroImageURL: hero,
	}
}
