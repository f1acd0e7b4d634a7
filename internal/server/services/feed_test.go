package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/models"
	listingsrepo "github.com/swapwithus/listing-service/internal/server/repositories/listings"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

const testToken = "URLPrefix=aHR0cHM&Expires=1&KeyName=cdn-key&Signature=sig"

func newFeedFixture(t *testing.T) (*FeedService, *fakeRepoManager, *fakeSigner, *fakePageCache) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rm := newFakeRepoManager()
	signer := &fakeSigner{token: testToken}
	cache := &fakePageCache{}
	svc := NewFeedService(db, rm, signer, "https://cdn.example.com/", 0, cache, logging.NewJSONLogger())
	return svc, rm, signer, cache
}

func TestListForOwner(t *testing.T) {
	svc, rm, signer, _ := newFeedFixture(t)
	rm.listings.rows = []listingsrepo.Row{
		{"listing_id": "lst-1", "title": "Dune"},
		{"listing_id": "lst-2", "title": "Neuromancer"},
	}
	rm.images.byListing["lst-1"] = []*models.Image{
		{ListingID: "lst-1", ObjectRef: "book/a.jpg", SortOrder: 0},
		{ListingID: "lst-1", ObjectRef: "book/b.jpg", SortOrder: 1, IsHero: true},
	}

	got, err := svc.ListForOwner(context.Background(), schema.CategoryBook, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "lst-1", first.ListingID)
	assert.Equal(t, "Dune", first.Fields["title"])
	_, leaked := first.Fields["listing_id"]
	assert.False(t, leaked)

	require.Len(t, first.Images, 2)
	assert.Equal(t, "https://cdn.example.com/book/a.jpg?"+testToken, first.Images[0].SignedURL)
	// the marked hero wins over sort order
	assert.Equal(t, "https://cdn.example.com/book/b.jpg?"+testToken, first.HeroImageURL)

	// no images at all: included, but with no hero
	second := got[1]
	assert.Empty(t, second.Images)
	assert.Empty(t, second.HeroImageURL)

	// one prefix-signing operation serves the whole response
	assert.Equal(t, 1, signer.calls)
}

func TestListForOwner_HeroFallsBackToFirstBySortOrder(t *testing.T) {
	svc, rm, _, _ := newFeedFixture(t)
	rm.listings.rows = []listingsrepo.Row{{"listing_id": "lst-1", "title": "Dune"}}
	rm.images.byListing["lst-1"] = []*models.Image{
		{ListingID: "lst-1", ObjectRef: "book/first.jpg", SortOrder: 0},
		{ListingID: "lst-1", ObjectRef: "book/second.jpg", SortOrder: 1},
	}

	got, err := svc.ListForOwner(context.Background(), schema.CategoryBook, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/book/first.jpg?"+testToken, got[0].HeroImageURL)
}

func TestBrowse(t *testing.T) {
	svc, rm, _, cache := newFeedFixture(t)
	rm.listings.total = 45
	rm.listings.page = []*listingsrepo.BrowseItem{
		{
			Fields: listingsrepo.Row{"listing_id": "lst-1", "title": "Dune"},
			Images: []*models.Image{{ListingID: "lst-1", ObjectRef: "book/a.jpg", IsHero: true}},
		},
	}

	bp, err := svc.Browse(context.Background(), schema.CategoryBook, 2, 20)
	require.NoError(t, err)

	assert.Equal(t, 2, bp.Pagination.Page)
	assert.Equal(t, 45, bp.Pagination.TotalCount)
	assert.Equal(t, 3, bp.Pagination.TotalPages)
	assert.True(t, bp.Pagination.HasNext)
	assert.True(t, bp.Pagination.HasPrevious)

	require.Len(t, bp.Items, 1)
	assert.Equal(t, "lst-1", bp.Items[0].ListingID)
	assert.Equal(t, "https://cdn.example.com/book/a.jpg?"+testToken, bp.Items[0].HeroImageURL)

	// the rendered page went into the cache
	assert.Equal(t, 1, cache.sets)
}

func TestBrowse_LastPage(t *testing.T) {
	svc, rm, _, _ := newFeedFixture(t)
	rm.listings.total = 45

	bp, err := svc.Browse(context.Background(), schema.CategoryBook, 3, 20)
	require.NoError(t, err)
	assert.False(t, bp.Pagination.HasNext)
	assert.True(t, bp.Pagination.HasPrevious)
	assert.Empty(t, bp.Items)
}

func TestBrowse_DefaultsPageSize(t *testing.T) {
	svc, rm, _, _ := newFeedFixture(t)
	rm.listings.total = 5

	bp, err := svc.Browse(context.Background(), schema.CategoryBook, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, bp.Pagination.PageSize)
}

func TestBrowse_Validation(t *testing.T) {
	svc, _, _, _ := newFeedFixture(t)

	_, err := svc.Browse(context.Background(), schema.CategoryBook, 0, 20)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Browse(context.Background(), schema.CategoryBook, 1, MaxPageSize+1)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Browse(context.Background(), schema.CategoryBook, -3, 20)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBrowse_CacheHitSkipsSigning(t *testing.T) {
	svc, _, signer, cache := newFeedFixture(t)
	cached := &models.BrowsePage{Pagination: models.Pagination{Page: 1, PageSize: 20}}
	cache.pages = map[string]*models.BrowsePage{cacheKey("book", 1, 20): cached}

	bp, err := svc.Browse(context.Background(), schema.CategoryBook, 1, 20)
	require.NoError(t, err)
	assert.Same(t, cached, bp)
	assert.Zero(t, signer.calls)
}
