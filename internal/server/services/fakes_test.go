package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/server/events"
	"github.com/swapwithus/listing-service/internal/server/models"
	imagesrepo "github.com/swapwithus/listing-service/internal/server/repositories/images"
	listingsrepo "github.com/swapwithus/listing-service/internal/server/repositories/listings"
	usersrepo "github.com/swapwithus/listing-service/internal/server/repositories/users"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

// fakeStore records puts and deletes. Files whose payload appears in
// failPuts get a rejected upload.
type fakeStore struct {
	mu       sync.Mutex
	failPuts map[string]error
	puts     []string
	deleted  []string
	delFail  map[string]bool
}

func (f *fakeStore) Put(ctx context.Context, raw []byte, contentType, listingID, category string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPuts[string(raw)]; ok {
		return "", err
	}
	ref := category + "/" + listingID + "_" + string(raw)
	f.puts = append(f.puts, ref)
	return ref, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return !f.delFail[ref]
}

type fakeEvents struct {
	published []string
}

func (f *fakeEvents) Publish(ctx context.Context, subj string, ev events.ListingEvent) {
	f.published = append(f.published, subj)
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, category string) {
	f.invalidated = append(f.invalidated, category)
}

type fakeUsers struct {
	upserted  []*models.User
	deleted   []string
	users     map[string]*models.User
	upsertErr error
	deleteErr error
}

func (f *fakeUsers) Upsert(ctx context.Context, u *models.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, u)
	return nil
}

func (f *fakeUsers) Get(ctx context.Context, ownerID string) (*models.User, error) {
	if u, ok := f.users[ownerID]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsers) Delete(ctx context.Context, ownerID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ownerID)
	return nil
}

type insertedListing struct {
	cat       schema.Category
	listingID string
	ownerID   string
	fields    schema.Fields
}

type fakeListings struct {
	owners    map[string]string // listingID -> ownerID
	inserted  []insertedListing
	updated   []insertedListing
	deleted   []string
	rows      []listingsrepo.Row
	total     int
	page      []*listingsrepo.BrowseItem
	insertErr error
	updateErr error
}

func (f *fakeListings) Insert(ctx context.Context, cat schema.Category, listingID, ownerID string, fields schema.Fields) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, insertedListing{cat, listingID, ownerID, fields})
	return nil
}

func (f *fakeListings) Update(ctx context.Context, cat schema.Category, listingID string, fields schema.Fields) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, insertedListing{cat: cat, listingID: listingID, fields: fields})
	return nil
}

func (f *fakeListings) Delete(ctx context.Context, cat schema.Category, listingID string) error {
	if _, ok := f.owners[listingID]; !ok {
		return common.ErrNotFound
	}
	f.deleted = append(f.deleted, listingID)
	return nil
}

func (f *fakeListings) OwnerOf(ctx context.Context, cat schema.Category, listingID string) (string, error) {
	owner, ok := f.owners[listingID]
	if !ok {
		return "", common.ErrNotFound
	}
	return owner, nil
}

func (f *fakeListings) SelectByOwner(ctx context.Context, cat schema.Category, ownerID string) ([]listingsrepo.Row, error) {
	return f.rows, nil
}

func (f *fakeListings) CountWithImages(ctx context.Context, cat schema.Category) (int, error) {
	return f.total, nil
}

func (f *fakeListings) SelectPageWithImages(ctx context.Context, cat schema.Category, limit, offset int) ([]*listingsrepo.BrowseItem, error) {
	return f.page, nil
}

type fakeImages struct {
	inserted     []*models.Image
	upserted     []*models.Image
	deletedRefs  []string
	deletedLists []string
	byListing    map[string][]*models.Image
	refsByOwner  []string
	insertErr    error
}

func (f *fakeImages) Insert(ctx context.Context, img *models.Image) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, img)
	return nil
}

func (f *fakeImages) Upsert(ctx context.Context, img *models.Image) error {
	f.upserted = append(f.upserted, img)
	return nil
}

func (f *fakeImages) DeleteByRef(ctx context.Context, listingID, objectRef string) error {
	f.deletedRefs = append(f.deletedRefs, objectRef)
	return nil
}

func (f *fakeImages) DeleteByListing(ctx context.Context, listingID string) error {
	f.deletedLists = append(f.deletedLists, listingID)
	return nil
}

func (f *fakeImages) SelectByListing(ctx context.Context, listingID string) ([]*models.Image, error) {
	return f.byListing[listingID], nil
}

func (f *fakeImages) SelectRefsByListing(ctx context.Context, listingID string) ([]string, error) {
	var refs []string
	for _, img := range f.byListing[listingID] {
		refs = append(refs, img.ObjectRef)
	}
	return refs, nil
}

func (f *fakeImages) SelectRefsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return f.refsByOwner, nil
}

type fakeRepoManager struct {
	users    *fakeUsers
	listings *fakeListings
	images   *fakeImages
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsers{users: map[string]*models.User{}},
		listings: &fakeListings{owners: map[string]string{}},
		images:   &fakeImages{byListing: map[string][]*models.Image{}},
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository             { return f.users }
func (f *fakeRepoManager) Listings(db dbx.DBTX) listingsrepo.Repository       { return f.listings }
func (f *fakeRepoManager) Images(db dbx.DBTX) imagesrepo.Repository           { return f.images }

type fakeSigner struct {
	token string
	err   error
	calls int
}

func (f *fakeSigner) SignPrefix(prefix string, ttl time.Duration) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakePageCache struct {
	pages map[string]*models.BrowsePage
	sets  int
}

func cacheKey(category string, page, pageSize int) string {
	return fmt.Sprintf("%s:%d:%d", category, page, pageSize)
}

func (f *fakePageCache) Get(ctx context.Context, category string, page, pageSize int) (*models.BrowsePage, bool) {
	bp, ok := f.pages[cacheKey(category, page, pageSize)]
	return bp, ok
}

func (f *fakePageCache) Set(ctx context.Context, category string, page, pageSize int, bp *models.BrowsePage) {
	f.sets++
	if f.pages == nil {
		f.pages = map[string]*models.BrowsePage{}
	}
	f.pages[cacheKey(category, page, pageSize)] = bp
}
